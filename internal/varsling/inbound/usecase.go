package inbound

import (
	"context"

	"github.com/shandysiswandi/eksternvarsling/internal/varsling/entity"
	"github.com/shandysiswandi/eksternvarsling/internal/varsling/usecase"
)

type ucConsumer interface {
	Ingest(ctx context.Context, in usecase.IngestInput) error
	Inactivate(ctx context.Context, notificationID string) error
	MarkHandledByLegacy(ctx context.Context, notificationID string) error
	ReconcileStatus(ctx context.Context, in entity.ProviderStatus) error
}

type ucScheduler interface {
	DispatchDue(ctx context.Context) error
}

type uc interface {
	ucConsumer
	ucScheduler

	Ready(ctx context.Context) error
}
