package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/eksternvarsling/internal/pkg/goerror"
	"github.com/shandysiswandi/eksternvarsling/internal/varsling/entity"
)

// MarkHandledByLegacy excludes a notification from dispatch because the legacy
// orderer already sent it.
func (s *Usecase) MarkHandledByLegacy(ctx context.Context, notificationID string) error {
	ctx, span := s.startSpan(ctx, "MarkHandledByLegacy")
	defer span.End()

	err := withConflictRetry(ctx, func(ctx context.Context) error {
		sending, err := s.repoDB.FindSendingByNotification(ctx, notificationID, false)
		if errors.Is(err, goerror.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		slog.InfoContext(ctx, "marking notification as handled by legacy orderer", "varsel_id", notificationID, "sending_id", sending.ID)

		updated := sending.WithNotification(notificationID, func(n *entity.Notification) {
			n.HandledByLegacy = true
		})
		return s.repoDB.UpdateNotifications(ctx, sending.ID, sending.Version, updated)
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to mark notification handled by legacy", "varsel_id", notificationID, "error", err)
		return goerror.NewServer(err)
	}

	return nil
}
