package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/eksternvarsling/internal/pkg/goerror"
	"github.com/shandysiswandi/eksternvarsling/internal/varsling/entity"
)

const defaultBatchWindow = time.Hour

type IngestInput struct {
	NotificationID    string
	Recipient         string
	Type              entity.NotificationType
	PreferredChannels []entity.Channel
	SMSText           *string
	EmailTitle        *string
	EmailBody         *string
	CanBatch          bool
	DeferUntil        *time.Time
	CreatedAt         time.Time
	Producer          entity.Producer
}

// Ingest registers a created notification for external sending, either in the
// recipient's open batch or in a sending of its own.
func (s *Usecase) Ingest(ctx context.Context, in IngestInput) error {
	ctx, span := s.startSpan(ctx, "Ingest")
	defer span.End()

	n := entity.Notification{
		ID:                in.NotificationID,
		Type:              in.Type,
		PreferredChannels: in.PreferredChannels,
		SMSText:           in.SMSText,
		EmailTitle:        in.EmailTitle,
		EmailBody:         in.EmailBody,
		Producer:          in.Producer,
		Active:            true,
	}

	if err := s.validateTexts(n); err != nil {
		slog.WarnContext(ctx, "invalid override texts", "varsel_id", in.NotificationID, "error", err)
		return err
	}

	exists, err := s.repoDB.NotificationExists(ctx, in.NotificationID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo check notification exists", "varsel_id", in.NotificationID, "error", err)
		return goerror.NewServer(err)
	}
	if exists {
		return ErrDuplicateNotification
	}

	batch := in.CanBatch && in.DeferUntil == nil && s.cfg.GetBool("modules.varsling.batch.enabled")

	err = withConflictRetry(ctx, func(ctx context.Context) error {
		return s.place(ctx, in, n, batch)
	})
	if errors.Is(err, ErrDuplicateNotification) {
		return err
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to place notification in sending", "varsel_id", in.NotificationID, "error", err)
		return goerror.NewServer(err)
	}

	if err := s.repoMQ.PublishStatusUpdate(ctx, entity.StatusUpdate{
		Status:         entity.ExternalStatusWaiting,
		NotificationID: n.ID,
		Recipient:      in.Recipient,
		Type:           n.Type,
		Producer:       n.Producer,
		Timestamp:      s.now(),
	}); err != nil {
		slog.ErrorContext(ctx, "failed to publish waiting status", "varsel_id", n.ID, "error", err)
	}

	return nil
}

func (s *Usecase) place(ctx context.Context, in IngestInput, n entity.Notification, batch bool) error {
	if batch {
		open, err := s.repoDB.FindOpenBatch(ctx, in.Recipient, s.now())
		if err == nil {
			slog.InfoContext(ctx, "adding notification to open batch", "varsel_id", n.ID, "sending_id", open.ID)
			return s.repoDB.AppendNotification(ctx, open.ID, n, s.now())
		}
		if !errors.Is(err, goerror.ErrNotFound) {
			return err
		}
	}

	sending := s.newSending(in, n, batch)
	err := s.repoDB.CreateSending(ctx, sending)
	if errors.Is(err, goerror.ErrConflict) && !batch {
		// the sending id is the notification id, so a conflict means a
		// concurrent delivery of the same event won
		return ErrDuplicateNotification
	}
	if err == nil {
		slog.InfoContext(ctx, "created sending", "varsel_id", n.ID, "sending_id", sending.ID, "batch", batch)
	}
	return err
}

func (s *Usecase) newSending(in IngestInput, n entity.Notification, batch bool) entity.Sending {
	sending := entity.Sending{
		ID:            n.ID,
		Recipient:     in.Recipient,
		Notifications: []entity.Notification{n},
		Status:        entity.SendingStatusWaiting,
		CreatedAt:     in.CreatedAt,
	}
	if sending.CreatedAt.IsZero() {
		sending.CreatedAt = s.now()
	}

	switch {
	case in.DeferUntil != nil:
		notBefore := in.DeferUntil.UTC()
		sending.IsDeferred = true
		sending.NotBefore = &notBefore
	case batch:
		window := s.cfg.GetMinute("modules.varsling.batch.window_minutes")
		if window <= 0 {
			window = defaultBatchWindow
		}
		notBefore := s.now().Add(window)
		sending.ID = s.uuid.Generate()
		sending.IsBatch = true
		sending.NotBefore = &notBefore
	}

	return sending
}
