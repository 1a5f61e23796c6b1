package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/eksternvarsling/internal/pkg/goerror"
	"github.com/shandysiswandi/eksternvarsling/internal/varsling/entity"
)

const (
	stopLockDuration = time.Minute
	// renotifications are at most a week apart, so the guard outlives them
	stopRememberFor = 30 * 24 * time.Hour
)

// Inactivate marks the notification inactive in its sending. When that leaves
// a dispatched sending with a renotification plan without active
// notifications, the provider is told to stop renotifying.
func (s *Usecase) Inactivate(ctx context.Context, notificationID string) error {
	ctx, span := s.startSpan(ctx, "Inactivate")
	defer span.End()

	err := withConflictRetry(ctx, func(ctx context.Context) error {
		sending, err := s.repoDB.FindSendingByNotification(ctx, notificationID, true)
		if errors.Is(err, goerror.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		next := *sending
		next.Notifications = sending.WithNotification(notificationID, func(n *entity.Notification) {
			n.Active = false
		})

		if !sending.AllInactive() && next.AllInactive() &&
			sending.Status == entity.SendingStatusSent && sending.HasRenotificationPlan() {
			if err := s.sendStop(ctx, sending.ID); err != nil {
				return err
			}
		}

		return s.repoDB.UpdateNotifications(ctx, sending.ID, sending.Version, next.Notifications)
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to inactivate notification", "varsel_id", notificationID, "error", err)
		return goerror.NewServer(err)
	}

	return nil
}

// sendStop publishes the stop signal at most once per sending.
func (s *Usecase) sendStop(ctx context.Context, sendingID string) error {
	key := "stop:" + sendingID

	state, err := s.guard.Acquire(ctx, key, stopLockDuration)
	if err != nil {
		return err
	}
	if !state.CanProceed() {
		slog.InfoContext(ctx, "stop signal already sent", "sending_id", sendingID, "state", state.String())
		return nil
	}

	if err := s.repoMQ.PublishStop(ctx, sendingID); err != nil {
		if mErr := s.guard.MarkFailed(ctx, key, stopLockDuration); mErr != nil {
			slog.WarnContext(ctx, "failed to mark stop signal failed", "sending_id", sendingID, "error", mErr)
		}
		return err
	}

	if err := s.guard.MarkCompleted(ctx, key, stopRememberFor); err != nil {
		slog.WarnContext(ctx, "failed to mark stop signal completed", "sending_id", sendingID, "error", err)
	}

	slog.InfoContext(ctx, "stop signal sent", "sending_id", sendingID)
	return nil
}
