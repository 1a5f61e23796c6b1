package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/eksternvarsling/internal/pkg/goerror"
	"github.com/shandysiswandi/eksternvarsling/internal/varsling/entity"
)

const defaultDispatchBatchSize = 100

// DispatchDue hands every due waiting sending to the provider, or cancels it
// when none of its notifications should be sent any more. A failing sending
// is logged and stays waiting for the next run.
func (s *Usecase) DispatchDue(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "DispatchDue")
	defer span.End()

	limit := s.cfg.GetInt("modules.varsling.dispatch.batch_size")
	if limit <= 0 {
		limit = defaultDispatchBatchSize
	}

	sendings, err := s.repoDB.NextInQueue(ctx, s.now(), limit)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo read sending queue", "error", err)
		return goerror.NewServer(err)
	}

	for _, sending := range sendings {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.dispatch(ctx, sending); err != nil {
			slog.ErrorContext(ctx, "failed to dispatch sending", "sending_id", sending.ID, "error", err)
		}
	}

	return nil
}

func (s *Usecase) dispatch(ctx context.Context, sending entity.Sending) error {
	if len(sending.EligibleNotifications()) == 0 {
		return s.cancel(ctx, sending)
	}

	now := s.now()
	order := entity.Order{
		Channel:        s.channel.Decide(ctx, sending),
		Texts:          ResolveTexts(sending),
		Renotification: RenotificationPlan(sending),
		SentAt:         now,
	}

	if err := s.repoMQ.PublishOrder(ctx, sending, order); err != nil {
		return err
	}
	if err := s.markSent(ctx, sending, now, order); err != nil {
		return err
	}

	slog.InfoContext(ctx, "sending dispatched",
		"sending_id", sending.ID,
		"channel", order.Channel.String(),
		"batch", sending.IsBatch,
		"renotifications", order.Renotification.Count,
	)
	return nil
}

// markSent records an order that has already been published. When the row
// changed after it was queued, the fresh row is marked instead. An
// inactivation that landed in between saw a waiting sending and sent no stop
// signal, so it is sent here once nothing active is left.
func (s *Usecase) markSent(ctx context.Context, sending entity.Sending, now time.Time, order entity.Order) error {
	current := sending

	return withConflictRetry(ctx, func(ctx context.Context) error {
		if current.AllInactive() && order.Renotification.Planned() {
			if err := s.sendStop(ctx, current.ID); err != nil {
				return err
			}
		}

		err := s.repoDB.MarkSent(ctx, current.ID, current.Version, now, order)
		if !errors.Is(err, goerror.ErrConflict) {
			return err
		}

		fresh, gErr := s.repoDB.GetSending(ctx, current.ID)
		if gErr != nil {
			return gErr
		}
		if fresh.Status.IsTerminal() {
			slog.WarnContext(ctx, "sending completed while dispatching", "sending_id", fresh.ID, "status", fresh.Status.String())
			return nil
		}

		current = *fresh
		return err
	})
}

func (s *Usecase) cancel(ctx context.Context, sending entity.Sending) error {
	now := s.now()
	if err := s.repoDB.MarkCancelled(ctx, sending.ID, sending.Version, now); err != nil {
		return err
	}

	batch := len(sending.Notifications) > 1
	for _, n := range sending.Notifications {
		if err := s.repoMQ.PublishStatusUpdate(ctx, entity.StatusUpdate{
			Status:         entity.ExternalStatusCancelled,
			NotificationID: n.ID,
			Recipient:      sending.Recipient,
			Batch:          &batch,
			Type:           n.Type,
			Producer:       n.Producer,
			Timestamp:      now,
		}); err != nil {
			slog.ErrorContext(ctx, "failed to publish cancelled status", "sending_id", sending.ID, "varsel_id", n.ID, "error", err)
		}
	}

	slog.InfoContext(ctx, "sending cancelled", "sending_id", sending.ID)
	return nil
}
