package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shandysiswandi/eksternvarsling/internal/pkg/goerror"
	"github.com/shandysiswandi/eksternvarsling/internal/varsling/entity"
)

const renotificationAfter = 23 * time.Hour

// ReconcileStatus records a provider callback in the status history of the
// sending and fans the new status out per notification. Callbacks for unknown
// sendings and repeated callbacks are ignored.
func (s *Usecase) ReconcileStatus(ctx context.Context, in entity.ProviderStatus) error {
	ctx, span := s.startSpan(ctx, "ReconcileStatus")
	defer span.End()

	var (
		sending *entity.Sending
		entry   entity.HistoryEntry
	)

	err := withConflictRetry(ctx, func(ctx context.Context) error {
		sending = nil

		found, err := s.repoDB.GetSending(ctx, in.SendingID)
		if errors.Is(err, goerror.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		status, err := mapProviderStatus(in.Status, in.Channel)
		if err != nil {
			return err
		}

		overview := entity.StatusOverview{LastUpdated: s.now()}
		if found.StatusOverview != nil {
			overview = *found.StatusOverview
		}

		for _, e := range overview.History {
			if e.Matches(status, in.DistributionID, in.Channel, in.Timestamp) {
				return nil
			}
		}

		entry = entity.HistoryEntry{
			Message:        in.Message,
			Status:         status,
			DistributionID: in.DistributionID,
			Channel:        in.Channel,
			Renotification: renotificationFlag(status, overview, in.Timestamp),
			Timestamp:      in.Timestamp,
		}

		next := entity.StatusOverview{
			Sent:               overview.Sent || status == entity.ExternalStatusSent,
			RenotificationSent: overview.RenotificationSent || (entry.Renotification != nil && *entry.Renotification),
			Channel:            overview.Channel,
			History:            append(append([]entity.HistoryEntry{}, overview.History...), entry),
			LastUpdated:        s.now(),
		}
		if next.Channel == nil {
			next.Channel = entry.Channel
		}

		if err := s.repoDB.UpdateStatusOverview(ctx, found.ID, found.Version, next); err != nil {
			return err
		}

		sending = found
		return nil
	})
	if errors.Is(err, ErrUnknownProviderStatus) {
		slog.ErrorContext(ctx, "unknown provider status", "sending_id", in.SendingID, "status", in.Status)
		return err
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to reconcile provider status", "sending_id", in.SendingID, "error", err)
		return goerror.NewServer(err)
	}

	if sending == nil {
		slog.DebugContext(ctx, "ignoring provider status for unknown sending or duplicate", "sending_id", in.SendingID, "status", in.Status)
		return nil
	}

	slog.InfoContext(ctx, "provider status recorded", "sending_id", sending.ID, "status", entry.Status.String())
	s.fanOut(ctx, *sending, entry)

	return nil
}

func (s *Usecase) fanOut(ctx context.Context, sending entity.Sending, entry entity.HistoryEntry) {
	batch := len(sending.Notifications) > 1

	var failure *string
	if entry.Status == entity.ExternalStatusFailed {
		failure = &entry.Message
	}

	now := s.now()
	for _, n := range sending.Notifications {
		if err := s.repoMQ.PublishStatusUpdate(ctx, entity.StatusUpdate{
			Status:         entry.Status,
			NotificationID: n.ID,
			Recipient:      sending.Recipient,
			Channel:        entry.Channel,
			Renotification: entry.Renotification,
			Batch:          &batch,
			Type:           n.Type,
			Producer:       n.Producer,
			FailureMessage: failure,
			Timestamp:      now,
		}); err != nil {
			slog.ErrorContext(ctx, "failed to publish status update", "sending_id", sending.ID, "varsel_id", n.ID, "error", err)
		}
	}
}

func mapProviderStatus(status string, channel *string) (entity.ExternalStatus, error) {
	switch status {
	case entity.ProviderStatusCompleted:
		if channel == nil || strings.TrimSpace(*channel) == "" {
			return entity.ExternalStatusCompleted, nil
		}
		return entity.ExternalStatusSent, nil
	case entity.ProviderStatusInfo:
		return entity.ExternalStatusInfo, nil
	case entity.ProviderStatusFailed:
		return entity.ExternalStatusFailed, nil
	case entity.ProviderStatusForwarded:
		return entity.ExternalStatusOrdered, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProviderStatus, status)
	}
}

// renotificationFlag is nil for anything but Sendt. A Sendt more than 23 hours
// after the first attempt is the provider's renotification.
func renotificationFlag(status entity.ExternalStatus, overview entity.StatusOverview, ts time.Time) *bool {
	if status != entity.ExternalStatusSent {
		return nil
	}

	first, ok := overview.FirstAttempt()
	renotification := ok && ts.Sub(first) > renotificationAfter
	return &renotification
}
