package entity

import (
	"time"

	"github.com/samber/lo"
)

// StatusOverview is the per-sending reconciliation state built from provider callbacks.
type StatusOverview struct {
	Sent               bool           `json:"sendt"`
	RenotificationSent bool           `json:"renotifikasjonSendt"`
	Channel            *string        `json:"kanal"`
	History            []HistoryEntry `json:"historikk"`
	LastUpdated        time.Time      `json:"sistOppdatert"`
}

type HistoryEntry struct {
	Message        string         `json:"melding"`
	Status         ExternalStatus `json:"status"`
	DistributionID *int64         `json:"distribusjonsId"`
	Channel        *string        `json:"kanal"`
	Renotification *bool          `json:"renotifikasjon"`
	Timestamp      time.Time      `json:"tidspunkt"`
}

// Matches reports whether the entry records the same provider observation.
// Timestamps are compared at millisecond precision.
func (e HistoryEntry) Matches(status ExternalStatus, distributionID *int64, channel *string, ts time.Time) bool {
	return e.Status == status &&
		equalPtr(e.DistributionID, distributionID) &&
		equalPtr(e.Channel, channel) &&
		e.Timestamp.Truncate(time.Millisecond).Equal(ts.Truncate(time.Millisecond))
}

// FirstAttempt returns the earliest Sendt or Feilet timestamp, if any.
func (o StatusOverview) FirstAttempt() (time.Time, bool) {
	attempts := lo.Filter(o.History, func(e HistoryEntry, _ int) bool {
		return e.Status == ExternalStatusSent || e.Status == ExternalStatusFailed
	})
	if len(attempts) == 0 {
		return time.Time{}, false
	}

	first := lo.MinBy(attempts, func(a, b HistoryEntry) bool {
		return a.Timestamp.Before(b.Timestamp)
	})
	return first.Timestamp, true
}

// ProviderStatus is a delivery status callback from the provider.
type ProviderStatus struct {
	SendingID      string
	OrdererApp     string
	Status         string
	Message        string
	DistributionID *int64
	Channel        *string
	Timestamp      time.Time
}

// StatusUpdate is broadcast downstream whenever the external status of a
// notification changes.
type StatusUpdate struct {
	Status         ExternalStatus
	NotificationID string
	Recipient      string
	Channel        *string
	Renotification *bool
	Batch          *bool
	Type           NotificationType
	Producer       Producer
	FailureMessage *string
	Timestamp      time.Time
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
