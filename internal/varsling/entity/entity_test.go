package entity

import (
	"testing"
	"time"
)

func TestNotificationTypeProfile(t *testing.T) {
	tests := []struct {
		typ   NotificationType
		alias string
		plan  Renotification
	}{
		{NotificationTypeTask, "oppgave", Renotification{Count: 1, IntervalDays: 7}},
		{NotificationTypeInbox, "beskjed", Renotification{Count: 1, IntervalDays: 4}},
		{NotificationTypeMessage, "beskjed", Renotification{}},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			if got := tt.typ.Alias(); got != tt.alias {
				t.Fatalf("alias = %q, want %q", got, tt.alias)
			}
			if got := tt.typ.Renotification(); got != tt.plan {
				t.Fatalf("renotification = %+v, want %+v", got, tt.plan)
			}
		})
	}
}

func TestNotificationTypeFromString(t *testing.T) {
	for _, raw := range []string{"Oppgave", "oppgave", " BESKJED ", "innboks"} {
		if _, err := NotificationTypeFromString(raw); err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
	}
	if _, err := NotificationTypeFromString("melding"); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestChannelFromString(t *testing.T) {
	got, err := ChannelFromString("betinget_sms")
	if err != nil || got != ChannelConditionalSMS {
		t.Fatalf("got %q, %v", got, err)
	}
	if _, err := ChannelFromString("PUSH"); err == nil {
		t.Fatal("expected error for unknown channel")
	}
}

func TestSendingEligibility(t *testing.T) {
	s := Sending{Notifications: []Notification{
		{ID: "a", Active: true},
		{ID: "b", Active: false},
		{ID: "c", Active: true, HandledByLegacy: true},
	}}

	eligible := s.EligibleNotifications()
	if len(eligible) != 1 || eligible[0].ID != "a" {
		t.Fatalf("eligible = %+v", eligible)
	}
	if s.AllInactive() {
		t.Fatal("sending has active notifications")
	}

	updated := s.WithNotification("a", func(n *Notification) { n.Active = false })
	if s.Notifications[0].Active != true {
		t.Fatal("original list must not be mutated")
	}
	s.Notifications = updated
	s.Notifications[2].Active = false
	if !s.AllInactive() {
		t.Fatal("expected all inactive")
	}
}

func TestHistoryEntryMatches(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC)
	id := int64(42)
	sms := "SMS"
	entry := HistoryEntry{Status: ExternalStatusSent, DistributionID: &id, Channel: &sms, Timestamp: ts}

	sameID := int64(42)
	if !entry.Matches(ExternalStatusSent, &sameID, &sms, ts.Add(400*time.Microsecond)) {
		t.Fatal("expected match within the same millisecond")
	}
	if entry.Matches(ExternalStatusSent, &sameID, &sms, ts.Add(time.Millisecond)) {
		t.Fatal("expected no match on a different millisecond")
	}
	if entry.Matches(ExternalStatusSent, nil, &sms, ts) {
		t.Fatal("expected no match on missing distribution id")
	}
	if entry.Matches(ExternalStatusFailed, &sameID, &sms, ts) {
		t.Fatal("expected no match on different status")
	}
}

func TestStatusOverviewFirstAttempt(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	o := StatusOverview{History: []HistoryEntry{
		{Status: ExternalStatusOrdered, Timestamp: base.Add(-time.Hour)},
		{Status: ExternalStatusSent, Timestamp: base.Add(time.Hour)},
		{Status: ExternalStatusFailed, Timestamp: base},
	}}

	first, ok := o.FirstAttempt()
	if !ok || !first.Equal(base) {
		t.Fatalf("first attempt = %v, %v", first, ok)
	}

	if _, ok := (StatusOverview{}).FirstAttempt(); ok {
		t.Fatal("empty history has no attempt")
	}
}
