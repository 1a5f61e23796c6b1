package entity

import (
	"fmt"
	"strings"
)

// Channel is a delivery channel understood by the provider.
type Channel string

const (
	ChannelEmail Channel = "EPOST"
	ChannelSMS   Channel = "SMS"
	// ChannelConditionalSMS means SMS inside the daytime window, e-mail outside it.
	ChannelConditionalSMS Channel = "BETINGET_SMS"
)

func ChannelFromString(raw string) (Channel, error) {
	switch Channel(strings.ToUpper(strings.TrimSpace(raw))) {
	case ChannelEmail:
		return ChannelEmail, nil
	case ChannelSMS:
		return ChannelSMS, nil
	case ChannelConditionalSMS:
		return ChannelConditionalSMS, nil
	default:
		return "", fmt.Errorf("unknown channel %q", raw)
	}
}

func (c Channel) String() string {
	return string(c)
}

// NotificationType is the kind of upstream notification a Notification refers to.
type NotificationType string

const (
	NotificationTypeTask    NotificationType = "oppgave"
	NotificationTypeMessage NotificationType = "beskjed"
	NotificationTypeInbox   NotificationType = "innboks"
)

func NotificationTypeFromString(raw string) (NotificationType, error) {
	switch NotificationType(strings.ToLower(strings.TrimSpace(raw))) {
	case NotificationTypeTask:
		return NotificationTypeTask, nil
	case NotificationTypeMessage:
		return NotificationTypeMessage, nil
	case NotificationTypeInbox:
		return NotificationTypeInbox, nil
	default:
		return "", fmt.Errorf("unknown notification type %q", raw)
	}
}

func (t NotificationType) String() string {
	return string(t)
}

type typeProfile struct {
	alias          string
	renotification Renotification
}

var typeProfiles = map[NotificationType]typeProfile{
	NotificationTypeTask:    {alias: "oppgave", renotification: Renotification{Count: 1, IntervalDays: 7}},
	NotificationTypeMessage: {alias: "beskjed"},
	NotificationTypeInbox:   {alias: "beskjed", renotification: Renotification{Count: 1, IntervalDays: 4}},
}

// Alias is the word used for the type in user facing summary texts.
// Inbox notifications are presented as messages.
func (t NotificationType) Alias() string {
	return typeProfiles[t].alias
}

// Renotification returns the provider side repeat plan for a sending holding
// only this type of notification.
func (t NotificationType) Renotification() Renotification {
	return typeProfiles[t].renotification
}

// SendingStatus is the dispatch state of a Sending.
type SendingStatus string

const (
	SendingStatusWaiting   SendingStatus = "Venter"
	SendingStatusSent      SendingStatus = "Sendt"
	SendingStatusCancelled SendingStatus = "Kansellert"
)

func (s SendingStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the scheduler is done with the sending.
func (s SendingStatus) IsTerminal() bool {
	return s == SendingStatusSent || s == SendingStatusCancelled
}

// ExternalStatus is the normalized provider status stored in the status history
// and broadcast downstream.
type ExternalStatus string

const (
	ExternalStatusInfo      ExternalStatus = "Info"
	ExternalStatusOrdered   ExternalStatus = "Bestilt"
	ExternalStatusSent      ExternalStatus = "Sendt"
	ExternalStatusCompleted ExternalStatus = "Ferdigstilt"
	ExternalStatusFailed    ExternalStatus = "Feilet"
	ExternalStatusCancelled ExternalStatus = "Kansellert"
	ExternalStatusWaiting   ExternalStatus = "Venter"
)

func (s ExternalStatus) String() string {
	return string(s)
}

// Raw provider status codes.
const (
	ProviderStatusCompleted = "FERDIGSTILT"
	ProviderStatusInfo      = "INFO"
	ProviderStatusFailed    = "FEILET"
	ProviderStatusForwarded = "OVERSENDT"
)
