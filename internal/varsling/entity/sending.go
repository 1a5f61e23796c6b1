package entity

import (
	"time"

	"github.com/samber/lo"
)

type Producer struct {
	Cluster   string `json:"cluster"`
	Namespace string `json:"namespace"`
	AppName   string `json:"appnavn"`
}

// Notification is one request to externally notify a user about one upstream
// notification. It lives inside the notification list of its Sending.
type Notification struct {
	ID                string           `json:"varselId"`
	Type              NotificationType `json:"varseltype"`
	PreferredChannels []Channel        `json:"prefererteKanaler"`
	SMSText           *string          `json:"smsVarslingstekst,omitempty"`
	EmailTitle        *string          `json:"epostVarslingstittel,omitempty"`
	EmailBody         *string          `json:"epostVarslingstekst,omitempty"`
	Producer          Producer         `json:"produsent"`
	Active            bool             `json:"aktiv"`
	HandledByLegacy   bool             `json:"behandletAvLegacy"`
}

// Eligible reports whether the notification still takes part in dispatch.
func (n Notification) Eligible() bool {
	return n.Active && !n.HandledByLegacy
}

type Texts struct {
	SMS        string `json:"smsTekst"`
	EmailTitle string `json:"epostTittel"`
	EmailBody  string `json:"epostTekst"`
}

type Renotification struct {
	Count        int `json:"antallRevarslinger"`
	IntervalDays int `json:"revarslingsIntervall"`
}

func (r Renotification) Planned() bool {
	return r.Count > 0
}

// Order is the resolved dispatch outcome persisted when a sending is sent.
type Order struct {
	Channel        Channel        `json:"kanal"`
	Texts          Texts          `json:"tekster"`
	Renotification Renotification `json:"revarsling"`
	SentAt         time.Time      `json:"sendt"`
}

// Sending is the unit of dispatch: one or more notifications to one recipient
// over one decided channel.
type Sending struct {
	ID             string
	Recipient      string
	IsBatch        bool
	IsDeferred     bool
	Notifications  []Notification
	NotBefore      *time.Time
	CompletedAt    *time.Time
	Status         SendingStatus
	Order          *Order
	StatusOverview *StatusOverview
	CreatedAt      time.Time
	Version        int64
}

func (s Sending) EligibleNotifications() []Notification {
	return lo.Filter(s.Notifications, func(n Notification, _ int) bool {
		return n.Eligible()
	})
}

func (s Sending) AllInactive() bool {
	return lo.NoneBy(s.Notifications, func(n Notification) bool {
		return n.Active
	})
}

// HasRenotificationPlan reports whether the provider was told to repeat the sending.
func (s Sending) HasRenotificationPlan() bool {
	return s.Order != nil && s.Order.Renotification.Planned()
}

// Contains reports whether the sending holds the notification.
func (s Sending) Contains(notificationID string) bool {
	return lo.ContainsBy(s.Notifications, func(n Notification) bool {
		return n.ID == notificationID
	})
}

// WithNotification returns a copy of the notification list where fn has been
// applied to the notification with the given id.
func (s Sending) WithNotification(notificationID string, fn func(n *Notification)) []Notification {
	return lo.Map(s.Notifications, func(n Notification, _ int) Notification {
		if n.ID == notificationID {
			fn(&n)
		}
		return n
	})
}
