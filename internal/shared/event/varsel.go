package event

// VarselDestination is the topic carrying the notification platform's events,
// including status callbacks from the provider and our own status updates.
const VarselDestination string = "min-side.brukervarsel-v1"
const VarselDestinationConsumerEksternVarsling string = "ekstern-varsling-02"

// Values of @event_name on the varsel topic.
const (
	EventNameOpprettet                      = "opprettet"
	EventNameInaktivert                     = "inaktivert"
	EventNameEksternVarslingStatus          = "eksternVarslingStatus"
	EventNameEksternVarslingStatusOppdatert = "eksternVarslingStatusOppdatert"
)

// Envelope is decoded first to route a message by its event name.
type Envelope struct {
	EventName string `json:"@event_name"`
}

type Produsent struct {
	Cluster   string `json:"cluster"`
	Namespace string `json:"namespace"`
	Appnavn   string `json:"appnavn"`
}

type EksternVarslingBestilling struct {
	PrefererteKanaler    []string `json:"prefererteKanaler"`
	SmsVarslingstekst    *string  `json:"smsVarslingstekst"`
	EpostVarslingstittel *string  `json:"epostVarslingstittel"`
	EpostVarslingstekst  *string  `json:"epostVarslingstekst"`
	KanBatches           *bool    `json:"kanBatches"`
	UtsettSendingTil     *Time    `json:"utsettSendingTil"`
}

// OpprettetMessage announces a new notification. Only notifications with an
// external order are of interest.
type OpprettetMessage struct {
	Type                      string                     `json:"type"`
	VarselID                  string                     `json:"varselId"`
	Ident                     string                     `json:"ident"`
	EksternVarslingBestilling *EksternVarslingBestilling `json:"eksternVarslingBestilling"`
	Opprettet                 Time                       `json:"opprettet"`
	Produsent                 Produsent                  `json:"produsent"`
}

type InaktivertMessage struct {
	VarselID  string    `json:"varselId"`
	Produsent Produsent `json:"produsent"`
}

// EksternVarslingStatusMessage is a delivery callback from the provider.
// EventID holds the sending id for our own orders and the notification id for
// orders placed by the legacy orderer.
type EksternVarslingStatusMessage struct {
	EventID          string  `json:"eventId"`
	BestillerAppnavn string  `json:"bestillerAppnavn"`
	Status           string  `json:"status"`
	Melding          string  `json:"melding"`
	DistribusjonsID  *int64  `json:"distribusjonsId"`
	Kanal            *string `json:"kanal"`
	Tidspunkt        *Time   `json:"tidspunkt"`
	TidspunktZ       *Time   `json:"tidspunktZ"`
}

// EksternVarslingStatusOppdatertMessage is broadcast for every change of
// external status of a notification. Keyed by varselId.
type EksternVarslingStatusOppdatertMessage struct {
	EventName      string    `json:"@event_name"`
	Status         string    `json:"status"`
	VarselID       string    `json:"varselId"`
	Ident          string    `json:"ident"`
	Kanal          *string   `json:"kanal"`
	Renotifikasjon *bool     `json:"renotifikasjon"`
	Batch          *bool     `json:"batch"`
	Varseltype     string    `json:"varseltype"`
	Produsent      Produsent `json:"produsent"`
	Feilmelding    *string   `json:"feilmelding"`
	Tidspunkt      Time      `json:"tidspunkt"`
}
