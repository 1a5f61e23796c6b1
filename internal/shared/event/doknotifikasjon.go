package event

// BestillerID identifies this service towards the provider.
const BestillerID string = "tms-ekstern-varsling"

const DoknotifikasjonDestination string = "teamdokumenthandtering.privat-dok-notifikasjon"
const DoknotifikasjonStoppDestination string = "teamdokumenthandtering.privat-dok-notifikasjon-stopp"

// DoknotifikasjonMessage orders one external notification from the provider.
// Keyed by bestillingsId, which is the sending id.
type DoknotifikasjonMessage struct {
	BestillingsID           string   `json:"bestillingsId"`
	BestillerID             string   `json:"bestillerId"`
	Fodselsnummer           string   `json:"fodselsnummer"`
	Tittel                  string   `json:"tittel"`
	EpostTekst              string   `json:"epostTekst"`
	SmsTekst                string   `json:"smsTekst"`
	AntallRenotifikasjoner  int      `json:"antallRenotifikasjoner"`
	RenotifikasjonIntervall int      `json:"renotifikasjonIntervall"`
	PrefererteKanaler       []string `json:"prefererteKanaler"`
}

// DoknotifikasjonStoppMessage cancels pending renotifications of an order.
type DoknotifikasjonStoppMessage struct {
	BestillingsID string `json:"bestillingsId"`
	BestillerID   string `json:"bestillerId"`
}
