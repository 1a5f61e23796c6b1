package usecase

import (
	"embed"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/shandysiswandi/eksternvarsling/internal/varsling/entity"
)

const placeholder = "{{VARSELTEKST}}"

const (
	emailTemplate = "<!DOCTYPE html><html><head><title>Varsel</title></head><body>" + placeholder + "</body></html>\n"

	batchEmailTemplate = "<!DOCTYPE html><html><head><title>Varsel</title></head><body>" +
		"<p>Hei!</p><p>Du har fått " + placeholder + " fra Nav. Logg inn på Nav for å se hva det gjelder.</p>" +
		"<p>Vennlig hilsen</p><p>Nav</p></body></html>\n"

	batchSMS        = "Hei! Du har fått %s fra Nav. Logg inn på Nav for å se hva det gjelder. Vennlig hilsen Nav"
	batchEmailTitle = "Du har fått varsler fra Nav"
)

//go:embed texts/*.html
var textFiles embed.FS

var standardTexts = map[entity.NotificationType]entity.Texts{
	entity.NotificationTypeTask: {
		SMS:        "Hei! Du har fått en ny oppgave fra Nav. Logg inn på Nav for å se hva oppgaven gjelder. Vennlig hilsen Nav",
		EmailTitle: "Du har fått en oppgave fra Nav",
		EmailBody:  mustReadText("texts/epost_oppgave.html"),
	},
	entity.NotificationTypeMessage: {
		SMS:        "Hei! Du har fått en ny beskjed fra Nav. Logg inn på Nav for å se hva beskjeden gjelder. Vennlig hilsen Nav",
		EmailTitle: "Beskjed fra Nav",
		EmailBody:  mustReadText("texts/epost_beskjed.html"),
	},
	entity.NotificationTypeInbox: {
		SMS:        "Hei! Du har fått en ny melding fra Nav. Logg inn på Nav for å lese meldingen. Vennlig hilsen Nav",
		EmailTitle: "Du har fått en melding fra Nav",
		EmailBody:  mustReadText("texts/epost_innboks.html"),
	},
}

func mustReadText(name string) string {
	b, err := textFiles.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("missing embedded text %s: %v", name, err))
	}
	return string(b)
}

// ResolveTexts returns the texts sent to the provider for the eligible
// notifications of a sending. It expects at least one eligible notification.
func ResolveTexts(sending entity.Sending) entity.Texts {
	eligible := sending.EligibleNotifications()
	if len(eligible) == 1 {
		return singleTexts(eligible[0])
	}
	return batchTexts(eligible)
}

func singleTexts(n entity.Notification) entity.Texts {
	texts := standardTexts[n.Type]

	if n.SMSText != nil {
		texts.SMS = *n.SMSText
	}
	if n.EmailTitle != nil {
		texts.EmailTitle = *n.EmailTitle
	}
	if n.EmailBody != nil {
		texts.EmailBody = WrapEmailBody(*n.EmailBody)
	}

	return texts
}

// WrapEmailBody puts a bare text into the e-mail HTML frame. Text that already
// is a full HTML document is returned unchanged.
func WrapEmailBody(text string) string {
	if strings.Contains(text, "<!DOCTYPE html>") {
		return text
	}
	return strings.Replace(emailTemplate, placeholder, text, 1)
}

func batchTexts(eligible []entity.Notification) entity.Texts {
	counts := lo.CountValuesBy(eligible, func(n entity.Notification) string {
		return n.Type.Alias()
	})
	aliases := lo.Uniq(lo.Map(eligible, func(n entity.Notification, _ int) string {
		return n.Type.Alias()
	}))

	phrase := strings.Join(lo.Map(aliases, func(alias string, _ int) string {
		return fmt.Sprintf("%d %s(er)", counts[alias], alias)
	}), " og ")

	return entity.Texts{
		SMS:        fmt.Sprintf(batchSMS, phrase),
		EmailTitle: batchEmailTitle,
		EmailBody:  strings.Replace(batchEmailTemplate, placeholder, phrase, 1),
	}
}

// RenotificationPlan returns how often the provider repeats an unread sending.
// Batches are never repeated.
func RenotificationPlan(sending entity.Sending) entity.Renotification {
	eligible := sending.EligibleNotifications()
	if len(eligible) != 1 {
		return entity.Renotification{}
	}
	return eligible[0].Type.Renotification()
}
