package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shandysiswandi/eksternvarsling/internal/pkg/instrument"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/messaging"
	"github.com/shandysiswandi/eksternvarsling/internal/shared/event"
	"github.com/shandysiswandi/eksternvarsling/internal/varsling/entity"
)

type published struct {
	topic string
	msg   messaging.OutgoingMessage
}

type fakeClient struct {
	sent []published
	err  error
}

func (f *fakeClient) Publish(_ context.Context, destination string, msg messaging.OutgoingMessage) (messaging.PublishResult, error) {
	if f.err != nil {
		return messaging.PublishResult{}, f.err
	}
	f.sent = append(f.sent, published{topic: destination, msg: msg})
	return messaging.PublishResult{}, nil
}

func (f *fakeClient) Consume(context.Context, string, messaging.Handler, ...messaging.ConsumeOption) error {
	return nil
}

func (f *fakeClient) Close() error { return nil }

func newTestMessaging(t *testing.T, client *fakeClient) *Messaging {
	t.Helper()
	m, err := NewMessaging(client, Topics{}, instrument.NewNoop())
	if err != nil {
		t.Fatalf("new messaging: %v", err)
	}
	return m
}

func header(msg messaging.OutgoingMessage, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestPublishStatusUpdate(t *testing.T) {
	client := &fakeClient{}
	m := newTestMessaging(t, client)

	ctx := instrument.SetCorrelationID(context.Background(), "cid-1")
	sms := "SMS"
	batch := true
	failure := "ugyldig nummer"
	err := m.PublishStatusUpdate(ctx, entity.StatusUpdate{
		Status:         entity.ExternalStatusFailed,
		NotificationID: "v1",
		Recipient:      "12345678910",
		Channel:        &sms,
		Batch:          &batch,
		Type:           entity.NotificationTypeTask,
		Producer:       entity.Producer{Cluster: "c", Namespace: "n", AppName: "a"},
		FailureMessage: &failure,
		Timestamp:      time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(client.sent) != 1 {
		t.Fatalf("sent = %d", len(client.sent))
	}
	got := client.sent[0]
	if got.topic != event.VarselDestination || string(got.msg.Key) != "v1" {
		t.Fatalf("topic %q key %q", got.topic, got.msg.Key)
	}
	if header(got.msg, keyOfCorrelationID) != "cid-1" {
		t.Fatal("correlation id not propagated")
	}

	var body map[string]any
	if err := json.Unmarshal(got.msg.Body, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := map[string]any{
		"@event_name": "eksternVarslingStatusOppdatert",
		"status":      "feilet",
		"varseltype":  "oppgave",
		"feilmelding": failure,
		"kanal":       "SMS",
		"batch":       true,
		"tidspunkt":   "2024-05-02T10:00:00Z",
	}
	for k, v := range want {
		if body[k] != v {
			t.Fatalf("%s = %v, want %v", k, body[k], v)
		}
	}
	if body["renotifikasjon"] != nil {
		t.Fatal("absent renotifikasjon must encode as null")
	}
}

func TestPublishOrder(t *testing.T) {
	client := &fakeClient{}
	m := newTestMessaging(t, client)

	err := m.PublishOrder(context.Background(),
		entity.Sending{ID: "s1", Recipient: "12345678910"},
		entity.Order{
			Channel:        entity.ChannelEmail,
			Texts:          entity.Texts{SMS: "sms", EmailTitle: "tittel", EmailBody: "<!DOCTYPE html>"},
			Renotification: entity.Renotification{Count: 1, IntervalDays: 7},
		})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	got := client.sent[0]
	if got.topic != event.DoknotifikasjonDestination || string(got.msg.Key) != "s1" {
		t.Fatalf("topic %q key %q", got.topic, got.msg.Key)
	}

	var msg event.DoknotifikasjonMessage
	if err := json.Unmarshal(got.msg.Body, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.BestillerID != event.BestillerID || msg.Fodselsnummer != "12345678910" {
		t.Fatalf("msg = %+v", msg)
	}
	if len(msg.PrefererteKanaler) != 1 || msg.PrefererteKanaler[0] != "EPOST" {
		t.Fatalf("kanaler = %v", msg.PrefererteKanaler)
	}
	if msg.AntallRenotifikasjoner != 1 || msg.RenotifikasjonIntervall != 7 {
		t.Fatalf("renotification = %d/%d", msg.AntallRenotifikasjoner, msg.RenotifikasjonIntervall)
	}
}

func TestPublishStop(t *testing.T) {
	client := &fakeClient{}
	m, err := NewMessaging(client, Topics{Stop: "stopp"}, instrument.NewNoop())
	if err != nil {
		t.Fatalf("new messaging: %v", err)
	}

	if err := m.PublishStop(context.Background(), "s1"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if client.sent[0].topic != "stopp" || string(client.sent[0].msg.Key) != "s1" {
		t.Fatalf("sent = %+v", client.sent[0])
	}

	client.err = errors.New("down")
	if err := m.PublishStop(context.Background(), "s1"); err == nil {
		t.Fatal("expected publish error")
	}
}
