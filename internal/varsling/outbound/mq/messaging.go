package mq

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shandysiswandi/eksternvarsling/internal/pkg/instrument"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/messaging"
	"github.com/shandysiswandi/eksternvarsling/internal/shared/event"
	"github.com/shandysiswandi/eksternvarsling/internal/varsling/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const keyOfCorrelationID string = "cID"

// Topics names the destinations the module publishes to.
type Topics struct {
	Varsel string
	Order  string
	Stop   string
}

func (t Topics) withDefaults() Topics {
	if t.Varsel == "" {
		t.Varsel = event.VarselDestination
	}
	if t.Order == "" {
		t.Order = event.DoknotifikasjonDestination
	}
	if t.Stop == "" {
		t.Stop = event.DoknotifikasjonStoppDestination
	}
	return t
}

type Messaging struct {
	client messaging.Messaging
	topics Topics
	ins    instrument.Instrumentation

	statusCounter metric.Int64Counter
	sentCounter   metric.Int64Counter
}

func NewMessaging(client messaging.Messaging, topics Topics, ins instrument.Instrumentation) (*Messaging, error) {
	meter := ins.Meter("varsling.outbound.mq")

	statusCounter, err := meter.Int64Counter("ekstern_varsling_status_oppdatert",
		metric.WithDescription("Status updates published per notification"))
	if err != nil {
		return nil, err
	}
	sentCounter, err := meter.Int64Counter("ekstern_varsling_sendt",
		metric.WithDescription("Sendings handed to the provider"))
	if err != nil {
		return nil, err
	}

	return &Messaging{
		client:        client,
		topics:        topics.withDefaults(),
		ins:           ins,
		statusCounter: statusCounter,
		sentCounter:   sentCounter,
	}, nil
}

func (m *Messaging) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return m.ins.Tracer("varsling.outbound.mq").Start(ctx, name)
}

func (m *Messaging) publish(ctx context.Context, span trace.Span, topic, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	cID := instrument.GetCorrelationID(ctx)
	if _, err := m.client.Publish(ctx, topic, messaging.OutgoingMessage{
		Body:    body,
		Key:     []byte(key),
		Headers: []messaging.Header{{Key: keyOfCorrelationID, Value: []byte(cID)}},
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func (m *Messaging) PublishStatusUpdate(ctx context.Context, in entity.StatusUpdate) error {
	ctx, span := m.startSpan(ctx, "PublishStatusUpdate")
	defer span.End()

	msg := event.EksternVarslingStatusOppdatertMessage{
		EventName:      event.EventNameEksternVarslingStatusOppdatert,
		Status:         strings.ToLower(in.Status.String()),
		VarselID:       in.NotificationID,
		Ident:          in.Recipient,
		Kanal:          in.Channel,
		Renotifikasjon: in.Renotification,
		Batch:          in.Batch,
		Varseltype:     strings.ToLower(in.Type.String()),
		Produsent: event.Produsent{
			Cluster:   in.Producer.Cluster,
			Namespace: in.Producer.Namespace,
			Appnavn:   in.Producer.AppName,
		},
		Feilmelding: in.FailureMessage,
		Tidspunkt:   event.Time{Time: in.Timestamp},
	}

	if err := m.publish(ctx, span, m.topics.Varsel, in.NotificationID, msg); err != nil {
		return err
	}

	m.statusCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("varseltype", msg.Varseltype),
		attribute.String("status", msg.Status),
		attribute.String("kanal", strings.ToLower(valueOr(in.Channel, ""))),
		attribute.String("renotifikasjon", boolLabel(in.Renotification)),
		attribute.String("batch", boolLabel(in.Batch)),
	))
	return nil
}

func (m *Messaging) PublishOrder(ctx context.Context, sending entity.Sending, order entity.Order) error {
	ctx, span := m.startSpan(ctx, "PublishOrder")
	defer span.End()

	msg := event.DoknotifikasjonMessage{
		BestillingsID:           sending.ID,
		BestillerID:             event.BestillerID,
		Fodselsnummer:           sending.Recipient,
		Tittel:                  order.Texts.EmailTitle,
		EpostTekst:              order.Texts.EmailBody,
		SmsTekst:                order.Texts.SMS,
		AntallRenotifikasjoner:  order.Renotification.Count,
		RenotifikasjonIntervall: order.Renotification.IntervalDays,
		PrefererteKanaler:       []string{order.Channel.String()},
	}

	if err := m.publish(ctx, span, m.topics.Order, sending.ID, msg); err != nil {
		return err
	}

	m.sentCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kanal", strings.ToLower(order.Channel.String())),
		attribute.String("batch", strconv.FormatBool(sending.IsBatch)),
	))
	return nil
}

func (m *Messaging) PublishStop(ctx context.Context, sendingID string) error {
	ctx, span := m.startSpan(ctx, "PublishStop")
	defer span.End()

	return m.publish(ctx, span, m.topics.Stop, sendingID, event.DoknotifikasjonStoppMessage{
		BestillingsID: sendingID,
		BestillerID:   event.BestillerID,
	})
}

func valueOr[T any](v *T, fallback T) T {
	if v == nil {
		return fallback
	}
	return *v
}

// boolLabel renders an optional flag as a metric label; absent is "".
func boolLabel(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}
