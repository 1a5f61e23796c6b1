package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/eksternvarsling/internal/pkg/goerror"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/instrument"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/messaging"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/uid"
	"github.com/shandysiswandi/eksternvarsling/internal/shared/event"
	"github.com/shandysiswandi/eksternvarsling/internal/varsling/entity"
	"github.com/shandysiswandi/eksternvarsling/internal/varsling/usecase"
)

const keyOfCorrelationID string = "cID"

type MQHandler struct {
	uc   ucConsumer
	uuid uid.StringID
	ins  instrument.Instrumentation
}

func (h *MQHandler) ensureCorrelationID(ctx context.Context, headers []messaging.Header) context.Context {
	for i := range headers {
		if headers[i].Key == keyOfCorrelationID && len(headers[i].Value) > 0 {
			return instrument.SetCorrelationID(ctx, string(headers[i].Value))
		}
	}
	return instrument.SetCorrelationID(ctx, h.uuid.Generate())
}

// Varsel routes a message of the varsel topic by its @event_name. Events this
// service does not handle are acked untouched.
func (h *MQHandler) Varsel(ctx context.Context, msg messaging.Message) error {
	ctx = h.ensureCorrelationID(ctx, msg.Headers())

	ctx, span := h.ins.Tracer("varsling.inbound.mq").Start(ctx, "Varsel")
	defer span.End()

	body := msg.Body()

	var envelope event.Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		slog.ErrorContext(ctx, "failed to parse envelope of varsel message", "error", err)
		return nil
	}

	switch envelope.EventName {
	case event.EventNameOpprettet:
		return h.opprettet(ctx, body)
	case event.EventNameInaktivert:
		return h.inaktivert(ctx, body)
	case event.EventNameEksternVarslingStatus:
		return h.eksternStatus(ctx, body)
	default:
		return nil
	}
}

func (h *MQHandler) opprettet(ctx context.Context, body []byte) error {
	var payload event.OpprettetMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse message body of opprettet", "error", err)
		return nil
	}

	order := payload.EksternVarslingBestilling
	if order == nil {
		return nil
	}

	slog.InfoContext(ctx, "consume: varsel opprettet", "varsel_id", payload.VarselID, "produsent", payload.Produsent.Appnavn)

	typ, err := entity.NotificationTypeFromString(payload.Type)
	if err != nil {
		slog.ErrorContext(ctx, "unsupported varsel type, skipping", "varsel_id", payload.VarselID, "error", err)
		return nil
	}

	channels := make([]entity.Channel, 0, len(order.PrefererteKanaler))
	for _, raw := range order.PrefererteKanaler {
		channel, err := entity.ChannelFromString(raw)
		if err != nil {
			slog.ErrorContext(ctx, "unsupported channel, skipping", "varsel_id", payload.VarselID, "error", err)
			return nil
		}
		channels = append(channels, channel)
	}

	in := usecase.IngestInput{
		NotificationID:    payload.VarselID,
		Recipient:         payload.Ident,
		Type:              typ,
		PreferredChannels: channels,
		SMSText:           order.SmsVarslingstekst,
		EmailTitle:        order.EpostVarslingstittel,
		EmailBody:         order.EpostVarslingstekst,
		CanBatch:          order.KanBatches != nil && *order.KanBatches,
		CreatedAt:         payload.Opprettet.Time,
		Producer: entity.Producer{
			Cluster:   payload.Produsent.Cluster,
			Namespace: payload.Produsent.Namespace,
			AppName:   payload.Produsent.Appnavn,
		},
	}
	if order.UtsettSendingTil != nil {
		in.DeferUntil = &order.UtsettSendingTil.Time
	}

	err = h.uc.Ingest(ctx, in)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, usecase.ErrDuplicateNotification):
		slog.InfoContext(ctx, "varsel already registered, skipping", "varsel_id", payload.VarselID)
		return nil
	case goerror.IsType(err, goerror.TypeValidation):
		slog.WarnContext(ctx, "varsel rejected by validation", "varsel_id", payload.VarselID, "error", err)
		return nil
	default:
		slog.ErrorContext(ctx, "failed to ingest varsel", "varsel_id", payload.VarselID, "error", err)
		return err
	}
}

func (h *MQHandler) inaktivert(ctx context.Context, body []byte) error {
	var payload event.InaktivertMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse message body of inaktivert", "error", err)
		return nil
	}

	slog.InfoContext(ctx, "consume: varsel inaktivert", "varsel_id", payload.VarselID)

	if err := h.uc.Inactivate(ctx, payload.VarselID); err != nil {
		slog.ErrorContext(ctx, "failed to inactivate varsel", "varsel_id", payload.VarselID, "error", err)
		return err
	}

	return nil
}

func (h *MQHandler) eksternStatus(ctx context.Context, body []byte) error {
	var payload event.EksternVarslingStatusMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse message body of ekstern varsling status", "error", err)
		return nil
	}

	if payload.BestillerAppnavn != event.BestillerID {
		return h.legacyStatus(ctx, payload)
	}

	ts, ok := statusTime(payload)
	if !ok {
		slog.ErrorContext(ctx, "ekstern varsling status without timestamp, skipping", "sending_id", payload.EventID)
		return nil
	}

	slog.InfoContext(ctx, "consume: ekstern varsling status", "sending_id", payload.EventID, "status", payload.Status)

	if err := h.uc.ReconcileStatus(ctx, entity.ProviderStatus{
		SendingID:      payload.EventID,
		OrdererApp:     payload.BestillerAppnavn,
		Status:         payload.Status,
		Message:        payload.Melding,
		DistributionID: payload.DistribusjonsID,
		Channel:        payload.Kanal,
		Timestamp:      ts,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to reconcile ekstern varsling status", "sending_id", payload.EventID, "error", err)
		return err
	}

	return nil
}

// legacyStatus handles statuses of orders placed by the legacy orderer. Only
// forwarded and failed orders mean the legacy path took the notification.
func (h *MQHandler) legacyStatus(ctx context.Context, payload event.EksternVarslingStatusMessage) error {
	if payload.Status != entity.ProviderStatusForwarded && payload.Status != entity.ProviderStatusFailed {
		return nil
	}

	slog.InfoContext(ctx, "consume: legacy ekstern varsling status", "varsel_id", payload.EventID, "bestiller", payload.BestillerAppnavn)

	if err := h.uc.MarkHandledByLegacy(ctx, payload.EventID); err != nil {
		slog.ErrorContext(ctx, "failed to mark varsel handled by legacy", "varsel_id", payload.EventID, "error", err)
		return err
	}

	return nil
}

func statusTime(payload event.EksternVarslingStatusMessage) (time.Time, bool) {
	switch {
	case payload.TidspunktZ != nil:
		return payload.TidspunktZ.UTC(), true
	case payload.Tidspunkt != nil:
		return payload.Tidspunkt.UTC(), true
	default:
		return time.Time{}, false
	}
}
