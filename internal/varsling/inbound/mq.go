package inbound

import (
	"context"
	"log/slog"
	"slices"

	"github.com/shandysiswandi/eksternvarsling/internal/pkg/config"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/goroutine"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/instrument"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/messaging"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/uid"
	"github.com/shandysiswandi/eksternvarsling/internal/shared/event"
)

const defaultConsumerConcurrency = 10

// RegisterMQConsumer starts the varsel topic consumer when its name is listed
// in modules.varsling.consumer_names.
func RegisterMQConsumer(
	ctx context.Context,
	cfg config.Config,
	routine *goroutine.Manager,
	messenger messaging.Messaging,
	uuid uid.StringID,
	uc ucConsumer,
	ins instrument.Instrumentation,
) {
	name := event.VarselDestinationConsumerEksternVarsling
	if !slices.Contains(cfg.GetArray("modules.varsling.consumer_names"), name) {
		slog.WarnContext(ctx, "varsel consumer disabled", "consumer", name)
		return
	}

	topic := cfg.GetString("modules.varsling.topics.varsel")
	if topic == "" {
		topic = event.VarselDestination
	}

	concurrency := cfg.GetInt("modules.varsling.consumer.concurrency")
	if concurrency <= 0 {
		concurrency = defaultConsumerConcurrency
	}

	opts := []messaging.ConsumeOption{
		messaging.WithGroup(name),
		messaging.WithSubscription(name),
		messaging.WithAutoAck(true),
		messaging.WithConcurrency(concurrency),
		messaging.WithMaxInFlight(concurrency),
	}
	if attempts := cfg.GetInt("modules.varsling.consumer.redeliveries"); attempts != 0 {
		opts = append(opts, messaging.WithRedelivery(attempts, cfg.GetSecond("modules.varsling.consumer.redelivery_wait_seconds")))
	}

	h := &MQHandler{uc: uc, uuid: uuid, ins: ins}
	routine.Go(ctx, name, func(ctx context.Context) error {
		slog.InfoContext(ctx, "consuming varsel topic", "consumer", name, "topic", topic, "concurrency", concurrency)
		return messenger.Consume(ctx, topic, h.Varsel, opts...)
	})
}
