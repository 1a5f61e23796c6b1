package varsling

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/clock"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/config"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/goroutine"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/idempotency"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/instrument"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/leader"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/messaging"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/router"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/uid"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/validator"
	"github.com/shandysiswandi/eksternvarsling/internal/varsling/inbound"
	"github.com/shandysiswandi/eksternvarsling/internal/varsling/outbound/db"
	"github.com/shandysiswandi/eksternvarsling/internal/varsling/outbound/mq"
	"github.com/shandysiswandi/eksternvarsling/internal/varsling/usecase"
)

type Dependency struct {
	Ctx         context.Context
	DBConn      *pgxpool.Pool
	Messaging   messaging.Messaging
	Idempotency idempotency.Idempotency
	Leader      leader.Elector
	Config      config.Config
	Instrument  instrument.Instrumentation
	UUID        uid.StringID
	Clock       clock.Clocker
	Goroutine   *goroutine.Manager
	Validator   validator.Validator
	Router      *router.Router
}

func New(dep Dependency) error {
	dbVarsling := db.NewDB(dep.DBConn, dep.Instrument)

	mqVarsling, err := mq.NewMessaging(dep.Messaging, mq.Topics{
		Varsel: dep.Config.GetString("modules.varsling.topics.varsel"),
		Order:  dep.Config.GetString("modules.varsling.topics.doknotifikasjon"),
		Stop:   dep.Config.GetString("modules.varsling.topics.doknotifikasjon_stopp"),
	}, dep.Instrument)
	if err != nil {
		return fmt.Errorf("outbound mq: %w", err)
	}

	decider, err := usecase.NewChannelDecider(
		dep.Config.GetString("modules.varsling.sms_window.start"),
		dep.Config.GetString("modules.varsling.sms_window.end"),
		dep.Config.GetString("modules.varsling.sms_window.timezone"),
		dep.Clock,
	)
	if err != nil {
		return err
	}

	uc := usecase.NewVarsling(usecase.Dependency{
		RepoDB:         dbVarsling,
		RepoMQ:         mqVarsling,
		Idempotency:    dep.Idempotency,
		Config:         dep.Config,
		UUID:           dep.UUID,
		Clock:          dep.Clock,
		Validator:      dep.Validator,
		ChannelDecider: decider,
		Instrument:     dep.Instrument,
	})

	job := inbound.NewDispatchJob(uc, dep.Leader, dep.Clock, dep.Config.GetSecond("modules.varsling.dispatch.interval_seconds"))

	probes := []inbound.Liveness{dep.Goroutine}
	if dep.Config.GetBool("modules.varsling.dispatch.enabled") {
		probes = append(probes, job)
		dep.Goroutine.Go(dep.Ctx, "dispatch-job", job.Run)
	}

	inbound.RegisterHTTPEndpoint(dep.Router, uc, probes...)
	inbound.RegisterMQConsumer(dep.Ctx, dep.Config, dep.Goroutine, dep.Messaging, dep.UUID, uc, dep.Instrument)

	return nil
}
