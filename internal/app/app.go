package app

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
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
)

// App owns the process wide resources of the service. ctx lives until Stop
// and bounds every consumer and the dispatch job.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	config config.Config
	ins    instrument.Instrumentation

	goroutine *goroutine.Manager
	validator validator.Validator
	clock     clock.Clocker
	uuid      uid.StringID

	dbConn    *pgxpool.Pool
	cacheConn *redis.Client
	idemp     idempotency.Idempotency
	leader    leader.Elector
	lease     *leader.RedisLease
	messaging messaging.Messaging

	router     *router.Router
	httpServer *http.Server

	closers []closer
}

type closer struct {
	name string
	fn   func(context.Context) error
}

// New builds the App. Any failure is logged and exits the process, since a
// half wired instance must not join the consumer group.
func New() *App {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{ctx: ctx, cancel: cancel}

	for _, step := range []func(){
		a.initConfig,
		a.initInstrument,
		a.initLibraries,
		a.initDatabase,
		a.initCache,
		a.initLeader,
		a.initMessaging,
		a.initHTTPServer,
		a.initModules,
		a.initClosers,
	} {
		step()
	}

	return a
}
