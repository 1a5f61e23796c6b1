package app

import (
	"log/slog"
	"os"

	"github.com/shandysiswandi/eksternvarsling/internal/varsling"
)

func (a *App) initModules() {
	if a.config.GetBool("modules.varsling.enabled") {
		if err := varsling.New(varsling.Dependency{
			Ctx:         a.ctx,
			DBConn:      a.dbConn,
			Messaging:   a.messaging,
			Idempotency: a.idemp,
			Leader:      a.leader,
			Config:      a.config,
			Instrument:  a.ins,
			UUID:        a.uuid,
			Clock:       a.clock,
			Goroutine:   a.goroutine,
			Validator:   a.validator,
			Router:      a.router,
		}); err != nil {
			slog.Error("failed to init module varsling", "error", err)
			os.Exit(1)
		}
	}
}
