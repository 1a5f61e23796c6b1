package main

import (
	"context"
	"time"

	"github.com/shandysiswandi/eksternvarsling/internal/app"
)

const shutdownTimeout = 20 * time.Second

func main() {
	a := app.New()
	<-a.Start()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.Stop(ctx)
}
