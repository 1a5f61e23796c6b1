package inbound

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shandysiswandi/eksternvarsling/internal/pkg/messaging"
	"github.com/shandysiswandi/eksternvarsling/internal/varsling/entity"
	"github.com/shandysiswandi/eksternvarsling/internal/varsling/usecase"
)

type fakeUC struct {
	mu sync.Mutex

	ingested    []usecase.IngestInput
	inactivated []string
	legacy      []string
	statuses    []entity.ProviderStatus
	dispatches  int

	err      error
	readyErr error
}

func (f *fakeUC) Ingest(_ context.Context, in usecase.IngestInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingested = append(f.ingested, in)
	return f.err
}

func (f *fakeUC) Inactivate(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inactivated = append(f.inactivated, id)
	return f.err
}

func (f *fakeUC) MarkHandledByLegacy(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.legacy = append(f.legacy, id)
	return f.err
}

func (f *fakeUC) ReconcileStatus(_ context.Context, in entity.ProviderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, in)
	return f.err
}

func (f *fakeUC) DispatchDue(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatches++
	return f.err
}

func (f *fakeUC) Ready(context.Context) error { return f.readyErr }

func (f *fakeUC) dispatchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dispatches
}

type fakeMessage struct {
	body    []byte
	headers []messaging.Header
}

func (m fakeMessage) Body() []byte                { return m.body }
func (m fakeMessage) Key() []byte                 { return nil }
func (m fakeMessage) Headers() []messaging.Header { return m.headers }
func (m fakeMessage) ID() string                  { return "" }
func (m fakeMessage) Topic() string               { return "" }
func (m fakeMessage) Timestamp() time.Time        { return time.Time{} }
func (m fakeMessage) Ack(context.Context) error   { return nil }

type fixedID string

func (f fixedID) Generate() string { return string(f) }

type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

var errBoom = errors.New("boom")
