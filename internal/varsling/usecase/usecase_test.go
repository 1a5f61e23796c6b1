package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/goerror"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/idempotency"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/instrument"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/validator"
	"github.com/shandysiswandi/eksternvarsling/internal/varsling/entity"
)

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

type seqID struct {
	mu sync.Mutex
	n  int
}

func (s *seqID) Generate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("batch-%d", s.n)
}

type fakeConfig struct {
	bools   map[string]bool
	ints    map[string]int
	minutes map[string]time.Duration
}

func (c fakeConfig) GetBool(key string) bool            { return c.bools[key] }
func (c fakeConfig) GetInt(key string) int              { return c.ints[key] }
func (c fakeConfig) GetMinute(key string) time.Duration { return c.minutes[key] }

// fakeDB keeps sendings in memory with the same conflict rules as the
// postgres repository.
type fakeDB struct {
	mu       sync.Mutex
	sendings map[string]*entity.Sending
	order    []string
	// conflicts makes the next n writes fail with ErrConflict.
	conflicts int
}

func newFakeDB() *fakeDB {
	return &fakeDB{sendings: map[string]*entity.Sending{}}
}

func (f *fakeDB) clone(s *entity.Sending) *entity.Sending {
	c := *s
	c.Notifications = append([]entity.Notification{}, s.Notifications...)
	return &c
}

func (f *fakeDB) conflict() bool {
	if f.conflicts > 0 {
		f.conflicts--
		return true
	}
	return false
}

func (f *fakeDB) Ping(context.Context) error { return nil }

func (f *fakeDB) NotificationExists(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sendings {
		if s.Contains(id) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDB) FindOpenBatch(_ context.Context, recipient string, now time.Time) (*entity.Sending, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.order {
		s := f.sendings[id]
		if s.Recipient == recipient && s.IsBatch && !s.IsDeferred && s.CompletedAt == nil && collecting(s, now) {
			return f.clone(s), nil
		}
	}
	return nil, goerror.ErrNotFound
}

func collecting(s *entity.Sending, now time.Time) bool {
	return s.Status == entity.SendingStatusWaiting && s.NotBefore != nil && s.NotBefore.After(now)
}

func (f *fakeDB) FindSendingByNotification(_ context.Context, id string, activeOnly bool) (*entity.Sending, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sid := range f.order {
		s := f.sendings[sid]
		for _, n := range s.Notifications {
			if n.ID == id && (!activeOnly || n.Active) {
				return f.clone(s), nil
			}
		}
	}
	return nil, goerror.ErrNotFound
}

func (f *fakeDB) GetSending(_ context.Context, id string) (*entity.Sending, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sendings[id]
	if !ok {
		return nil, goerror.ErrNotFound
	}
	return f.clone(s), nil
}

func (f *fakeDB) NextInQueue(_ context.Context, now time.Time, limit int) ([]entity.Sending, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Sending
	for _, id := range f.order {
		s := f.sendings[id]
		if s.Status != entity.SendingStatusWaiting || (s.NotBefore != nil && s.NotBefore.After(now)) {
			continue
		}
		out = append(out, *f.clone(s))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeDB) CreateSending(_ context.Context, in entity.Sending) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflict() {
		return goerror.ErrConflict
	}
	if _, ok := f.sendings[in.ID]; ok {
		return goerror.ErrConflict
	}
	in.Version = 1
	f.sendings[in.ID] = f.clone(&in)
	f.order = append(f.order, in.ID)
	return nil
}

func (f *fakeDB) AppendNotification(_ context.Context, id string, n entity.Notification, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sendings[id]
	if f.conflict() || !ok || s.CompletedAt != nil || !collecting(s, now) {
		return goerror.ErrConflict
	}
	s.Notifications = append(s.Notifications, n)
	s.Version++
	return nil
}

func (f *fakeDB) UpdateNotifications(_ context.Context, id string, version int64, list []entity.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sendings[id]
	if f.conflict() || !ok || s.Version != version {
		return goerror.ErrConflict
	}
	s.Notifications = append([]entity.Notification{}, list...)
	s.Version++
	return nil
}

func (f *fakeDB) UpdateStatusOverview(_ context.Context, id string, version int64, overview entity.StatusOverview) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sendings[id]
	if f.conflict() || !ok || s.Version != version {
		return goerror.ErrConflict
	}
	s.StatusOverview = &overview
	s.Version++
	return nil
}

func (f *fakeDB) MarkSent(_ context.Context, id string, version int64, at time.Time, order entity.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sendings[id]
	if !ok || s.Version != version || s.Status != entity.SendingStatusWaiting {
		return goerror.ErrConflict
	}
	s.Status = entity.SendingStatusSent
	s.CompletedAt = &at
	s.Order = &order
	s.Version++
	return nil
}

func (f *fakeDB) MarkCancelled(_ context.Context, id string, version int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sendings[id]
	if !ok || s.Version != version || s.Status != entity.SendingStatusWaiting {
		return goerror.ErrConflict
	}
	s.Status = entity.SendingStatusCancelled
	s.CompletedAt = &at
	s.Version++
	return nil
}

type publishedOrder struct {
	sending entity.Sending
	order   entity.Order
}

type fakeMQ struct {
	mu       sync.Mutex
	statuses []entity.StatusUpdate
	orders   []publishedOrder
	stops    []string
	stopErr  error
	// onOrder runs once, before the next order is recorded.
	onOrder func(sending entity.Sending)
}

func (f *fakeMQ) PublishStatusUpdate(_ context.Context, in entity.StatusUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, in)
	return nil
}

func (f *fakeMQ) PublishOrder(_ context.Context, sending entity.Sending, order entity.Order) error {
	if hook := f.onOrder; hook != nil {
		f.onOrder = nil
		hook(sending)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, publishedOrder{sending: sending, order: order})
	return nil
}

func (f *fakeMQ) PublishStop(_ context.Context, sendingID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopErr != nil {
		return f.stopErr
	}
	f.stops = append(f.stops, sendingID)
	return nil
}

type fakeGuard struct {
	mu     sync.Mutex
	states map[string]idempotency.State
}

func (g *fakeGuard) Acquire(_ context.Context, key string, _ time.Duration) (idempotency.State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.states[key]
	if !ok {
		st = idempotency.StateNone
	}
	if st.CanProceed() {
		g.states[key] = idempotency.StateInProgress
	}
	return st, nil
}

func (g *fakeGuard) MarkCompleted(_ context.Context, key string, _ time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.states[key] = idempotency.StateCompleted
	return nil
}

func (g *fakeGuard) MarkFailed(_ context.Context, key string, _ time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.states[key] = idempotency.StateFailed
	return nil
}

type harness struct {
	uc    *Usecase
	db    *fakeDB
	mq    *fakeMQ
	clock *fixedClock
	cfg   fakeConfig
}

// noon Oslo time in May, inside the default sms window
var baseTime = time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()

	v, err := validator.NewV10Validator()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}

	clk := &fixedClock{t: baseTime}
	decider, err := NewChannelDecider("09:00", "17:00", "Europe/Oslo", clk)
	if err != nil {
		t.Fatalf("channel decider: %v", err)
	}

	cfg := fakeConfig{
		bools:   map[string]bool{"modules.varsling.batch.enabled": true},
		ints:    map[string]int{},
		minutes: map[string]time.Duration{"modules.varsling.batch.window_minutes": time.Hour},
	}

	h := &harness{db: newFakeDB(), mq: &fakeMQ{}, clock: clk, cfg: cfg}
	h.uc = NewVarsling(Dependency{
		RepoDB:         h.db,
		RepoMQ:         h.mq,
		Idempotency:    &fakeGuard{states: map[string]idempotency.State{}},
		Config:         cfg,
		UUID:           &seqID{},
		Clock:          clk,
		Validator:      v,
		ChannelDecider: decider,
		Instrument:     instrument.NewNoop(),
	})
	return h
}

func ingestInput(id string, typ entity.NotificationType) IngestInput {
	return IngestInput{
		NotificationID:    id,
		Recipient:         "12345678910",
		Type:              typ,
		PreferredChannels: []entity.Channel{entity.ChannelSMS},
		CreatedAt:         baseTime,
		Producer:          entity.Producer{Cluster: "dev-gcp", Namespace: "min-side", AppName: "app"},
	}
}

func statuses(mq *fakeMQ, status entity.ExternalStatus) []entity.StatusUpdate {
	mq.mu.Lock()
	defer mq.mu.Unlock()
	return lo.Filter(mq.statuses, func(s entity.StatusUpdate, _ int) bool {
		return s.Status == status
	})
}
