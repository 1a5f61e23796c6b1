package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/clock"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/goerror"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/idempotency"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/instrument"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/uid"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/validator"
	"github.com/shandysiswandi/eksternvarsling/internal/varsling/entity"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrDuplicateNotification is returned when a notification id is already
	// registered in some sending.
	ErrDuplicateNotification = errors.New("notification is already registered for external sending")

	// ErrUnknownProviderStatus is returned for provider status codes that cannot be mapped.
	ErrUnknownProviderStatus = errors.New("unknown provider status")
)

type repoDB interface {
	Ping(ctx context.Context) error

	NotificationExists(ctx context.Context, notificationID string) (bool, error)
	FindOpenBatch(ctx context.Context, recipient string, now time.Time) (*entity.Sending, error)
	FindSendingByNotification(ctx context.Context, notificationID string, activeOnly bool) (*entity.Sending, error)
	GetSending(ctx context.Context, sendingID string) (*entity.Sending, error)
	NextInQueue(ctx context.Context, now time.Time, limit int) ([]entity.Sending, error)

	CreateSending(ctx context.Context, in entity.Sending) error
	AppendNotification(ctx context.Context, sendingID string, n entity.Notification, now time.Time) error
	UpdateNotifications(ctx context.Context, sendingID string, version int64, list []entity.Notification) error
	UpdateStatusOverview(ctx context.Context, sendingID string, version int64, overview entity.StatusOverview) error
	MarkSent(ctx context.Context, sendingID string, version int64, completedAt time.Time, order entity.Order) error
	MarkCancelled(ctx context.Context, sendingID string, version int64, completedAt time.Time) error
}

type repoMQ interface {
	PublishStatusUpdate(ctx context.Context, in entity.StatusUpdate) error
	PublishOrder(ctx context.Context, sending entity.Sending, order entity.Order) error
	PublishStop(ctx context.Context, sendingID string) error
}

type guard interface {
	Acquire(ctx context.Context, key string, lockDuration time.Duration) (idempotency.State, error)
	MarkCompleted(ctx context.Context, key string, ttl time.Duration) error
	MarkFailed(ctx context.Context, key string, ttl time.Duration) error
}

// configReader is the part of config.Config the use cases read at call time,
// so hot reloaded values take effect without a restart.
type configReader interface {
	GetBool(key string) bool
	GetInt(key string) int
	GetMinute(key string) time.Duration
}

type Usecase struct {
	repoDB    repoDB
	repoMQ    repoMQ
	guard     guard
	cfg       configReader
	uuid      uid.StringID
	clock     clock.Clocker
	validator validator.Validator
	channel   *ChannelDecider
	ins       instrument.Instrumentation
}

type Dependency struct {
	RepoDB         repoDB
	RepoMQ         repoMQ
	Idempotency    guard
	Config         configReader
	UUID           uid.StringID
	Clock          clock.Clocker
	Validator      validator.Validator
	ChannelDecider *ChannelDecider
	Instrument     instrument.Instrumentation
}

func NewVarsling(dep Dependency) *Usecase {
	return &Usecase{
		repoDB:    dep.RepoDB,
		repoMQ:    dep.RepoMQ,
		guard:     dep.Idempotency,
		cfg:       dep.Config,
		uuid:      dep.UUID,
		clock:     dep.Clock,
		validator: dep.Validator,
		channel:   dep.ChannelDecider,
		ins:       dep.Instrument,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("varsling.usecase").Start(ctx, name)
}

func (s *Usecase) now() time.Time {
	return s.clock.Now().UTC()
}

// withConflictRetry reruns fn while it fails with goerror.ErrConflict, which the
// repository returns when a concurrent writer changed the row first.
func withConflictRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(2, retry.NewConstant(50*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if errors.Is(err, goerror.ErrConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// Ready reports whether the use cases can reach their storage.
func (s *Usecase) Ready(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Ready")
	defer span.End()

	if err := s.repoDB.Ping(ctx); err != nil {
		return goerror.NewServer(err)
	}
	return nil
}
