package messaging

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sethvargo/go-retry"
)

const maxRedeliveryWait = 30 * time.Second

var (
	// ErrKafkaTopicRequired is returned when the topic is empty.
	ErrKafkaTopicRequired = errors.New("pkgmessage: kafka topic is required")
	// ErrKafkaHandlerRequired is returned when Consume is called with a nil handler.
	ErrKafkaHandlerRequired = errors.New("pkgmessage: kafka handler is required")
	// ErrKafkaBrokersRequired is returned when no Kafka brokers are configured.
	ErrKafkaBrokersRequired = errors.New("pkgmessage: kafka brokers are required")
	// ErrKafkaGroupRequired is returned when a consumer group is required but not provided.
	ErrKafkaGroupRequired = errors.New("pkgmessage: kafka consumer group is required")
)

// KafkaConfig configures the Kafka implementation.
type KafkaConfig struct {
	// Brokers lists Kafka broker addresses.
	Brokers []string

	// Dialer configures broker connections, for example TLS.
	Dialer *kafka.Dialer
}

// Kafka is a messaging implementation backed by kafka-go.
//
// Writers hash the message key to pick a partition. Readers hand each key to
// a fixed worker and commit offsets only once every earlier offset of the
// partition is done, so a crash redelivers instead of losing messages.
type Kafka struct {
	brokers []string
	dialer  *kafka.Dialer

	mu      sync.Mutex
	writers map[string]*kafka.Writer
	readers []*kafka.Reader
	closed  bool
}

// NewKafka constructs a Kafka messaging client.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrKafkaBrokersRequired
	}

	return &Kafka{
		brokers: append([]string{}, cfg.Brokers...),
		dialer:  cfg.Dialer,
		writers: map[string]*kafka.Writer{},
	}, nil
}

// Close shuts down all Kafka readers and writers. Writers flush pending
// messages before closing.
func (k *Kafka) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	writers := make([]*kafka.Writer, 0, len(k.writers))
	for _, w := range k.writers {
		writers = append(writers, w)
	}
	k.writers = nil
	readers := append([]*kafka.Reader{}, k.readers...)
	k.readers = nil
	k.mu.Unlock()

	var closeErr error
	for _, r := range readers {
		closeErr = errors.Join(closeErr, r.Close())
	}
	for _, w := range writers {
		closeErr = errors.Join(closeErr, w.Close())
	}
	return closeErr
}

// Publish writes a message to a Kafka topic and waits for all in-sync replicas.
func (k *Kafka) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	if destination == "" {
		return PublishResult{}, ErrKafkaTopicRequired
	}

	writer, err := k.getWriter(destination)
	if err != nil {
		return PublishResult{}, err
	}

	kmsg := kafka.Message{
		Key:   msg.Key,
		Value: msg.Body,
		Time:  time.Now(),
	}
	for _, h := range msg.Headers {
		if h.Key == "" {
			continue
		}
		kmsg.Headers = append(kmsg.Headers, kafka.Header{Key: h.Key, Value: h.Value})
	}

	if err := writer.WriteMessages(ctx, kmsg); err != nil {
		return PublishResult{}, fmt.Errorf("pkgmessage: kafka publish: %w", err)
	}

	return PublishResult{Topic: destination, Timestamp: kmsg.Time}, nil
}

// Consume reads the topic as a member of the consumer group until ctx is done.
//
// With auto ack, a failing message is handled again with exponential backoff
// up to the configured redeliveries, then logged and committed so one bad
// message cannot stall its partition.
func (k *Kafka) Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error {
	co := newConsumeOptions(opts...)
	if err := validateKafkaConsume(ctx, source, handler, co); err != nil {
		return err
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     k.brokers,
		GroupID:     co.group,
		Topic:       source,
		MaxBytes:    10e6,
		Dialer:      k.dialer,
		StartOffset: kafka.FirstOffset,
	})
	if err := k.addReader(reader); err != nil {
		return errors.Join(err, reader.Close())
	}
	defer k.removeReader(reader)

	consumeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	commits := newCommitTracker(reader.CommitMessages)
	lanes := make([]chan kafka.Message, max(co.concurrency, 1))

	var wg sync.WaitGroup
	for i := range lanes {
		lane := make(chan kafka.Message)
		lanes[i] = lane
		wg.Go(func() {
			for m := range lane {
				handleKafkaMessage(consumeCtx, commits, m, handler, co)
			}
		})
	}

	fetchErr := kafkaFetchLoop(consumeCtx, reader, commits, lanes)
	for _, lane := range lanes {
		close(lane)
	}
	wg.Wait()

	closeErr := reader.Close()
	if ctx.Err() != nil {
		return errors.Join(ctx.Err(), closeErr)
	}
	return errors.Join(fmt.Errorf("pkgmessage: kafka consume: %w", fetchErr), closeErr)
}

func (k *Kafka) getWriter(topic string) (*kafka.Writer, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil, io.ErrClosedPipe
	}
	if w, ok := k.writers[topic]; ok {
		return w, nil
	}

	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      k.brokers,
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		Dialer:       k.dialer,
		RequiredAcks: int(kafka.RequireAll),
	})
	k.writers[topic] = w
	return w, nil
}

func (k *Kafka) addReader(reader *kafka.Reader) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return io.ErrClosedPipe
	}
	k.readers = append(k.readers, reader)
	return nil
}

func (k *Kafka) removeReader(reader *kafka.Reader) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for i := range k.readers {
		if k.readers[i] == reader {
			k.readers = append(k.readers[:i], k.readers[i+1:]...)
			return
		}
	}
}

func validateKafkaConsume(ctx context.Context, topic string, handler Handler, opts consumeOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if topic == "" {
		return ErrKafkaTopicRequired
	}
	if handler == nil {
		return ErrKafkaHandlerRequired
	}
	if opts.group == "" {
		return ErrKafkaGroupRequired
	}
	return nil
}

// kafkaFetchLoop feeds lanes until ctx is done or the reader fails.
func kafkaFetchLoop(ctx context.Context, reader *kafka.Reader, commits *commitTracker, lanes []chan kafka.Message) error {
	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			return err
		}

		commits.track(m)

		select {
		case lanes[laneOf(m, len(lanes))] <- m:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// laneOf pins a key to one worker. Keyless messages are spread by partition.
func laneOf(m kafka.Message, lanes int) int {
	if lanes <= 1 {
		return 0
	}
	if len(m.Key) == 0 {
		return m.Partition % lanes
	}
	h := fnv.New32a()
	_, _ = h.Write(m.Key)
	return int(h.Sum32() % uint32(lanes))
}

func handleKafkaMessage(ctx context.Context, commits *commitTracker, m kafka.Message, handler Handler, co consumeOptions) {
	wrapped := newKafkaMessage(m, commits)

	if !co.autoAck {
		if err := callHandlerWithRecover(ctx, "kafka", func() error { return handler(ctx, wrapped) }); err != nil {
			slog.WarnContext(ctx, "kafka handler failed", "message_id", wrapped.ID(), "error", err)
		}
		return
	}

	backoff := retry.WithCappedDuration(maxRedeliveryWait, retry.NewExponential(co.redeliveryWait))
	backoff = retry.WithMaxRetries(uint64(max(co.redeliveries, 0)), backoff)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := callHandlerWithRecover(ctx, "kafka", func() error { return handler(ctx, wrapped) }); err != nil {
			slog.WarnContext(ctx, "kafka handler failed, redelivering", "message_id", wrapped.ID(), "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if ctx.Err() != nil {
		// left uncommitted, the next group member picks it up
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "kafka message skipped after redeliveries", "message_id", wrapped.ID(), "error", err)
	}

	if err := wrapped.Ack(ctx); err != nil {
		slog.WarnContext(ctx, "kafka commit failed", "message_id", wrapped.ID(), "error", err)
	}
}

type pendingOffset struct {
	msg  kafka.Message
	done bool
}

// commitTracker commits the highest offset of a partition below which every
// fetched message is done.
type commitTracker struct {
	mu      sync.Mutex
	commit  func(ctx context.Context, msgs ...kafka.Message) error
	pending map[int][]*pendingOffset
}

func newCommitTracker(commit func(ctx context.Context, msgs ...kafka.Message) error) *commitTracker {
	return &commitTracker{commit: commit, pending: map[int][]*pendingOffset{}}
}

func (t *commitTracker) track(m kafka.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[m.Partition] = append(t.pending[m.Partition], &pendingOffset{msg: m})
}

// done marks m as handled and commits the partition prefix that is complete.
// Commits run under the lock so offsets never move backwards.
func (t *commitTracker) done(ctx context.Context, m kafka.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	queue := t.pending[m.Partition]
	for _, p := range queue {
		if p.msg.Offset == m.Offset {
			p.done = true
			break
		}
	}

	n := 0
	for n < len(queue) && queue[n].done {
		n++
	}
	if n == 0 {
		return nil
	}

	last := queue[n-1].msg
	t.pending[m.Partition] = queue[n:]
	return t.commit(ctx, last)
}
