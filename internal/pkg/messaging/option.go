package messaging

import "time"

const (
	defaultRedeliveries   = 5
	defaultRedeliveryWait = time.Second
)

type consumeOptions struct {
	// concurrency is the number of handler goroutines. Kafka assigns each key
	// to one of them, so messages sharing a key are handled in order.
	concurrency int

	// autoAck acks after a nil handler error and nacks otherwise.
	autoAck bool

	// group is the Kafka consumer group.
	group string

	// subscription is the Pub/Sub subscription.
	subscription string

	// maxInFlight limits outstanding unacknowledged messages (Pub/Sub).
	maxInFlight int

	// redeliveries bounds in-place retries of a nacked Kafka message before
	// it is skipped. Zero or less disables retries.
	redeliveries   int
	redeliveryWait time.Duration
}

// ConsumeOption configures consumer behavior.
type ConsumeOption func(*consumeOptions)

func newConsumeOptions(opts ...ConsumeOption) consumeOptions {
	co := consumeOptions{
		redeliveries:   defaultRedeliveries,
		redeliveryWait: defaultRedeliveryWait,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&co)
	}
	return co
}

// WithConcurrency sets how many handler goroutines process messages in parallel.
func WithConcurrency(n int) ConsumeOption {
	return func(o *consumeOptions) { o.concurrency = n }
}

// WithGroup sets the consumer group name (Kafka).
func WithGroup(group string) ConsumeOption {
	return func(o *consumeOptions) { o.group = group }
}

// WithSubscription sets the subscription name (Google Pub/Sub).
func WithSubscription(subscription string) ConsumeOption {
	return func(o *consumeOptions) { o.subscription = subscription }
}

// WithAutoAck controls whether the wrapper should ack/nack automatically after the handler returns.
func WithAutoAck(autoAck bool) ConsumeOption {
	return func(o *consumeOptions) { o.autoAck = autoAck }
}

// WithMaxInFlight limits the maximum number of unacknowledged messages in flight.
func WithMaxInFlight(maxInFlight int) ConsumeOption {
	return func(o *consumeOptions) { o.maxInFlight = maxInFlight }
}

// WithRedelivery sets how often a failed Kafka message is handled again, and
// the initial wait between attempts. The wait doubles per attempt.
func WithRedelivery(attempts int, wait time.Duration) ConsumeOption {
	return func(o *consumeOptions) {
		o.redeliveries = attempts
		if wait > 0 {
			o.redeliveryWait = wait
		}
	}
}
