package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Driver names accepted by messaging.driver.
const (
	DriverKafka        = "kafka"
	DriverGooglePubSub = "google-pubsub"
)

var ErrUnknownDriver = errors.New("pkgmessage: unknown driver")

// FactoryOptions holds the settings of every driver; only the selected one is read.
type FactoryOptions struct {
	Kafka  KafkaConfig
	PubSub PubSubConfig
}

// NewFromDriver builds the client for driver. Both drivers keep per-key
// order: Kafka through partitioning, Pub/Sub through ordering keys.
func NewFromDriver(ctx context.Context, driver string, opts FactoryOptions) (Messaging, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverKafka:
		return NewKafka(opts.Kafka)
	case DriverGooglePubSub:
		return NewPubSub(ctx, opts.PubSub)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
}
