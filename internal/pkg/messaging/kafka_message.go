package messaging

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
)

type kafkaMessage struct {
	msg     kafka.Message
	commits *commitTracker

	acked atomic.Bool
}

func newKafkaMessage(msg kafka.Message, commits *commitTracker) *kafkaMessage {
	return &kafkaMessage{msg: msg, commits: commits}
}

func (m *kafkaMessage) Body() []byte { return m.msg.Value }
func (m *kafkaMessage) Key() []byte  { return m.msg.Key }

func (m *kafkaMessage) Headers() []Header {
	if len(m.msg.Headers) == 0 {
		return nil
	}
	out := make([]Header, 0, len(m.msg.Headers))
	for _, h := range m.msg.Headers {
		out = append(out, Header{Key: h.Key, Value: h.Value})
	}
	return out
}

func (m *kafkaMessage) ID() string {
	return fmt.Sprintf("%s/%d/%d", m.msg.Topic, m.msg.Partition, m.msg.Offset)
}

func (m *kafkaMessage) Topic() string        { return m.msg.Topic }
func (m *kafkaMessage) Timestamp() time.Time { return m.msg.Time }

// Ack marks the message done. The offset is committed once all earlier
// offsets of the partition are done as well.
func (m *kafkaMessage) Ack(ctx context.Context) error {
	if m.acked.Swap(true) {
		return nil
	}
	return m.commits.done(ctx, m.msg)
}
