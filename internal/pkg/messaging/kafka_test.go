package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
)

type recordedCommits struct {
	offsets map[int][]int64
	err     error
}

func (r *recordedCommits) commit(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.offsets[m.Partition] = append(r.offsets[m.Partition], m.Offset)
	}
	return r.err
}

func TestCommitTrackerCommitsContiguousPrefix(t *testing.T) {
	rec := &recordedCommits{offsets: map[int][]int64{}}
	tr := newCommitTracker(rec.commit)

	msgs := []kafka.Message{
		{Partition: 0, Offset: 10},
		{Partition: 0, Offset: 11},
		{Partition: 0, Offset: 12},
		{Partition: 1, Offset: 3},
	}
	for _, m := range msgs {
		tr.track(m)
	}

	ctx := context.Background()
	if err := tr.done(ctx, msgs[2]); err != nil {
		t.Fatalf("done: %v", err)
	}
	if got := rec.offsets[0]; len(got) != 0 {
		t.Fatalf("committed past an unfinished offset: %v", got)
	}

	if err := tr.done(ctx, msgs[3]); err != nil {
		t.Fatalf("done: %v", err)
	}
	if got := rec.offsets[1]; len(got) != 1 || got[0] != 3 {
		t.Fatalf("partition 1 commits = %v", got)
	}

	_ = tr.done(ctx, msgs[0])
	if got := rec.offsets[0]; len(got) != 1 || got[0] != 10 {
		t.Fatalf("partition 0 commits = %v, want [10]", got)
	}

	_ = tr.done(ctx, msgs[1])
	if got := rec.offsets[0]; len(got) != 2 || got[1] != 12 {
		t.Fatalf("partition 0 commits = %v, want [10 12]", got)
	}
	if len(tr.pending[0]) != 0 {
		t.Fatalf("pending = %d, want 0", len(tr.pending[0]))
	}
}

func TestCommitTrackerReturnsCommitError(t *testing.T) {
	boom := errors.New("boom")
	rec := &recordedCommits{offsets: map[int][]int64{}, err: boom}
	tr := newCommitTracker(rec.commit)

	m := kafka.Message{Partition: 2, Offset: 1}
	tr.track(m)
	if err := tr.done(context.Background(), m); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

func TestKafkaMessageAckOnce(t *testing.T) {
	rec := &recordedCommits{offsets: map[int][]int64{}}
	tr := newCommitTracker(rec.commit)

	m := kafka.Message{Topic: "t", Partition: 0, Offset: 7}
	tr.track(m)
	msg := newKafkaMessage(m, tr)

	_ = msg.Ack(context.Background())
	_ = msg.Ack(context.Background())
	if got := rec.offsets[0]; len(got) != 1 {
		t.Fatalf("commits = %v, want one", got)
	}
	if msg.ID() != "t/0/7" {
		t.Fatalf("id = %q", msg.ID())
	}
}

func TestLaneOf(t *testing.T) {
	a := kafka.Message{Key: []byte("varsel-a"), Partition: 3}
	b := kafka.Message{Key: []byte("varsel-a"), Partition: 5}
	if laneOf(a, 8) != laneOf(b, 8) {
		t.Fatal("same key must map to the same lane")
	}
	if got := laneOf(a, 1); got != 0 {
		t.Fatalf("single lane = %d", got)
	}
	if got := laneOf(kafka.Message{Partition: 5}, 4); got != 1 {
		t.Fatalf("keyless lane = %d, want partition mod lanes", got)
	}
	for i := 0; i < 100; i++ {
		m := kafka.Message{Key: []byte{byte(i)}}
		if l := laneOf(m, 7); l < 0 || l >= 7 {
			t.Fatalf("lane %d out of range", l)
		}
	}
}

func TestHandleKafkaMessageRedeliversThenCommits(t *testing.T) {
	rec := &recordedCommits{offsets: map[int][]int64{}}
	tr := newCommitTracker(rec.commit)
	m := kafka.Message{Partition: 0, Offset: 1}
	tr.track(m)

	calls := 0
	handler := func(context.Context, Message) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}

	co := newConsumeOptions(WithAutoAck(true), WithRedelivery(5, 1))
	handleKafkaMessage(context.Background(), tr, m, handler, co)

	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if got := rec.offsets[0]; len(got) != 1 || got[0] != 1 {
		t.Fatalf("commits = %v", got)
	}
}

func TestHandleKafkaMessageSkipsAfterRedeliveries(t *testing.T) {
	rec := &recordedCommits{offsets: map[int][]int64{}}
	tr := newCommitTracker(rec.commit)
	m := kafka.Message{Partition: 0, Offset: 4}
	tr.track(m)

	calls := 0
	handler := func(context.Context, Message) error {
		calls++
		panic("bad payload")
	}

	co := newConsumeOptions(WithAutoAck(true), WithRedelivery(2, 1))
	handleKafkaMessage(context.Background(), tr, m, handler, co)

	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if got := rec.offsets[0]; len(got) != 1 || got[0] != 4 {
		t.Fatalf("commits = %v", got)
	}
}

func TestHandleKafkaMessageLeavesOffsetOnShutdown(t *testing.T) {
	rec := &recordedCommits{offsets: map[int][]int64{}}
	tr := newCommitTracker(rec.commit)
	m := kafka.Message{Partition: 0, Offset: 9}
	tr.track(m)

	ctx, cancel := context.WithCancel(context.Background())
	handler := func(context.Context, Message) error {
		cancel()
		return errors.New("interrupted")
	}

	handleKafkaMessage(ctx, tr, m, handler, newConsumeOptions(WithAutoAck(true)))

	if got := rec.offsets[0]; len(got) != 0 {
		t.Fatalf("commits = %v, want none", got)
	}
}

func TestConsumeOptionDefaults(t *testing.T) {
	co := newConsumeOptions(nil, WithRedelivery(0, 0))
	if co.redeliveries != 0 || co.redeliveryWait != defaultRedeliveryWait {
		t.Fatalf("options = %+v", co)
	}
	if d := newConsumeOptions(); d.redeliveries != defaultRedeliveries {
		t.Fatalf("redeliveries = %d", d.redeliveries)
	}
}
