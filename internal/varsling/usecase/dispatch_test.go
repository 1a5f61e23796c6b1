package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shandysiswandi/eksternvarsling/internal/varsling/entity"
)

func TestDispatchDueSingle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.uc.Ingest(ctx, ingestInput("v1", entity.NotificationTypeTask)); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := h.uc.DispatchDue(ctx); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if len(h.mq.orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(h.mq.orders))
	}
	order := h.mq.orders[0].order
	if order.Channel != entity.ChannelSMS {
		t.Fatalf("channel = %s", order.Channel)
	}
	if order.Renotification != (entity.Renotification{Count: 1, IntervalDays: 7}) {
		t.Fatalf("renotification = %+v", order.Renotification)
	}
	if order.Texts.EmailTitle != "Du har fått en oppgave fra Nav" {
		t.Fatalf("title = %q", order.Texts.EmailTitle)
	}

	got, _ := h.db.GetSending(ctx, "v1")
	if got.Status != entity.SendingStatusSent || got.CompletedAt == nil || got.Order == nil {
		t.Fatalf("sending after dispatch = %+v", got)
	}

	// sent sendings leave the queue
	if err := h.uc.DispatchDue(ctx); err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	if len(h.mq.orders) != 1 {
		t.Fatal("sent sending dispatched twice")
	}
}

func TestDispatchDueWaitsForBatchWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, id := range []string{"v1", "v2"} {
		in := ingestInput(id, entity.NotificationTypeTask)
		in.CanBatch = true
		if err := h.uc.Ingest(ctx, in); err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}

	if err := h.uc.DispatchDue(ctx); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(h.mq.orders) != 0 {
		t.Fatal("batch dispatched before its window closed")
	}

	h.clock.t = baseTime.Add(time.Hour + time.Minute)
	if err := h.uc.DispatchDue(ctx); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(h.mq.orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(h.mq.orders))
	}

	order := h.mq.orders[0].order
	if order.Renotification.Planned() {
		t.Fatal("batches are never renotified")
	}
	if !strings.Contains(order.Texts.SMS, "2 oppgave(er)") {
		t.Fatalf("batch sms = %q", order.Texts.SMS)
	}
}

func TestDispatchDueCancelsInactive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, id := range []string{"v1", "v2"} {
		in := ingestInput(id, entity.NotificationTypeMessage)
		in.CanBatch = true
		if err := h.uc.Ingest(ctx, in); err != nil {
			t.Fatalf("ingest: %v", err)
		}
		if err := h.uc.Inactivate(ctx, id); err != nil {
			t.Fatalf("inactivate: %v", err)
		}
	}

	h.clock.t = baseTime.Add(2 * time.Hour)
	if err := h.uc.DispatchDue(ctx); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	got, _ := h.db.GetSending(ctx, "batch-1")
	if got.Status != entity.SendingStatusCancelled {
		t.Fatalf("status = %s, want Kansellert", got.Status)
	}
	if len(h.mq.orders) != 0 {
		t.Fatal("cancelled sending was ordered")
	}

	cancelled := statuses(h.mq, entity.ExternalStatusCancelled)
	if len(cancelled) != 2 {
		t.Fatalf("cancelled updates = %d, want one per notification", len(cancelled))
	}
	if cancelled[0].Batch == nil || !*cancelled[0].Batch {
		t.Fatal("cancelled batch update must be flagged as batch")
	}
}

func TestDispatchDueDeferred(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	at := baseTime.Add(24 * time.Hour)
	in := ingestInput("v1", entity.NotificationTypeMessage)
	in.DeferUntil = &at
	if err := h.uc.Ingest(ctx, in); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if err := h.uc.DispatchDue(ctx); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(h.mq.orders) != 0 {
		t.Fatal("deferred sending dispatched early")
	}

	h.clock.t = at
	if err := h.uc.DispatchDue(ctx); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(h.mq.orders) != 1 {
		t.Fatal("deferred sending not dispatched when due")
	}
}

func TestDispatchDueLateNotificationOpensNewBatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	batchInput := func(id string) IngestInput {
		in := ingestInput(id, entity.NotificationTypeTask)
		in.CanBatch = true
		return in
	}

	for _, id := range []string{"v1", "v2"} {
		if err := h.uc.Ingest(ctx, batchInput(id)); err != nil {
			t.Fatalf("ingest %s: %v", id, err)
		}
	}

	h.clock.t = baseTime.Add(time.Hour + time.Minute)
	h.mq.onOrder = func(entity.Sending) {
		if err := h.uc.Ingest(ctx, batchInput("v3")); err != nil {
			t.Fatalf("ingest v3: %v", err)
		}
	}
	if err := h.uc.DispatchDue(ctx); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	first, _ := h.db.GetSending(ctx, "batch-1")
	if first.Status != entity.SendingStatusSent || len(first.Notifications) != 2 {
		t.Fatalf("first batch = %s with %d notifications", first.Status, len(first.Notifications))
	}
	if first.Contains("v3") {
		t.Fatal("notification joined a batch that was already being sent")
	}

	second, err := h.db.FindSendingByNotification(ctx, "v3", true)
	if err != nil {
		t.Fatalf("find v3: %v", err)
	}
	if second.ID == first.ID || second.Status != entity.SendingStatusWaiting {
		t.Fatalf("v3 sending = %s %s", second.ID, second.Status)
	}

	h.clock.t = h.clock.t.Add(2 * time.Hour)
	if err := h.uc.DispatchDue(ctx); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(h.mq.orders) != 2 {
		t.Fatalf("orders = %d, want 2", len(h.mq.orders))
	}
	if !h.mq.orders[1].sending.Contains("v3") {
		t.Fatal("late notification was never ordered")
	}
}

func TestDispatchDueInactivatedWhileOrdering(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.uc.Ingest(ctx, ingestInput("v1", entity.NotificationTypeTask)); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	h.mq.onOrder = func(entity.Sending) {
		if err := h.uc.Inactivate(ctx, "v1"); err != nil {
			t.Fatalf("inactivate: %v", err)
		}
	}
	if err := h.uc.DispatchDue(ctx); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	got, _ := h.db.GetSending(ctx, "v1")
	if got.Status != entity.SendingStatusSent || !got.AllInactive() || !got.HasRenotificationPlan() {
		t.Fatalf("sending = %s allInactive=%v plan=%v", got.Status, got.AllInactive(), got.HasRenotificationPlan())
	}
	if len(h.mq.stops) != 1 || h.mq.stops[0] != "v1" {
		t.Fatalf("stops = %v, want one for v1", h.mq.stops)
	}

	// a redelivered inactivation finds nothing active and sends nothing more
	if err := h.uc.Inactivate(ctx, "v1"); err != nil {
		t.Fatalf("inactivate again: %v", err)
	}
	if len(h.mq.stops) != 1 {
		t.Fatalf("stops = %v after redelivery", h.mq.stops)
	}
}

func TestDispatchDueCancelRespectsVersion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.uc.Ingest(ctx, ingestInput("v1", entity.NotificationTypeMessage)); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	stale, _ := h.db.GetSending(ctx, "v1")

	if err := h.uc.Inactivate(ctx, "v1"); err != nil {
		t.Fatalf("inactivate: %v", err)
	}
	if err := h.uc.cancel(ctx, *stale); err == nil {
		t.Fatal("cancel with a stale version must conflict")
	}

	if err := h.uc.DispatchDue(ctx); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	got, _ := h.db.GetSending(ctx, "v1")
	if got.Status != entity.SendingStatusCancelled {
		t.Fatalf("status = %s, want Kansellert", got.Status)
	}
}
