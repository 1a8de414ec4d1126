package dlq_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fluxpay/webhooks/dlq"
	"github.com/fluxpay/webhooks/event"
	"github.com/fluxpay/webhooks/id"
	"github.com/fluxpay/webhooks/internal/entity"
	"github.com/fluxpay/webhooks/scheduler"
	"github.com/fluxpay/webhooks/store/memory"
)

func pushOne(t *testing.T, svc *dlq.Service) *dlq.Entry {
	t.Helper()
	evtID := id.NewEventID()
	task := &scheduler.RetryTask{
		Entity:           entity.New(),
		ID:               id.NewTaskID(),
		MerchantID:       "mrc_1",
		ProfileID:        "prf_1",
		EventType:        event.TypePaymentSucceeded,
		ObjectID:         "pay_1",
		AttemptIndex:     5,
		InitialAttemptID: evtID,
	}
	evt := &event.Event{ID: evtID, MerchantID: "mrc_1"}

	if err := svc.PushExhausted(context.Background(), task, evt, "https://merchant.example/hooks", "connection refused", 0); err != nil {
		t.Fatalf("PushExhausted() error = %v", err)
	}

	entries, err := svc.List(context.Background(), dlq.ListOpts{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("List() = %d entries, want 1", len(entries))
	}
	return entries[0]
}

func TestPushExhaustedRecordsCycle(t *testing.T) {
	svc := dlq.NewService(memory.New(), nil)
	entry := pushOne(t, svc)

	if entry.MerchantID != "mrc_1" || entry.ObjectID != "pay_1" {
		t.Errorf("entry identity = %+v", entry)
	}
	// Attempt index 5 means six attempts ran: indices 0 through 5.
	if entry.AttemptCount != 6 {
		t.Errorf("AttemptCount = %d, want 6", entry.AttemptCount)
	}
	if entry.Error != "connection refused" {
		t.Errorf("Error = %q", entry.Error)
	}
	if entry.FailedAt.IsZero() {
		t.Error("FailedAt must be set")
	}
	if entry.ReplayedAt != nil {
		t.Error("new entries must not be marked replayed")
	}
}

type recordingReplayer struct {
	mu      sync.Mutex
	entries []string
	err     error
}

func (r *recordingReplayer) ReplayEntry(_ context.Context, e *dlq.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e.ID.String())
	return r.err
}

func TestReplayMarksEntry(t *testing.T) {
	svc := dlq.NewService(memory.New(), nil)
	entry := pushOne(t, svc)

	rep := &recordingReplayer{}
	svc.SetReplayer(rep)

	if err := svc.Replay(context.Background(), entry.ID); err != nil {
		t.Fatalf("Replay() error = %v", err)
	}

	if len(rep.entries) != 1 || rep.entries[0] != entry.ID.String() {
		t.Errorf("replayer saw %v, want [%s]", rep.entries, entry.ID)
	}

	stored, err := svc.Get(context.Background(), entry.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.ReplayedAt == nil {
		t.Error("replayed entry must carry a replay timestamp")
	}
}

func TestReplayFailureLeavesEntryUnmarked(t *testing.T) {
	svc := dlq.NewService(memory.New(), nil)
	entry := pushOne(t, svc)

	svc.SetReplayer(&recordingReplayer{err: errors.New("store down")})

	if err := svc.Replay(context.Background(), entry.ID); err == nil {
		t.Fatal("Replay() should propagate the replayer failure")
	}

	stored, _ := svc.Get(context.Background(), entry.ID)
	if stored.ReplayedAt != nil {
		t.Error("failed replay must not mark the entry replayed")
	}
}

func TestReplayWithoutReplayer(t *testing.T) {
	svc := dlq.NewService(memory.New(), nil)
	entry := pushOne(t, svc)

	err := svc.Replay(context.Background(), entry.ID)
	if !errors.Is(err, dlq.ErrReplayNotConfigured) {
		t.Errorf("Replay() error = %v, want ErrReplayNotConfigured", err)
	}
}

func TestReplayUnknownEntry(t *testing.T) {
	svc := dlq.NewService(memory.New(), nil)
	svc.SetReplayer(&recordingReplayer{})

	err := svc.Replay(context.Background(), id.NewDLQID())
	if !errors.Is(err, dlq.ErrEntryNotFound) {
		t.Errorf("Replay() error = %v, want ErrEntryNotFound", err)
	}
}

func TestPurgeAndCount(t *testing.T) {
	svc := dlq.NewService(memory.New(), nil)
	pushOne(t, svc)

	count, err := svc.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}

	removed, err := svc.Purge(context.Background(), time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Purge() removed = %d, want 1", removed)
	}
}
