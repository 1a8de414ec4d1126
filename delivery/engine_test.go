package delivery_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fluxpay/webhooks/crypt"
	"github.com/fluxpay/webhooks/delivery"
	"github.com/fluxpay/webhooks/event"
	"github.com/fluxpay/webhooks/id"
	"github.com/fluxpay/webhooks/internal/entity"
	"github.com/fluxpay/webhooks/merchant"
	"github.com/fluxpay/webhooks/ratelimit"
	"github.com/fluxpay/webhooks/scheduler"
	"github.com/fluxpay/webhooks/store/memory"
)

type dlqRecorder struct {
	mu      sync.Mutex
	entries []string
}

func (r *dlqRecorder) PushExhausted(_ context.Context, task *scheduler.RetryTask, evt *event.Event, _, _ string, _ int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, evt.ID.String())
	return nil
}

func (r *dlqRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

type fixture struct {
	store  *memory.Store
	sched  *scheduler.Scheduler
	engine *delivery.Engine
	dlq    *dlqRecorder
}

func newFixture(t *testing.T, retryBudget int) *fixture {
	t.Helper()

	st := memory.New()
	sched := scheduler.New(st, scheduler.SchedulePolicy([]time.Duration{time.Millisecond}, retryBudget), nil)
	rec := &dlqRecorder{}
	engine := delivery.NewEngine(st, sched, rec, ratelimit.New(), crypt.Plain{}, delivery.EngineConfig{
		RequestTimeout: 2 * time.Second,
	}, nil)

	return &fixture{store: st, sched: sched, engine: engine, dlq: rec}
}

// seedCycle persists a profile, an event with a frozen request snapshot, and
// its pre-scheduled retry task, mirroring what the outbound notifier does.
func (f *fixture) seedCycle(t *testing.T, url string) (*event.Event, *event.RequestSnapshot, *scheduler.RetryTask) {
	t.Helper()
	ctx := context.Background()

	p := &merchant.Profile{
		Entity:     entity.New(),
		MerchantID: "mrc_1",
		ProfileID:  "prf_1",
		WebhookURL: url,
	}
	if err := f.store.UpsertProfile(ctx, p); err != nil {
		t.Fatalf("UpsertProfile() error = %v", err)
	}

	snap := &event.RequestSnapshot{
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    []byte(`{"event_type":"payment_succeeded"}`),
	}
	rawSnap, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}

	evtID := id.NewEventID()
	evt := &event.Event{
		Entity:            entity.New(),
		ID:                evtID,
		MerchantID:        "mrc_1",
		ProfileID:         "prf_1",
		Type:              event.TypePaymentSucceeded,
		Class:             event.ClassPayments,
		ObjectID:          "pay_1",
		ObjectType:        event.ObjectPayment,
		IdempotentEventID: "pay_1_payment_succeeded",
		InitialAttemptID:  evtID,
		Attempt:           event.AttemptInitial,
		Request:           rawSnap,
	}
	if err := f.store.CreateEvent(ctx, evt); err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}

	task := &scheduler.RetryTask{
		MerchantID:       "mrc_1",
		ProfileID:        "prf_1",
		EventType:        evt.Type,
		Class:            evt.Class,
		ObjectID:         evt.ObjectID,
		ObjectType:       evt.ObjectType,
		InitialAttemptID: evt.ID,
	}
	if err := f.sched.Enqueue(ctx, task, p); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	return evt, snap, task
}

func (f *fixture) taskStatus(t *testing.T, taskID id.ID) (bool, scheduler.BusinessStatus) {
	t.Helper()
	task, err := f.store.GetTask(context.Background(), taskID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	return task.Finished, task.BusinessStatus
}

func TestInitialDeliverySuccessCancelsRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Request-Id", "req_1")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := newFixture(t, 3)
	evt, snap, task := f.seedCycle(t, srv.URL)

	if err := f.engine.Deliver(context.Background(), evt, snap, event.AttemptInitial, task); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	finished, status := f.taskStatus(t, task.ID)
	if !finished || status != scheduler.StatusInitialSuccess {
		t.Errorf("task = (finished=%v, status=%q), want finished with %q", finished, status, scheduler.StatusInitialSuccess)
	}

	stored, _ := f.store.GetEvent(context.Background(), evt.ID)
	if !stored.IsNotified {
		t.Error("event should be marked notified after 2xx")
	}
	if stored.Response == nil {
		t.Fatal("event should mirror the latest response snapshot")
	}

	var respSnap event.ResponseSnapshot
	if err := json.Unmarshal(stored.Response, &respSnap); err != nil {
		t.Fatalf("decode response snapshot: %v", err)
	}
	if respSnap.StatusCode != http.StatusOK {
		t.Errorf("snapshot status = %d, want 200", respSnap.StatusCode)
	}
	if respSnap.Headers["X-Request-Id"] != "req_1" {
		t.Errorf("snapshot headers = %v, want the merchant's response headers", respSnap.Headers)
	}
}

func TestInitialDeliveryFailureLeavesRetryPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := newFixture(t, 3)
	evt, snap, task := f.seedCycle(t, srv.URL)

	if err := f.engine.Deliver(context.Background(), evt, snap, event.AttemptInitial, task); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	// The pre-scheduled retry stays pending; the failure itself is not an
	// error for the caller.
	finished, _ := f.taskStatus(t, task.ID)
	if finished {
		t.Error("failed initial delivery must leave the retry task pending")
	}

	stored, _ := f.store.GetEvent(context.Background(), evt.ID)
	if stored.IsNotified {
		t.Error("event must not be notified after a failed attempt")
	}
}

func TestAutomaticRetrySuccessCompletes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := newFixture(t, 3)
	evt, snap, task := f.seedCycle(t, srv.URL)

	if err := f.engine.Deliver(context.Background(), evt, snap, event.AttemptAutomaticRetry, task); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	finished, status := f.taskStatus(t, task.ID)
	if !finished || status != scheduler.StatusCompleted {
		t.Errorf("task = (finished=%v, status=%q), want finished with %q", finished, status, scheduler.StatusCompleted)
	}
}

func TestAutomaticRetryFailureReschedules(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newFixture(t, 3)
	evt, snap, task := f.seedCycle(t, srv.URL)

	if err := f.engine.Deliver(context.Background(), evt, snap, event.AttemptAutomaticRetry, task); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	stored, _ := f.store.GetTask(context.Background(), task.ID)
	if stored.Finished {
		t.Error("task should be rescheduled, not finished")
	}
	if stored.AttemptIndex != 1 {
		t.Errorf("AttemptIndex = %d, want 1", stored.AttemptIndex)
	}
	if f.dlq.count() != 0 {
		t.Error("rescheduled cycle must not be dead-lettered")
	}
}

func TestRetriesExhaustedDeadLetters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newFixture(t, 1)
	evt, snap, task := f.seedCycle(t, srv.URL)

	if err := f.engine.Deliver(context.Background(), evt, snap, event.AttemptAutomaticRetry, task); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	finished, status := f.taskStatus(t, task.ID)
	if !finished || status != scheduler.StatusRetriesExhausted {
		t.Errorf("task = (finished=%v, status=%q), want finished with %q", finished, status, scheduler.StatusRetriesExhausted)
	}
	if f.dlq.count() != 1 {
		t.Errorf("dlq entries = %d, want 1", f.dlq.count())
	}
}

func TestManualRetryRejected(t *testing.T) {
	f := newFixture(t, 3)
	evt, snap, task := f.seedCycle(t, "http://unused.invalid")

	err := f.engine.Deliver(context.Background(), evt, snap, event.AttemptManualRetry, task)
	if !errors.Is(err, delivery.ErrManualRetryNotSupported) {
		t.Errorf("Deliver() error = %v, want ErrManualRetryNotSupported", err)
	}
}

func TestProfileGoneAbortsCycle(t *testing.T) {
	f := newFixture(t, 3)
	evt, snap, task := f.seedCycle(t, "http://unused.invalid")

	// The merchant removed the webhook URL mid-cycle.
	p, _ := f.store.GetProfile(context.Background(), "mrc_1", "prf_1")
	p.WebhookURL = ""
	if err := f.store.UpsertProfile(context.Background(), p); err != nil {
		t.Fatalf("UpsertProfile() error = %v", err)
	}

	if err := f.engine.Deliver(context.Background(), evt, snap, event.AttemptAutomaticRetry, task); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	finished, status := f.taskStatus(t, task.ID)
	if !finished || status != scheduler.StatusFailure {
		t.Errorf("task = (finished=%v, status=%q), want finished with %q", finished, status, scheduler.StatusFailure)
	}

	stored, _ := f.store.GetEvent(context.Background(), evt.ID)
	if stored.IsNotified {
		t.Error("aborted cycle must leave the event un-notified")
	}
}

func TestExecuteRetrySkipsFinishedTask(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := newFixture(t, 3)
	_, _, task := f.seedCycle(t, srv.URL)

	if err := f.sched.Finalize(context.Background(), task, scheduler.StatusInitialSuccess); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	if err := f.engine.ExecuteRetry(context.Background(), task); err != nil {
		t.Fatalf("ExecuteRetry() error = %v", err)
	}
	if hits.Load() != 0 {
		t.Errorf("finished task triggered %d deliveries, want 0", hits.Load())
	}
}

func TestExecuteRetryReplaysFrozenSnapshot(t *testing.T) {
	var (
		gotBody        []byte
		gotContentType string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := newFixture(t, 3)
	_, snap, task := f.seedCycle(t, srv.URL)

	if err := f.engine.ExecuteRetry(context.Background(), task); err != nil {
		t.Fatalf("ExecuteRetry() error = %v", err)
	}

	if string(gotBody) != string(snap.Body) {
		t.Errorf("retry body = %q, want frozen %q", gotBody, snap.Body)
	}
	if gotContentType != "application/json" {
		t.Errorf("retry content type = %q, want frozen application/json", gotContentType)
	}

	finished, status := f.taskStatus(t, task.ID)
	if !finished || status != scheduler.StatusCompleted {
		t.Errorf("task = (finished=%v, status=%q), want finished with %q", finished, status, scheduler.StatusCompleted)
	}
}
