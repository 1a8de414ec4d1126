package webhooks_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fluxpay/webhooks"
	"github.com/fluxpay/webhooks/dlq"
	"github.com/fluxpay/webhooks/event"
	"github.com/fluxpay/webhooks/id"
	"github.com/fluxpay/webhooks/internal/entity"
	"github.com/fluxpay/webhooks/merchant"
	"github.com/fluxpay/webhooks/outbound"
	"github.com/fluxpay/webhooks/store/memory"
)

func TestNewRequiresStore(t *testing.T) {
	_, err := webhooks.New()
	if !errors.Is(err, webhooks.ErrNoStore) {
		t.Errorf("New() error = %v, want ErrNoStore", err)
	}
}

func TestNewWiresServices(t *testing.T) {
	p, err := webhooks.New(webhooks.WithStore(memory.New()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if p.Dispatcher() == nil {
		t.Error("Dispatcher() is nil")
	}
	if p.Notifier() == nil {
		t.Error("Notifier() is nil")
	}
	if p.Scheduler() == nil {
		t.Error("Scheduler() is nil")
	}
	if p.Engine() == nil {
		t.Error("Engine() is nil")
	}
	if p.Merchants() == nil {
		t.Error("Merchants() is nil")
	}
	if p.DLQ() == nil {
		t.Error("DLQ() is nil")
	}
	if p.Connectors() == nil {
		t.Error("Connectors() is nil")
	}
}

func TestPipelineDeliversOutboundEvent(t *testing.T) {
	received := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	st := memory.New()
	p, err := webhooks.New(
		webhooks.WithStore(st),
		webhooks.WithRetrySchedule([]time.Duration{time.Hour}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := p.Merchants().SaveProfile(context.Background(), merchant.ProfileInput{
		MerchantID: "mrc_1",
		ProfileID:  "prf_1",
		WebhookURL: srv.URL,
	}); err != nil {
		t.Fatalf("SaveProfile() error = %v", err)
	}

	evt, err := p.Notifier().CreateAndTrigger(context.Background(), outbound.CreateInput{
		MerchantID: "mrc_1",
		ProfileID:  "prf_1",
		EventType:  event.TypePaymentSucceeded,
		ObjectID:   "pay_1",
		ObjectType: event.ObjectPayment,
		Content:    json.RawMessage(`{"payment_id":"pay_1"}`),
	})
	if err != nil {
		t.Fatalf("CreateAndTrigger() error = %v", err)
	}
	if evt == nil {
		t.Fatal("expected an event")
	}

	select {
	case body := <-received:
		var env outbound.Envelope
		if err := json.Unmarshal(body, &env); err != nil {
			t.Fatalf("delivered payload is not an envelope: %v", err)
		}
		if env.EventID != evt.ID.String() {
			t.Errorf("delivered event id = %q, want %q", env.EventID, evt.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("merchant endpoint never received the delivery")
	}

	p.Stop(context.Background())

	stored, err := st.GetEvent(context.Background(), evt.ID)
	if err != nil {
		t.Fatalf("GetEvent() error = %v", err)
	}
	if !stored.IsNotified {
		t.Error("event should be notified after delivery")
	}
}

func TestPipelineReplaysDeadLetteredEvent(t *testing.T) {
	st := memory.New()
	p, err := webhooks.New(
		webhooks.WithStore(st),
		webhooks.WithRetrySchedule([]time.Duration{time.Hour}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	if _, err := p.Merchants().SaveProfile(ctx, merchant.ProfileInput{
		MerchantID: "mrc_1",
		ProfileID:  "prf_1",
		WebhookURL: "https://merchant.example/hooks",
	}); err != nil {
		t.Fatalf("SaveProfile() error = %v", err)
	}

	// Seed a dead-lettered cycle by hand: the frozen event plus its DLQ
	// entry, as the engine leaves them after exhausting the budget.
	snap, _ := json.Marshal(&event.RequestSnapshot{Body: []byte(`{}`)})
	evtID := id.NewEventID()
	evt := &event.Event{
		Entity:            entity.New(),
		ID:                evtID,
		MerchantID:        "mrc_1",
		ProfileID:         "prf_1",
		Type:              event.TypePaymentSucceeded,
		ObjectID:          "pay_1",
		IdempotentEventID: "pay_1_payment_succeeded",
		InitialAttemptID:  evtID,
		Attempt:           event.AttemptInitial,
		Request:           snap,
	}
	if err := st.CreateEvent(ctx, evt); err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}

	entry := &dlq.Entry{
		Entity:     entity.New(),
		ID:         id.NewDLQID(),
		EventID:    evt.ID,
		TaskID:     id.NewTaskID(),
		MerchantID: "mrc_1",
		ProfileID:  "prf_1",
		FailedAt:   time.Now().UTC(),
	}
	if err := st.Push(ctx, entry); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	if err := p.DLQ().Replay(ctx, entry.ID); err != nil {
		t.Fatalf("Replay() error = %v", err)
	}

	stored, err := p.DLQ().Get(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.ReplayedAt == nil {
		t.Error("replayed entry must be marked")
	}

	// The replay enqueued a fresh task against the frozen cycle.
	due, err := st.DueTasks(ctx, time.Now().UTC().Add(2*time.Hour), 10)
	if err != nil {
		t.Fatalf("DueTasks() error = %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("due tasks = %d, want the replay task", len(due))
	}
	if due[0].InitialAttemptID.String() != evt.ID.String() {
		t.Errorf("replay task cycle = %v, want %v", due[0].InitialAttemptID, evt.ID)
	}
	if due[0].AttemptIndex != 0 {
		t.Errorf("replay task attempt index = %d, want 0", due[0].AttemptIndex)
	}
}
