// Package outbound creates merchant notification events and triggers their
// initial delivery. Creation is idempotent per (object, event type): a
// business transition observed twice produces one event, and the duplicate
// path reports success so callers never retry into double notification.
package outbound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fluxpay/webhooks/crypt"
	"github.com/fluxpay/webhooks/delivery"
	"github.com/fluxpay/webhooks/event"
	"github.com/fluxpay/webhooks/id"
	"github.com/fluxpay/webhooks/internal/entity"
	"github.com/fluxpay/webhooks/merchant"
	"github.com/fluxpay/webhooks/scheduler"
	"github.com/fluxpay/webhooks/signature"
)

// Store is what the notifier needs from persistence.
type Store interface {
	CreateEvent(ctx context.Context, evt *event.Event) error
	GetProfile(ctx context.Context, merchantID, profileID string) (*merchant.Profile, error)
}

// CreateInput describes one business transition to notify the merchant
// about.
type CreateInput struct {
	MerchantID string
	ProfileID  string

	EventType  event.Type
	ObjectID   string
	ObjectType event.ObjectType

	// Content is the public representation of the object, embedded in the
	// envelope verbatim.
	Content json.RawMessage

	ObjectCreatedAt *time.Time
}

// Notifier creates outbound events and hands them to the delivery engine.
type Notifier struct {
	store      Store
	scheduler  *scheduler.Scheduler
	engine     *delivery.Engine
	pool       *delivery.Pool
	encryptor  crypt.Encryptor
	validator  *Validator
	transforms *Transforms
	logger     *slog.Logger
}

// NewNotifier creates a notifier.
func NewNotifier(store Store, sched *scheduler.Scheduler, engine *delivery.Engine, pool *delivery.Pool, encryptor crypt.Encryptor, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if encryptor == nil {
		encryptor = crypt.Plain{}
	}
	return &Notifier{
		store:      store,
		scheduler:  sched,
		engine:     engine,
		pool:       pool,
		encryptor:  encryptor,
		validator:  NewValidator(),
		transforms: NewTransforms(),
		logger:     logger,
	}
}

// Transforms exposes the payload format registry for custom registrations.
func (n *Notifier) Transforms() *Transforms { return n.transforms }

// CreateAndTrigger creates the outbound event for a business transition and
// starts its delivery cycle. It returns (nil, nil) when the profile has no
// webhook configured, the event type is muted, or the same transition was
// already notified; all three are successful no-ops.
func (n *Notifier) CreateAndTrigger(ctx context.Context, in CreateInput) (*event.Event, error) {
	p, err := n.store.GetProfile(ctx, in.MerchantID, in.ProfileID)
	if err != nil {
		if errors.Is(err, merchant.ErrProfileNotFound) {
			n.logger.DebugContext(ctx, "no profile, skipping notification",
				"merchant_id", in.MerchantID, "profile_id", in.ProfileID)
			return nil, nil
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}

	if !p.DeliveryConfigured() {
		n.logger.DebugContext(ctx, "webhook url not configured, skipping notification",
			"merchant_id", in.MerchantID, "profile_id", in.ProfileID)
		return nil, nil
	}
	if p.EventDisabled(string(in.EventType)) {
		n.logger.DebugContext(ctx, "event type muted, skipping notification",
			"merchant_id", in.MerchantID, "event_type", in.EventType)
		return nil, nil
	}

	evtID := id.NewEventID()

	envelope, err := json.Marshal(Envelope{
		MerchantID: in.MerchantID,
		EventID:    evtID.String(),
		EventType:  string(in.EventType),
		Content:    in.Content,
		Timestamp:  time.Now().Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}

	if err := n.validator.Validate(envelope); err != nil {
		return nil, err
	}

	payload, err := n.transforms.Apply(p.PayloadFormat, envelope)
	if err != nil {
		return nil, err
	}

	ts := time.Now().Unix()
	snap := &event.RequestSnapshot{
		Headers: signature.Headers(payload, p.Secret, ts),
		Body:    payload,
	}

	rawSnap, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode request snapshot: %w", err)
	}
	sealedSnap, err := n.encryptor.Encrypt(ctx, in.MerchantID, rawSnap)
	if err != nil {
		return nil, fmt.Errorf("encrypt request snapshot: %w", err)
	}

	evt := &event.Event{
		Entity:            entity.New(),
		ID:                evtID,
		MerchantID:        in.MerchantID,
		ProfileID:         in.ProfileID,
		Type:              in.EventType,
		Class:             in.EventType.Class(),
		ObjectID:          in.ObjectID,
		ObjectType:        in.ObjectType,
		ObjectCreatedAt:   in.ObjectCreatedAt,
		IdempotentEventID: IdempotentEventID(in.ObjectID, in.EventType, event.AttemptInitial),
		InitialAttemptID:  evtID,
		Attempt:           event.AttemptInitial,
		Request:           sealedSnap,
	}

	if err := n.store.CreateEvent(ctx, evt); err != nil {
		if errors.Is(err, event.ErrDuplicateIdempotentEvent) {
			// Already notified for this transition.
			n.logger.DebugContext(ctx, "duplicate outbound event, skipping",
				"object_id", in.ObjectID, "event_type", in.EventType)
			return nil, nil
		}
		return nil, fmt.Errorf("create event: %w", err)
	}

	task := &scheduler.RetryTask{
		MerchantID:       in.MerchantID,
		ProfileID:        in.ProfileID,
		EventType:        in.EventType,
		Class:            evt.Class,
		ObjectID:         in.ObjectID,
		ObjectType:       in.ObjectType,
		InitialAttemptID: evt.ID,
	}
	if err := n.scheduler.Enqueue(ctx, task, p); err != nil {
		return nil, err
	}

	n.pool.Submit(ctx, func(bg context.Context) error {
		return n.engine.Deliver(bg, evt, snap, event.AttemptInitial, task)
	})

	n.logger.InfoContext(ctx, "outbound event created",
		"event_id", evt.ID, "event_type", evt.Type, "object_id", evt.ObjectID,
		"merchant_id", evt.MerchantID)
	return evt, nil
}

// IdempotentEventID derives the uniqueness key that collapses duplicate
// notifications of the same business transition. Initial attempts own the
// bare key; other attempt kinds are suffixed so they can never collide
// with it.
func IdempotentEventID(objectID string, eventType event.Type, attempt event.DeliveryAttempt) string {
	if attempt == event.AttemptInitial {
		return fmt.Sprintf("%s_%s", objectID, eventType)
	}
	return fmt.Sprintf("%s_%s_%s", objectID, eventType, attempt)
}
