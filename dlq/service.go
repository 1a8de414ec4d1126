package dlq

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fluxpay/webhooks/event"
	"github.com/fluxpay/webhooks/id"
	"github.com/fluxpay/webhooks/internal/entity"
	"github.com/fluxpay/webhooks/scheduler"
)

// ErrReplayNotConfigured is returned by Replay when no replayer is wired.
var ErrReplayNotConfigured = errors.New("dlq: replay not configured")

// Replayer re-drives delivery for a dead-lettered event.
type Replayer interface {
	ReplayEntry(ctx context.Context, e *Entry) error
}

// Service manages the dead letter queue.
type Service struct {
	store    Store
	replayer Replayer
	logger   *slog.Logger
}

// NewService creates a new DLQ service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
	}
}

// SetReplayer wires the replay path.
func (svc *Service) SetReplayer(r Replayer) { svc.replayer = r }

// PushExhausted records a delivery cycle whose retry budget ran out.
// Implements delivery.DLQPusher.
func (svc *Service) PushExhausted(ctx context.Context, t *scheduler.RetryTask, evt *event.Event, url, lastError string, lastStatusCode int) error {
	entry := &Entry{
		Entity:         entity.New(),
		ID:             id.NewDLQID(),
		EventID:        evt.ID,
		TaskID:         t.ID,
		MerchantID:     t.MerchantID,
		ProfileID:      t.ProfileID,
		EventType:      string(t.EventType),
		ObjectID:       t.ObjectID,
		URL:            url,
		Error:          lastError,
		AttemptCount:   t.AttemptIndex + 1,
		LastStatusCode: lastStatusCode,
		FailedAt:       time.Now().UTC(),
	}

	if err := svc.store.Push(ctx, entry); err != nil {
		return err
	}

	svc.logger.WarnContext(ctx, "delivery dead-lettered",
		"dlq_id", entry.ID, "event_id", evt.ID, "object_id", t.ObjectID,
		"attempts", entry.AttemptCount)
	return nil
}

// List returns DLQ entries matching the given options.
func (svc *Service) List(ctx context.Context, opts ListOpts) ([]*Entry, error) {
	return svc.store.ListDLQ(ctx, opts)
}

// Get returns a DLQ entry by ID.
func (svc *Service) Get(ctx context.Context, dlqID id.ID) (*Entry, error) {
	return svc.store.GetDLQ(ctx, dlqID)
}

// Replay re-drives delivery for a single entry.
func (svc *Service) Replay(ctx context.Context, dlqID id.ID) error {
	if svc.replayer == nil {
		return ErrReplayNotConfigured
	}

	entry, err := svc.store.GetDLQ(ctx, dlqID)
	if err != nil {
		return err
	}

	if err := svc.replayer.ReplayEntry(ctx, entry); err != nil {
		return err
	}

	return svc.store.MarkReplayed(ctx, dlqID, time.Now().UTC())
}

// Purge removes old DLQ entries.
func (svc *Service) Purge(ctx context.Context, before time.Time) (int64, error) {
	return svc.store.Purge(ctx, before)
}

// Count returns the total number of DLQ entries.
func (svc *Service) Count(ctx context.Context) (int64, error) {
	return svc.store.CountDLQ(ctx)
}
