package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/fluxpay/webhooks/event"
	"github.com/fluxpay/webhooks/id"
)

// CreateEvent stores an event, reserving its merchant-scoped idempotency
// key first. The SETNX reservation makes duplicate detection atomic across
// nodes.
func (s *Store) CreateEvent(ctx context.Context, evt *event.Event) error {
	var reservation string
	if evt.IdempotentEventID != "" {
		reservation = eventIdemKey(evt.MerchantID, evt.IdempotentEventID)
		ok, err := s.rdb.SetNX(ctx, reservation, evt.ID.String(), 0).Result()
		if err != nil {
			return fmt.Errorf("webhooks/redis: reserve idempotency key: %w", err)
		}
		if !ok {
			return event.ErrDuplicateIdempotentEvent
		}
	}

	if err := s.setEntity(ctx, entityKey(prefixEvent, evt.ID.String()), evt); err != nil {
		// Give the reservation back so a retried create is not mistaken
		// for a duplicate.
		if reservation != "" {
			if delErr := s.rdb.Del(ctx, reservation).Err(); delErr != nil {
				return fmt.Errorf("webhooks/redis: create event: %w (idempotency reservation leaked: %v)", err, delErr)
			}
		}
		return fmt.Errorf("webhooks/redis: create event: %w", err)
	}
	return nil
}

// GetEvent returns an event by id.
func (s *Store) GetEvent(ctx context.Context, evtID id.ID) (*event.Event, error) {
	var evt event.Event
	if err := s.getEntity(ctx, entityKey(prefixEvent, evtID.String()), &evt); err != nil {
		if isRedisNil(err) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("webhooks/redis: get event: %w", err)
	}
	return &evt, nil
}

// RecordAttempt appends a response snapshot to the event's attempt history
// and mirrors it as the latest response on the event record.
func (s *Store) RecordAttempt(ctx context.Context, evtID id.ID, response []byte, notified bool) error {
	key := entityKey(prefixEvent, evtID.String())

	var evt event.Event
	if err := s.getEntity(ctx, key, &evt); err != nil {
		if isRedisNil(err) {
			return event.ErrEventNotFound
		}
		return fmt.Errorf("webhooks/redis: record attempt get: %w", err)
	}

	if err := s.rdb.RPush(ctx, lEventResponses+evtID.String(), response).Err(); err != nil {
		return fmt.Errorf("webhooks/redis: record attempt history: %w", err)
	}

	evt.Response = response
	if notified {
		evt.IsNotified = true
	}
	evt.UpdatedAt = time.Now().UTC()

	if err := s.setEntity(ctx, key, &evt); err != nil {
		return fmt.Errorf("webhooks/redis: record attempt update: %w", err)
	}
	return nil
}

// ListAttemptResponses returns the attempt response history, oldest first.
func (s *Store) ListAttemptResponses(ctx context.Context, evtID id.ID) ([][]byte, error) {
	exists, err := s.rdb.Exists(ctx, entityKey(prefixEvent, evtID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("webhooks/redis: list responses: %w", err)
	}
	if exists == 0 {
		return nil, event.ErrEventNotFound
	}

	raw, err := s.rdb.LRange(ctx, lEventResponses+evtID.String(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("webhooks/redis: list responses: %w", err)
	}

	out := make([][]byte, len(raw))
	for i, r := range raw {
		out[i] = []byte(r)
	}
	return out, nil
}
