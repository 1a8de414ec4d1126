package redis

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/fluxpay/webhooks/dlq"
	"github.com/fluxpay/webhooks/id"
)

// Push adds a dead letter entry, indexed by failure time.
func (s *Store) Push(ctx context.Context, e *dlq.Entry) error {
	if err := s.setEntity(ctx, entityKey(prefixDLQ, e.ID.String()), e); err != nil {
		return fmt.Errorf("webhooks/redis: push dlq: %w", err)
	}

	err := s.rdb.ZAdd(ctx, zDLQAll, goredis.Z{
		Score:  scoreFromTime(e.FailedAt),
		Member: e.ID.String(),
	}).Err()
	if err != nil {
		return fmt.Errorf("webhooks/redis: index dlq: %w", err)
	}
	return nil
}

// GetDLQ returns an entry by id.
func (s *Store) GetDLQ(ctx context.Context, dlqID id.ID) (*dlq.Entry, error) {
	var e dlq.Entry
	if err := s.getEntity(ctx, entityKey(prefixDLQ, dlqID.String()), &e); err != nil {
		if isRedisNil(err) {
			return nil, dlq.ErrEntryNotFound
		}
		return nil, fmt.Errorf("webhooks/redis: get dlq: %w", err)
	}
	return &e, nil
}

// ListDLQ returns entries newest first within the requested window.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	minScore, maxScore := "-inf", "+inf"
	if opts.From != nil {
		minScore = formatScore(scoreFromTime(*opts.From))
	}
	if opts.To != nil {
		maxScore = formatScore(scoreFromTime(*opts.To))
	}

	ids, err := s.rdb.ZRevRangeByScore(ctx, zDLQAll, &goredis.ZRangeBy{
		Min: minScore,
		Max: maxScore,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("webhooks/redis: list dlq: %w", err)
	}

	out := make([]*dlq.Entry, 0, len(ids))
	for _, entryID := range ids {
		var e dlq.Entry
		if err := s.getEntity(ctx, entityKey(prefixDLQ, entryID), &e); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, fmt.Errorf("webhooks/redis: list dlq get: %w", err)
		}
		if opts.MerchantID != "" && e.MerchantID != opts.MerchantID {
			continue
		}
		out = append(out, &e)
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

// MarkReplayed stamps an entry as replayed.
func (s *Store) MarkReplayed(ctx context.Context, dlqID id.ID, at time.Time) error {
	e, err := s.GetDLQ(ctx, dlqID)
	if err != nil {
		return err
	}
	e.ReplayedAt = &at
	return s.setEntity(ctx, entityKey(prefixDLQ, dlqID.String()), e)
}

// Purge removes entries that failed before the cutoff.
func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	maxScore := formatScore(scoreFromTime(before))
	ids, err := s.rdb.ZRangeByScore(ctx, zDLQAll, &goredis.ZRangeBy{
		Min: "-inf",
		Max: "(" + maxScore,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("webhooks/redis: purge scan: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := s.rdb.Pipeline()
	for _, entryID := range ids {
		pipe.Del(ctx, entityKey(prefixDLQ, entryID))
		pipe.ZRem(ctx, zDLQAll, entryID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("webhooks/redis: purge: %w", err)
	}
	return int64(len(ids)), nil
}

// CountDLQ returns the total number of entries.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	count, err := s.rdb.ZCard(ctx, zDLQAll).Result()
	if err != nil {
		return 0, fmt.Errorf("webhooks/redis: count dlq: %w", err)
	}
	return count, nil
}

func formatScore(score float64) string {
	if math.IsInf(score, 0) {
		return "+inf"
	}
	return strconv.FormatFloat(score, 'f', -1, 64)
}
