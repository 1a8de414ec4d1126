package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/fluxpay/webhooks/id"
	"github.com/fluxpay/webhooks/scheduler"
)

// claimScript atomically claims due task ids from the sorted set.
// KEYS[1] = webhooks:z:task:due
// ARGV[1] = current score threshold
// ARGV[2] = limit
var claimScript = goredis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
if #ids == 0 then return {} end
for i, id in ipairs(ids) do
    redis.call('ZREM', KEYS[1], id)
end
return ids
`)

// CreateTask stores a task and queues it at its schedule time.
func (s *Store) CreateTask(ctx context.Context, t *scheduler.RetryTask) error {
	if err := s.setEntity(ctx, entityKey(prefixTask, t.ID.String()), t); err != nil {
		return fmt.Errorf("webhooks/redis: create task: %w", err)
	}

	err := s.rdb.ZAdd(ctx, zTaskDue, goredis.Z{
		Score:  scoreFromTime(t.ScheduleTime),
		Member: t.ID.String(),
	}).Err()
	if err != nil {
		return fmt.Errorf("webhooks/redis: queue task: %w", err)
	}
	return nil
}

// UpdateTask rewrites a task. Unfinished tasks are requeued at their new
// schedule time; finished tasks leave the due queue for good.
func (s *Store) UpdateTask(ctx context.Context, t *scheduler.RetryTask) error {
	key := entityKey(prefixTask, t.ID.String())

	exists, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("webhooks/redis: update task: %w", err)
	}
	if exists == 0 {
		return scheduler.ErrTaskNotFound
	}

	if err := s.setEntity(ctx, key, t); err != nil {
		return fmt.Errorf("webhooks/redis: update task: %w", err)
	}

	if t.Finished {
		if err := s.rdb.ZRem(ctx, zTaskDue, t.ID.String()).Err(); err != nil {
			return fmt.Errorf("webhooks/redis: dequeue finished task: %w", err)
		}
		return nil
	}

	err = s.rdb.ZAdd(ctx, zTaskDue, goredis.Z{
		Score:  scoreFromTime(t.ScheduleTime),
		Member: t.ID.String(),
	}).Err()
	if err != nil {
		return fmt.Errorf("webhooks/redis: requeue task: %w", err)
	}
	return nil
}

// GetTask returns a task by id.
func (s *Store) GetTask(ctx context.Context, taskID id.ID) (*scheduler.RetryTask, error) {
	var t scheduler.RetryTask
	if err := s.getEntity(ctx, entityKey(prefixTask, taskID.String()), &t); err != nil {
		if isRedisNil(err) {
			return nil, scheduler.ErrTaskNotFound
		}
		return nil, fmt.Errorf("webhooks/redis: get task: %w", err)
	}
	return &t, nil
}

// DueTasks atomically claims up to limit due tasks. Finished tasks that
// were still queued are dropped on the way out.
func (s *Store) DueTasks(ctx context.Context, nowAt time.Time, limit int) ([]*scheduler.RetryTask, error) {
	nowScore := fmt.Sprintf("%f", scoreFromTime(nowAt))
	ids, err := claimScript.Run(ctx, s.rdb, []string{zTaskDue}, nowScore, limit).StringSlice()
	if err != nil {
		if isRedisNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("webhooks/redis: claim due tasks: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	tasks := make([]*scheduler.RetryTask, 0, len(ids))
	for _, taskID := range ids {
		var t scheduler.RetryTask
		if err := s.getEntity(ctx, entityKey(prefixTask, taskID), &t); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, fmt.Errorf("webhooks/redis: due task get: %w", err)
		}
		if t.Finished {
			continue
		}
		tasks = append(tasks, &t)
	}
	return tasks, nil
}
