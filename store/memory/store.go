// Package memory provides an in-memory Store for tests and local
// development. Not suitable for production: all state is lost on restart
// and nothing is shared across processes.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fluxpay/webhooks/dlq"
	"github.com/fluxpay/webhooks/event"
	"github.com/fluxpay/webhooks/id"
	"github.com/fluxpay/webhooks/merchant"
	"github.com/fluxpay/webhooks/scheduler"
	"github.com/fluxpay/webhooks/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store with maps guarded by a single mutex.
type Store struct {
	mu sync.RWMutex

	events    map[string]*event.Event
	idemKeys  map[string]string // idempotent event id -> event id
	responses map[string][][]byte

	tasks   map[string]*scheduler.RetryTask
	claimed map[string]bool

	profiles map[string]*merchant.Profile
	accounts map[string]*merchant.ConnectorAccount

	dlqEntries map[string]*dlq.Entry
	dlqOrder   []string
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		events:     make(map[string]*event.Event),
		idemKeys:   make(map[string]string),
		responses:  make(map[string][][]byte),
		tasks:      make(map[string]*scheduler.RetryTask),
		claimed:    make(map[string]bool),
		profiles:   make(map[string]*merchant.Profile),
		accounts:   make(map[string]*merchant.ConnectorAccount),
		dlqEntries: make(map[string]*dlq.Entry),
	}
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

// --- event.Store ---

func (s *Store) CreateEvent(_ context.Context, evt *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if evt.IdempotentEventID != "" {
		// Uniqueness is scoped per merchant: object ids from different
		// merchants may collide without being the same transition.
		key := evt.MerchantID + "/" + evt.IdempotentEventID
		if _, dup := s.idemKeys[key]; dup {
			return event.ErrDuplicateIdempotentEvent
		}
		s.idemKeys[key] = evt.ID.String()
	}

	cp := *evt
	s.events[evt.ID.String()] = &cp
	return nil
}

func (s *Store) GetEvent(_ context.Context, evtID id.ID) (*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	evt, ok := s.events[evtID.String()]
	if !ok {
		return nil, event.ErrEventNotFound
	}
	cp := *evt
	return &cp, nil
}

func (s *Store) RecordAttempt(_ context.Context, evtID id.ID, response []byte, notified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	evt, ok := s.events[evtID.String()]
	if !ok {
		return event.ErrEventNotFound
	}

	s.responses[evtID.String()] = append(s.responses[evtID.String()], response)
	evt.Response = response
	if notified {
		evt.IsNotified = true
	}
	evt.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) ListAttemptResponses(_ context.Context, evtID id.ID) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.events[evtID.String()]; !ok {
		return nil, event.ErrEventNotFound
	}

	src := s.responses[evtID.String()]
	out := make([][]byte, len(src))
	copy(out, src)
	return out, nil
}

// --- scheduler.TaskStore ---

func (s *Store) CreateTask(_ context.Context, t *scheduler.RetryTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *t
	s.tasks[t.ID.String()] = &cp
	return nil
}

func (s *Store) UpdateTask(_ context.Context, t *scheduler.RetryTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[t.ID.String()]; !ok {
		return scheduler.ErrTaskNotFound
	}

	cp := *t
	s.tasks[t.ID.String()] = &cp
	// An update settles the claim: the task was either finalized or
	// rescheduled for a later pickup.
	delete(s.claimed, t.ID.String())
	return nil
}

func (s *Store) GetTask(_ context.Context, taskID id.ID) (*scheduler.RetryTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[taskID.String()]
	if !ok {
		return nil, scheduler.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *Store) DueTasks(_ context.Context, now time.Time, limit int) ([]*scheduler.RetryTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*scheduler.RetryTask
	for key, t := range s.tasks {
		if t.Finished || s.claimed[key] || t.ScheduleTime.After(now) {
			continue
		}
		cp := *t
		due = append(due, &cp)
		if limit > 0 && len(due) >= limit {
			break
		}
	}

	for _, t := range due {
		s.claimed[t.ID.String()] = true
	}
	return due, nil
}

// --- merchant.Store ---

func profileKey(merchantID, profileID string) string {
	return merchantID + "/" + profileID
}

func accountKey(merchantID, accountID string) string {
	return merchantID + "/" + accountID
}

func (s *Store) GetProfile(_ context.Context, merchantID, profileID string) (*merchant.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[profileKey(merchantID, profileID)]
	if !ok {
		return nil, merchant.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) UpsertProfile(_ context.Context, p *merchant.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.profiles[profileKey(p.MerchantID, p.ProfileID)] = &cp
	return nil
}

func (s *Store) GetAccount(_ context.Context, merchantID, accountID string) (*merchant.ConnectorAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[accountKey(merchantID, accountID)]
	if !ok {
		return nil, merchant.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *Store) FindAccountByConnector(_ context.Context, merchantID, connectorName string) (*merchant.ConnectorAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for key, a := range s.accounts {
		if strings.HasPrefix(key, merchantID+"/") && a.ConnectorName == connectorName {
			cp := *a
			return &cp, nil
		}
	}
	return nil, merchant.ErrAccountNotFound
}

func (s *Store) UpsertAccount(_ context.Context, a *merchant.ConnectorAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *a
	s.accounts[accountKey(a.MerchantID, a.AccountID)] = &cp
	return nil
}

// --- dlq.Store ---

func (s *Store) Push(_ context.Context, e *dlq.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *e
	s.dlqEntries[e.ID.String()] = &cp
	s.dlqOrder = append(s.dlqOrder, e.ID.String())
	return nil
}

func (s *Store) GetDLQ(_ context.Context, dlqID id.ID) (*dlq.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.dlqEntries[dlqID.String()]
	if !ok {
		return nil, dlq.ErrEntryNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *Store) ListDLQ(_ context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*dlq.Entry
	for _, key := range s.dlqOrder {
		e, ok := s.dlqEntries[key]
		if !ok {
			continue
		}
		if opts.MerchantID != "" && e.MerchantID != opts.MerchantID {
			continue
		}
		if opts.From != nil && e.FailedAt.Before(*opts.From) {
			continue
		}
		if opts.To != nil && e.FailedAt.After(*opts.To) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}

	// Newest first.
	sort.Slice(out, func(i, j int) bool { return out[i].FailedAt.After(out[j].FailedAt) })

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

func (s *Store) MarkReplayed(_ context.Context, dlqID id.ID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.dlqEntries[dlqID.String()]
	if !ok {
		return dlq.ErrEntryNotFound
	}
	e.ReplayedAt = &at
	return nil
}

func (s *Store) Purge(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	kept := s.dlqOrder[:0]
	for _, key := range s.dlqOrder {
		e, ok := s.dlqEntries[key]
		if ok && e.FailedAt.Before(before) {
			delete(s.dlqEntries, key)
			removed++
			continue
		}
		kept = append(kept, key)
	}
	s.dlqOrder = kept
	return removed, nil
}

func (s *Store) CountDLQ(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.dlqEntries)), nil
}
