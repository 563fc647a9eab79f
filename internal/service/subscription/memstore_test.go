package subscription

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"subscription-service/internal/domain/subscription"
	xerrors "subscription-service/internal/pkg/errors"
)

// memStore mirrors the postgres adapter: one ACTIVE row per user is enforced
// on insert and status writes are conditional on the current status.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*subscription.Subscription
	writes int

	failUpdate map[int64]error
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[int64]*subscription.Subscription), failUpdate: make(map[int64]error)}
}

func (m *memStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.rows {
		if r.UserID == sub.UserID && r.Status == subscription.StatusActive && sub.Status == subscription.StatusActive {
			return xerrors.Conflict("user already has an active subscription", 0)
		}
	}

	m.nextID++
	sub.ID = m.nextID
	cp := *sub
	m.rows[cp.ID] = &cp
	m.writes++
	return nil
}

func (m *memStore) FindActiveByUser(ctx context.Context, userID int64) (*subscription.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var found []*subscription.Subscription
	for _, r := range m.rows {
		if r.UserID == userID && r.Status == subscription.StatusActive {
			found = append(found, r)
		}
	}
	switch len(found) {
	case 0:
		return nil, xerrors.NotFound("no active subscription")
	case 1:
		cp := *found[0]
		return &cp, nil
	}
	return nil, xerrors.Integrity(fmt.Sprintf("multiple active subscriptions for user %d", userID))
}

func (m *memStore) FindLatestByUser(ctx context.Context, userID int64) (*subscription.Subscription, error) {
	subs, _ := m.ListByUser(ctx, userID)
	if len(subs) == 0 {
		return nil, xerrors.NotFound("no subscription found")
	}
	return subs[0], nil
}

func (m *memStore) ListByUser(ctx context.Context, userID int64) ([]*subscription.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*subscription.Subscription
	for _, r := range m.rows {
		if r.UserID == userID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) ListDue(ctx context.Context, asOf time.Time) ([]*subscription.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*subscription.Subscription
	for _, r := range m.rows {
		if r.IsDue(asOf) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) UpdatePlan(ctx context.Context, id, planID int64, endDate time.Time) (*subscription.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rows[id]
	if !ok || r.Status != subscription.StatusActive {
		return nil, xerrors.NotFound("no active subscription")
	}
	r.PlanID = planID
	r.EndDate = endDate
	m.writes++
	cp := *r
	return &cp, nil
}

func (m *memStore) UpdateStatus(ctx context.Context, id int64, from, to subscription.SubscriptionStatus) (*subscription.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failUpdate[id]; err != nil {
		return nil, err
	}
	r, ok := m.rows[id]
	if !ok || r.Status != from {
		return nil, xerrors.NotFound("subscription not in expected status")
	}
	r.Status = to
	m.writes++
	cp := *r
	return &cp, nil
}

func (m *memStore) Expire(ctx context.Context, id int64, asOf time.Time) (*subscription.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failUpdate[id]; err != nil {
		return nil, err
	}
	r, ok := m.rows[id]
	if !ok || !r.IsDue(asOf) {
		return nil, xerrors.NotFound("subscription is no longer due")
	}
	r.Status = subscription.StatusExpired
	m.writes++
	cp := *r
	return &cp, nil
}

// put inserts a row as-is, bypassing the active-row check.
func (m *memStore) put(sub subscription.Subscription) *subscription.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	sub.ID = m.nextID
	m.rows[sub.ID] = &sub
	return &sub
}

func (m *memStore) get(id int64) subscription.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.rows[id]
}

func (m *memStore) activeCount(userID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rows {
		if r.UserID == userID && r.Status == subscription.StatusActive {
			n++
		}
	}
	return n
}

func (m *memStore) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

type planTable map[int64]*subscription.Plan

func (p planTable) FindByID(ctx context.Context, id int64) (*subscription.Plan, error) {
	plan, ok := p[id]
	if !ok {
		return nil, xerrors.NotFound("plan not found")
	}
	return plan, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []subscription.Event
	err    error
}

func (r *recordingPublisher) Publish(ctx context.Context, e subscription.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingPublisher) types() []subscription.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]subscription.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
