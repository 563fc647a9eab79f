// internal/domain/subscription/entity.go
package subscription

import (
	"time"
)

type SubscriptionStatus string

const (
	StatusActive SubscriptionStatus = "ACTIVE"
	// StatusInactive is reserved. No lifecycle operation produces or consumes it.
	StatusInactive  SubscriptionStatus = "INACTIVE"
	StatusCancelled SubscriptionStatus = "CANCELLED"
	StatusExpired   SubscriptionStatus = "EXPIRED"
)

// IsTerminal reports whether no transition leaves the status.
func (s SubscriptionStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusExpired
}

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

type Plan struct {
	ID           int64     `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Price        float64   `json:"price" db:"price"`
	Features     string    `json:"features" db:"features"`
	DurationDays int       `json:"duration_days" db:"duration_days"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Subscription is one user's entitlement window on a plan. StartDate and
// EndDate are calendar dates held as UTC midnight.
type Subscription struct {
	ID        int64              `json:"id" db:"id"`
	UserID    int64              `json:"user_id" db:"user_id"`
	PlanID    int64              `json:"plan_id" db:"plan_id"`
	StartDate time.Time          `json:"start_date" db:"start_date"`
	EndDate   time.Time          `json:"end_date" db:"end_date"`
	Status    SubscriptionStatus `json:"status" db:"status"`
	CreatedAt time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" db:"updated_at"`
}

// IsDue reports whether an active subscription has reached its end date.
func (s *Subscription) IsDue(asOf time.Time) bool {
	return s.Status == StatusActive && !s.EndDate.After(DateOf(asOf))
}
