package subscription

import "time"

type EventType string

const (
	EventCreated     EventType = "subscription.created"
	EventPlanChanged EventType = "subscription.plan_changed"
	EventCancelled   EventType = "subscription.cancelled"
	EventExpired     EventType = "subscription.expired"
)

// Event records a committed lifecycle transition.
type Event struct {
	Type           EventType          `json:"type"`
	SubscriptionID int64              `json:"subscription_id"`
	UserID         int64              `json:"user_id"`
	PlanID         int64              `json:"plan_id"`
	PreviousPlanID int64              `json:"previous_plan_id,omitempty"`
	Status         SubscriptionStatus `json:"status"`
	StartDate      string             `json:"start_date"`
	EndDate        string             `json:"end_date"`
	OccurredAt     time.Time          `json:"occurred_at"`
}

func NewEvent(t EventType, s *Subscription, at time.Time) Event {
	return Event{
		Type:           t,
		SubscriptionID: s.ID,
		UserID:         s.UserID,
		PlanID:         s.PlanID,
		Status:         s.Status,
		StartDate:      s.StartDate.Format(DateLayout),
		EndDate:        s.EndDate.Format(DateLayout),
		OccurredAt:     at,
	}
}
