// internal/domain/subscription/dto.go
package subscription

import "time"

// SubscribeRequest starts a subscription for the authenticated user
type SubscribeRequest struct {
	PlanID int64 `json:"plan_id" binding:"required,gt=0"`
}

// ChangePlanRequest moves the active subscription to another plan
type ChangePlanRequest struct {
	NewPlanID int64 `json:"new_plan_id" binding:"required,gt=0"`
}

// CreatePlanRequest adds a catalog entry
type CreatePlanRequest struct {
	Name         string   `json:"name" binding:"required,min=3,max=100"`
	Price        *float64 `json:"price" binding:"required,gte=0"`
	Features     string   `json:"features"`
	DurationDays int      `json:"duration_days" binding:"required,gt=0"`
}

// ListPlansQuery pages through the catalog
type ListPlansQuery struct {
	Skip  int `form:"skip,default=0" binding:"gte=0"`
	Limit int `form:"limit,default=100" binding:"gte=1,lte=100"`
}

// SubscriptionResponse renders dates as calendar dates
type SubscriptionResponse struct {
	ID        int64              `json:"id"`
	UserID    int64              `json:"user_id"`
	PlanID    int64              `json:"plan_id"`
	StartDate string             `json:"start_date"`
	EndDate   string             `json:"end_date"`
	Status    SubscriptionStatus `json:"status"`
	Plan      *Plan              `json:"plan,omitempty"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func NewSubscriptionResponse(s *Subscription, plan *Plan) *SubscriptionResponse {
	return &SubscriptionResponse{
		ID:        s.ID,
		UserID:    s.UserID,
		PlanID:    s.PlanID,
		StartDate: s.StartDate.Format(DateLayout),
		EndDate:   s.EndDate.Format(DateLayout),
		Status:    s.Status,
		Plan:      plan,
		UpdatedAt: s.UpdatedAt,
	}
}
