// internal/handlers/subscription/subscription_handler.go
package subscription

import (
	"context"
	"net/http"

	"subscription-service/internal/domain/subscription"
	"subscription-service/internal/middleware"
	xerrors "subscription-service/internal/pkg/errors"
	"subscription-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Engine is the lifecycle surface the HTTP layer maps onto
type Engine interface {
	Subscribe(ctx context.Context, userID, planID int64) (*subscription.Subscription, error)
	GetActiveSubscription(ctx context.Context, userID int64) (*subscription.Subscription, error)
	ChangePlan(ctx context.Context, userID, newPlanID int64) (*subscription.Subscription, error)
	Cancel(ctx context.Context, userID int64) error
	ListHistory(ctx context.Context, userID int64) ([]*subscription.Subscription, error)
}

type PlanLookup interface {
	GetPlan(ctx context.Context, id int64) (*subscription.Plan, error)
}

type SubscriptionHandler struct {
	engine Engine
	plans  PlanLookup
	logger *zap.Logger
}

func NewSubscriptionHandler(engine Engine, plans PlanLookup, logger *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		engine: engine,
		plans:  plans,
		logger: logger,
	}
}

// Subscribe handles POST /subscriptions
func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	var req subscription.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	sub, err := h.engine.Subscribe(c.Request.Context(), userID, req.PlanID)
	if err != nil {
		h.fail(c, "failed to create subscription", userID, err)
		return
	}

	response.Success(c, http.StatusCreated, "subscription created successfully", h.render(c, sub))
}

// GetMine handles GET /subscriptions/me
func (h *SubscriptionHandler) GetMine(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	sub, err := h.engine.GetActiveSubscription(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, "no active subscription found", userID, err)
		return
	}

	response.Success(c, http.StatusOK, "subscription retrieved successfully", h.render(c, sub))
}

// ChangePlan handles PUT /subscriptions/me
func (h *SubscriptionHandler) ChangePlan(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	var req subscription.ChangePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	sub, err := h.engine.ChangePlan(c.Request.Context(), userID, req.NewPlanID)
	if err != nil {
		h.fail(c, "failed to change plan", userID, err)
		return
	}

	response.Success(c, http.StatusOK, "subscription plan changed successfully", h.render(c, sub))
}

// Cancel handles DELETE /subscriptions/me
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	if err := h.engine.Cancel(c.Request.Context(), userID); err != nil {
		h.fail(c, "failed to cancel subscription", userID, err)
		return
	}

	response.NoContent(c)
}

// History handles GET /subscriptions/me/history
func (h *SubscriptionHandler) History(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	subs, err := h.engine.ListHistory(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, "failed to list subscriptions", userID, err)
		return
	}

	out := make([]*subscription.SubscriptionResponse, 0, len(subs))
	for _, s := range subs {
		out = append(out, h.render(c, s))
	}
	response.Success(c, http.StatusOK, "subscriptions retrieved successfully", out)
}

// render attaches the plan when it can be loaded; the subscription is still
// returned if the lookup fails.
func (h *SubscriptionHandler) render(c *gin.Context, sub *subscription.Subscription) *subscription.SubscriptionResponse {
	plan, err := h.plans.GetPlan(c.Request.Context(), sub.PlanID)
	if err != nil {
		h.logger.Warn("failed to load plan for subscription",
			zap.Int64("subscription_id", sub.ID),
			zap.Int64("plan_id", sub.PlanID),
			zap.Error(err),
		)
		plan = nil
	}
	return subscription.NewSubscriptionResponse(sub, plan)
}

func (h *SubscriptionHandler) fail(c *gin.Context, message string, userID int64, err error) {
	switch xerrors.KindOf(err) {
	case xerrors.KindIntegrity:
		message = "multiple active subscriptions found for user, please contact support"
	case xerrors.KindUnknown, xerrors.KindTransient:
		h.logger.Error(message, zap.Int64("user_id", userID), zap.Error(err))
	}
	response.FromError(c, message, err)
}
