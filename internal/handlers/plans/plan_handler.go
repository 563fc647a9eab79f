// internal/handlers/plans/plan_handler.go
package plans

import (
	"context"
	"net/http"
	"strconv"

	"subscription-service/internal/domain/subscription"
	"subscription-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Service interface {
	CreatePlan(ctx context.Context, req *subscription.CreatePlanRequest) (*subscription.Plan, error)
	GetPlan(ctx context.Context, id int64) (*subscription.Plan, error)
	ListPlans(ctx context.Context, skip, limit int) ([]*subscription.Plan, error)
}

type PlanHandler struct {
	service Service
	logger  *zap.Logger
}

func NewPlanHandler(service Service, logger *zap.Logger) *PlanHandler {
	return &PlanHandler{
		service: service,
		logger:  logger,
	}
}

// CreatePlan handles POST /plans
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	var req subscription.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	plan, err := h.service.CreatePlan(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, "failed to create plan", err)
		return
	}

	response.Success(c, http.StatusCreated, "plan created successfully", plan)
}

// ListPlans handles GET /plans?skip=&limit=
func (h *PlanHandler) ListPlans(c *gin.Context) {
	var q subscription.ListPlansQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ValidationError(c, "invalid query parameters", err)
		return
	}

	plans, err := h.service.ListPlans(c.Request.Context(), q.Skip, q.Limit)
	if err != nil {
		h.logger.Error("failed to list plans", zap.Error(err))
		response.FromError(c, "failed to list plans", err)
		return
	}

	response.Success(c, http.StatusOK, "plans retrieved successfully", plans)
}

// GetPlan handles GET /plans/:id
func (h *PlanHandler) GetPlan(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.ValidationError(c, "invalid plan ID", err)
		return
	}

	plan, err := h.service.GetPlan(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, "plan not found", err)
		return
	}

	response.Success(c, http.StatusOK, "plan retrieved successfully", plan)
}
