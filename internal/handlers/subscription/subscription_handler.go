// internal/handlers/subscription/subscription_handler.go
package subscription

import (
	"net/http"

	domain "rankpilot-service/internal/domain/subscription"
	"rankpilot-service/internal/middleware"
	xerrors "rankpilot-service/internal/pkg/errors"
	"rankpilot-service/internal/pkg/response"
	service "rankpilot-service/internal/service/subscription"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SubscriptionHandler struct {
	subscriptionService *service.SubscriptionService
	logger              *zap.Logger
}

func NewSubscriptionHandler(subscriptionService *service.SubscriptionService, logger *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionService: subscriptionService,
		logger:              logger,
	}
}

// Get returns one user's subscription record. Users without a stored
// record come back as the default free record.
func (h *SubscriptionHandler) Get(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		response.ValidationError(c, "userId is required", nil)
		return
	}

	rec, err := h.subscriptionService.Get(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to load subscription", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription retrieved", rec)
}

// List returns subscription records filtered by status/tier with paging.
func (h *SubscriptionHandler) List(c *gin.Context) {
	var filters domain.ListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.ValidationError(c, "invalid filters", err)
		return
	}

	records, err := h.subscriptionService.List(c.Request.Context(), &filters)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list subscriptions", err)
		return
	}

	response.Success(c, http.StatusOK, "subscriptions retrieved", gin.H{
		"subscriptions": records,
		"count":         len(records),
	})
}

// Stats reports record counts by status for the admin dashboard.
func (h *SubscriptionHandler) Stats(c *gin.Context) {
	stats, err := h.subscriptionService.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to get subscription stats", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription stats", stats)
}

// Override applies an administrative subscription transition. It runs
// through the same validation as billing-driven transitions, so an
// admin cannot put a record into a state the machine forbids.
func (h *SubscriptionHandler) Override(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		response.ValidationError(c, "userId is required", nil)
		return
	}

	var req domain.AdminTransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "tier and status are required", err)
		return
	}

	rec, err := h.subscriptionService.AdminOverride(c.Request.Context(), userID, &req)
	if err != nil {
		switch {
		case xerrors.Is(err, xerrors.ErrUnknownTier):
			response.ValidationError(c, "unknown tier", err)
		case xerrors.Is(err, xerrors.ErrInvalidTransition):
			response.Error(c, http.StatusConflict, "invalid transition", err)
		case xerrors.Is(err, xerrors.ErrStaleEvent):
			response.Error(c, http.StatusConflict, "subscription is canceled", err)
		default:
			response.Error(c, http.StatusInternalServerError, "failed to apply override", err)
		}
		return
	}

	h.logger.Info("admin subscription override",
		zap.Int64("admin_id", middleware.MustGetAdminID(c)),
		zap.String("user_id", userID),
		zap.String("tier", req.Tier),
		zap.String("status", req.Status),
	)

	response.Success(c, http.StatusOK, "subscription updated", rec)
}
