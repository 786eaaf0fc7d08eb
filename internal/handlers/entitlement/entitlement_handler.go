// internal/handlers/entitlement/entitlement_handler.go
package entitlement

import (
	"net/http"

	"rankpilot-service/internal/domain/tier"
	xerrors "rankpilot-service/internal/pkg/errors"
	"rankpilot-service/internal/pkg/response"
	entsvc "rankpilot-service/internal/service/entitlement"
	subsvc "rankpilot-service/internal/service/subscription"
	usagesvc "rankpilot-service/internal/service/usage"

	"github.com/gin-gonic/gin"
)

type checkRequest struct {
	UserID string `json:"userId" binding:"required"`
	Action string `json:"action" binding:"required"`
}

type EntitlementHandler struct {
	entitlementService  *entsvc.EntitlementService
	subscriptionService *subsvc.SubscriptionService
	usageService        *usagesvc.UsageService
	catalog             *tier.Catalog
}

func NewEntitlementHandler(
	entitlementService *entsvc.EntitlementService,
	subscriptionService *subsvc.SubscriptionService,
	usageService *usagesvc.UsageService,
	catalog *tier.Catalog,
) *EntitlementHandler {
	return &EntitlementHandler{
		entitlementService:  entitlementService,
		subscriptionService: subscriptionService,
		usageService:        usageService,
		catalog:             catalog,
	}
}

// Check answers "may this user perform this action now" without
// recording any usage. Read-only, so it binds from query parameters.
func (h *EntitlementHandler) Check(c *gin.Context) {
	userID := c.Query("userId")
	action := tier.Action(c.Query("action"))
	if userID == "" || action == "" {
		response.ValidationError(c, "userId and action are required", nil)
		return
	}
	if !h.catalog.KnownAction(action) {
		response.ValidationError(c, "unknown action", xerrors.ErrUnknownAction)
		return
	}

	decision, err := h.entitlementService.Authorize(c.Request.Context(), userID, action)
	if err != nil {
		// Fail closed: the denial decision still goes out, with the
		// store trouble surfaced as a 503 so callers can distinguish
		// "over quota" from "cannot tell right now".
		response.Error(c, http.StatusServiceUnavailable, "entitlement check unavailable", nil, decision)
		return
	}

	response.Success(c, http.StatusOK, "entitlement evaluated", decision)
}

// Consume authorizes and records one unit of usage in the same call.
func (h *EntitlementHandler) Consume(c *gin.Context) {
	req, ok := h.bindCheck(c)
	if !ok {
		return
	}

	decision, err := h.entitlementService.Consume(c.Request.Context(), req.UserID, tier.Action(req.Action))
	if err != nil {
		if xerrors.Is(err, xerrors.ErrCounterOverflow) {
			response.Error(c, http.StatusConflict, "usage counter at ceiling", nil, decision)
			return
		}
		response.Error(c, http.StatusServiceUnavailable, "entitlement check unavailable", nil, decision)
		return
	}

	response.Success(c, http.StatusOK, "entitlement evaluated", decision)
}

// Usage returns the per-action usage summary for the user's current
// tier, with remaining allowances.
func (h *EntitlementHandler) Usage(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		response.ValidationError(c, "userId is required", nil)
		return
	}

	rec, err := h.subscriptionService.Get(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to load subscription", err)
		return
	}

	summary, err := h.usageService.Summary(c.Request.Context(), userID, rec.Tier)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to load usage", err)
		return
	}

	response.Success(c, http.StatusOK, "usage summary", summary)
}

func (h *EntitlementHandler) bindCheck(c *gin.Context) (*checkRequest, bool) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "userId and action are required", err)
		return nil, false
	}
	if !h.catalog.KnownAction(tier.Action(req.Action)) {
		response.ValidationError(c, "unknown action", xerrors.ErrUnknownAction)
		return nil, false
	}
	return &req, true
}
