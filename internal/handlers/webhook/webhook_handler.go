// internal/handlers/webhook/webhook_handler.go
package webhook

import (
	"context"
	"net/http"
	"time"

	xerrors "rankpilot-service/internal/pkg/errors"
	"rankpilot-service/internal/pkg/response"
	service "rankpilot-service/internal/service/webhook"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SignatureHeader carries the provider's HMAC over the raw body.
const SignatureHeader = "X-RankPilot-Signature"

// ingestTimeout keeps ingestion inside the provider's delivery timeout:
// a hung store call must fail fast so the provider retries.
const ingestTimeout = 8 * time.Second

type WebhookHandler struct {
	webhookService *service.WebhookService
	logger         *zap.Logger
}

func NewWebhookHandler(webhookService *service.WebhookService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
		logger:         logger,
	}
}

// HandleBillingEvent receives one provider delivery. The raw body is
// passed to the service untouched; signature verification binds to the
// exact bytes on the wire.
func (h *WebhookHandler) HandleBillingEvent(c *gin.Context) {
	rawBody, err := c.GetRawData()
	if err != nil {
		response.Error(c, http.StatusBadRequest, "failed to read request body", err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ingestTimeout)
	defer cancel()

	ack, err := h.webhookService.Ingest(ctx, rawBody, c.GetHeader(SignatureHeader))
	if err != nil {
		switch {
		case xerrors.Is(err, xerrors.ErrSignatureInvalid):
			response.Error(c, http.StatusBadRequest, "signature verification failed", nil)
		case xerrors.Is(err, xerrors.ErrBadRequest),
			xerrors.Is(err, xerrors.ErrUnknownTier),
			xerrors.Is(err, xerrors.ErrInvalidTransition):
			// Caller mistakes are permanent; a retry can never succeed.
			response.Error(c, http.StatusBadRequest, "unprocessable event", err)
		default:
			// Transient: the provider retries on its delivery schedule.
			h.logger.Error("webhook ingestion failed", zap.Error(err))
			response.Error(c, http.StatusInternalServerError, "ingestion failed", nil)
		}
		return
	}

	response.Success(c, http.StatusOK, "event acknowledged", ack)
}
