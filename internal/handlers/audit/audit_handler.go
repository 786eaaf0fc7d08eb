// internal/handlers/audit/audit_handler.go
package audit

import (
	"net/http"

	"rankpilot-service/internal/pkg/response"
	service "rankpilot-service/internal/service/audit"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService *service.AuditService
}

func NewAuditHandler(auditService *service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// Run executes a full consistency audit and returns the report. The
// audit is read-only; nothing is repaired.
func (h *AuditHandler) Run(c *gin.Context) {
	report, err := h.auditService.AuditAll(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "audit failed", err)
		return
	}

	response.Success(c, http.StatusOK, "audit completed", report)
}
