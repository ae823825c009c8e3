package handler

import (
	"net/http"

	"approvalflow/internal/middleware"
	"approvalflow/internal/service"
	"approvalflow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/requests")
	group.Use(middleware.RequireAuth())
	{
		group.GET("/:id/history", h.GetHistory)
	}
}

// GetHistory returns the full audit trail of a request, oldest first
// @Summary      Get request history
// @Description  Ordered list of every accepted lifecycle transition: who acted, who is responsible next, and the comment
// @Tags         audit
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  string  true  "Request ID"
// @Success      200  {object}  response.Response{data=[]service.AuditEntryResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/requests/{id}/history [get]
func (h *AuditHandler) GetHistory(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request id"))
		return
	}

	entries, err := h.auditService.History(c.Request.Context(), requestID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, entries))
}
