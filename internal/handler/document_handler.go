package handler

import (
	"net/http"

	"approvalflow/internal/middleware"
	"approvalflow/internal/service"
	"approvalflow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type DocumentHandler struct {
	documentService service.DocumentService
}

func NewDocumentHandler(documentService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

func (h *DocumentHandler) RegisterRoutes(router *gin.RouterGroup) {
	authed := router.Group("/api")
	authed.Use(middleware.RequireAuth())
	{
		authed.GET("/requests/:id/documents", h.ListDocuments)
		authed.GET("/documents/locator", h.ResolveLocator)
	}
}

// ListDocuments returns the attachments of a request in arrival order
// @Summary      List request documents
// @Tags         documents
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  string  true  "Request ID"
// @Success      200  {object}  response.Response{data=[]service.DocumentResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/requests/{id}/documents [get]
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request id"))
		return
	}

	docs, err := h.documentService.List(c.Request.Context(), requestID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, docs))
}

// ResolveLocator maps a storage path to a retrievable URL
func (h *DocumentHandler) ResolveLocator(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "path query parameter is required"))
		return
	}

	url, err := h.documentService.ResolveLocator(c.Request.Context(), path)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"url": url}))
}
