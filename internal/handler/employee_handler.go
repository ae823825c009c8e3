package handler

import (
	"net/http"

	"approvalflow/internal/middleware"
	"approvalflow/internal/service"
	"approvalflow/pkg/pagination"
	"approvalflow/pkg/response"

	"github.com/gin-gonic/gin"
)

type EmployeeHandler struct {
	directory service.DirectoryService
}

func NewEmployeeHandler(directory service.DirectoryService) *EmployeeHandler {
	return &EmployeeHandler{directory: directory}
}

func (h *EmployeeHandler) RegisterRoutes(router *gin.RouterGroup) {
	employees := router.Group("/api/employees")
	employees.Use(middleware.RequireAuth())
	{
		employees.GET("", h.ListEmployees)
		employees.GET("/:email", h.GetEmployee)
	}
}

// ListEmployees returns the directory, paginated
func (h *EmployeeHandler) ListEmployees(c *gin.Context) {
	params := pagination.Parse(c)

	emps, total, err := h.directory.ListEmployees(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": http.StatusOK,
		"data":   emps,
		"total":  total,
		"page":   params.Page,
		"limit":  params.Limit,
	})
}

// GetEmployee returns one directory entry by email
func (h *EmployeeHandler) GetEmployee(c *gin.Context) {
	emp, err := h.directory.GetEmployee(c.Request.Context(), c.Param("email"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, emp))
}
