package handler

import (
	"errors"
	"net/http"

	"approvalflow/internal/model"
	"approvalflow/pkg/response"

	"github.com/gin-gonic/gin"
)

// respondError maps the core's error taxonomy to HTTP statuses. Anything
// outside the taxonomy is a storage/internal failure the caller may retry.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, model.ErrCommentRequired), errors.Is(err, model.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrNoApprover):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	}
	c.JSON(status, response.Error(status, err.Error()))
}
