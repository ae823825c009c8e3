package handler

import (
	"io"
	"net/http"
	"strings"

	"approvalflow/internal/middleware"
	"approvalflow/internal/repository"
	"approvalflow/internal/service"
	"approvalflow/pkg/pagination"
	"approvalflow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RequestHandler struct {
	requestService service.RequestService
}

func NewRequestHandler(requestService service.RequestService) *RequestHandler {
	return &RequestHandler{requestService: requestService}
}

func (h *RequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	requests := router.Group("/api/requests")
	requests.Use(middleware.RequireAuth())
	{
		requests.POST("", h.CreateRequest)
		requests.GET("", h.ListRequests)
		requests.GET("/:id", h.GetRequest)
		requests.PUT("/:id", h.EditRequest)
		requests.POST("/:id/actions", h.ActOnRequest)
	}
}

// CreateRequest creates a draft or submits a new request with optional attachments
// @Summary      Create request
// @Description  Creates a request as draft or submits it into the approval chain. Multipart form: title, description, submit, files[]
// @Tags         requests
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Success      201  {object}  response.Response{data=service.RequestResponse}
// @Failure      400  {object}  response.Response
// @Failure      422  {object}  response.Response
// @Router       /api/requests [post]
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	uploads, closeAll, err := collectUploads(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid multipart payload: "+err.Error()))
		return
	}
	defer closeAll()

	in := service.CreateRequestInput{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Actor:       middleware.Actor(c),
		Submit:      c.PostForm("submit") == "true",
		Files:       uploads,
	}

	result, err := h.requestService.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// EditRequest saves or resubmits an editable request, reconciling attachments
// @Summary      Edit request
// @Description  Updates title/description, deletes listed documents, uploads new files; optionally resubmits. Multipart form: title, description, resubmit, deleted_document_ids, files[]
// @Tags         requests
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  string  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.RequestResponse}
// @Failure      400  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/requests/{id} [put]
func (h *RequestHandler) EditRequest(c *gin.Context) {
	uploads, closeAll, err := collectUploads(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid multipart payload: "+err.Error()))
		return
	}
	defer closeAll()

	deletedIDs, err := parseIDList(c.PostFormArray("deleted_document_ids"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid document id: "+err.Error()))
		return
	}

	in := service.EditRequestInput{
		Title:              c.PostForm("title"),
		Description:        c.PostForm("description"),
		DeletedDocumentIDs: deletedIDs,
		Files:              uploads,
		Actor:              middleware.Actor(c),
		Resubmit:           c.PostForm("resubmit") == "true",
	}

	result, err := h.requestService.Edit(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

type approvalActionRequest struct {
	Action  string `json:"action" binding:"required,oneof=APPROVE REJECT REJECT_WITH_EDIT FORWARD"`
	Comment string `json:"comment"`
}

// ActOnRequest performs an approval-path action on a pending request
func (h *RequestHandler) ActOnRequest(c *gin.Context) {
	var req approvalActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.requestService.Act(c.Request.Context(), c.Param("id"), service.ApprovalActionInput{
		Action:  req.Action,
		Comment: req.Comment,
		Actor:   middleware.Actor(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// GetRequest returns one request
func (h *RequestHandler) GetRequest(c *gin.Context) {
	result, err := h.requestService.Get(c.Request.Context(), c.Param("id"), middleware.Actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// ListRequests returns requests scoped to the caller
// @Summary      List requests
// @Description  scope=mine lists the caller's requests, scope=inbox lists pending requests waiting on the caller, scope=all lists everything except other creators' drafts
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        scope   query  string  false  "mine | inbox | all (default mine)"
// @Param        status  query  string  false  "Filter by status"
// @Param        page    query  int     false  "Page number (default 1)"
// @Param        limit   query  int     false  "Items per page (default 20)"
// @Success      200  {object}  response.Response
// @Router       /api/requests [get]
func (h *RequestHandler) ListRequests(c *gin.Context) {
	params := pagination.Parse(c)
	actor := middleware.Actor(c)

	filter := repository.RequestFilter{Status: c.Query("status")}
	switch c.DefaultQuery("scope", "mine") {
	case "inbox":
		filter.CurrentApprover = actor
		if filter.Status == "" {
			filter.Status = "PENDING"
		}
	case "all":
		filter.VisibleTo = actor
	default:
		filter.CreatedBy = actor
	}

	requests, total, err := h.requestService.List(c.Request.Context(), filter, params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": http.StatusOK,
		"data":   requests,
		"total":  total,
		"page":   params.Page,
		"limit":  params.Limit,
	})
}

// collectUploads opens every file in the multipart "files" field. The
// returned closer releases all of them; safe to call on the empty case.
func collectUploads(c *gin.Context) ([]service.FileUpload, func(), error) {
	closeAll := func() {}
	if c.ContentType() != "multipart/form-data" {
		return nil, closeAll, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, closeAll, err
	}

	var uploads []service.FileUpload
	var closers []io.Closer
	closeAll = func() {
		for _, cl := range closers {
			_ = cl.Close()
		}
	}

	for _, fh := range form.File["files"] {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		closers = append(closers, f)
		uploads = append(uploads, service.FileUpload{Name: fh.Filename, Content: f})
	}

	return uploads, closeAll, nil
}

// parseIDList accepts both repeated fields and comma-separated values.
func parseIDList(values []string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
