package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"approvalflow/internal/model"
	"approvalflow/internal/repository"
	ws "approvalflow/internal/websocket"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Approval-path command verbs accepted from callers. Closed set; anything
// else is rejected at the boundary.
const (
	ActApprove        = "APPROVE"
	ActReject         = "REJECT"
	ActRejectWithEdit = "REJECT_WITH_EDIT"
	ActForward        = "FORWARD"
)

// --- DTOs ---

type CreateRequestInput struct {
	Title       string
	Description string
	Actor       string // authenticated employee email, passed explicitly
	Submit      bool   // false keeps the request a draft
	Files       []FileUpload
}

type EditRequestInput struct {
	Title              string
	Description        string
	DeletedDocumentIDs []uuid.UUID
	Files              []FileUpload
	Actor              string
	Resubmit           bool
}

type ApprovalActionInput struct {
	Action  string
	Comment string
	Actor   string
}

type RequestResponse struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	Status          string `json:"status"`
	CreatedBy       string `json:"created_by"`
	CurrentApprover string `json:"current_approver,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

// transitionEvent is broadcast over the websocket hub after every accepted
// transition so connected clients can refresh the affected request.
type transitionEvent struct {
	Type            string `json:"type"`
	RequestID       string `json:"request_id"`
	Action          string `json:"action"`
	Status          string `json:"status"`
	CurrentApprover string `json:"current_approver,omitempty"`
	ActedBy         string `json:"acted_by"`
}

// --- Interface ---

// RequestService is the lifecycle engine: it validates the actor's authority,
// computes the next state, persists the request row, reconciles documents and
// appends the audit entry for each transition.
type RequestService interface {
	Create(ctx context.Context, in CreateRequestInput) (*RequestResponse, error)
	Edit(ctx context.Context, id string, in EditRequestInput) (*RequestResponse, error)
	Act(ctx context.Context, id string, in ApprovalActionInput) (*RequestResponse, error)
	Get(ctx context.Context, id string, actor string) (*RequestResponse, error)
	List(ctx context.Context, filter repository.RequestFilter, page, limit int) ([]RequestResponse, int64, error)
}

type requestService struct {
	repo      repository.RequestRepository
	txManager repository.TransactionManager
	documents DocumentService
	audit     AuditService
	directory DirectoryService
	hub       *ws.Hub // optional, nil in tests
}

func NewRequestService(
	repo repository.RequestRepository,
	txManager repository.TransactionManager,
	documents DocumentService,
	audit AuditService,
	directory DirectoryService,
	hub *ws.Hub,
) RequestService {
	return &requestService{
		repo:      repo,
		txManager: txManager,
		documents: documents,
		audit:     audit,
		directory: directory,
		hub:       hub,
	}
}

// --- Implementation ---

func (s *requestService) Create(ctx context.Context, in CreateRequestInput) (*RequestResponse, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, model.NewValidationError("title is required")
	}
	if in.Actor == "" {
		return nil, model.NewValidationError("actor is required")
	}

	req := model.Request{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Status:      model.StatusDraft,
		CreatedBy:   in.Actor,
	}

	if in.Submit {
		approver, err := s.resolveApprover(ctx, in.Actor)
		if err != nil {
			return nil, err
		}
		req.Status = model.StatusPending
		req.CurrentApprover = approver
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, &req); err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		if in.Submit {
			return s.audit.Append(txCtx, &model.RequestAuditLog{
				RequestID: req.ID,
				Action:    model.ActionSubmitted,
				ActedBy:   in.Actor,
				ActedTo:   req.CurrentApprover,
				Comment:   "Submitted for approval",
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(in.Files) > 0 {
		if _, err := s.documents.Upload(ctx, req.ID, in.Files); err != nil {
			return nil, fmt.Errorf("request %s created but attachments failed: %w", req.ID, err)
		}
	}

	if in.Submit {
		s.broadcast(req.ID, model.ActionSubmitted, req.Status, req.CurrentApprover, in.Actor)
		log.Info().
			Str("request_id", req.ID.String()).
			Str("created_by", in.Actor).
			Str("approver", req.CurrentApprover).
			Msg("request submitted")
	}

	return toRequestResponse(&req), nil
}

func (s *requestService) Edit(ctx context.Context, id string, in EditRequestInput) (*RequestResponse, error) {
	requestID, err := uuid.Parse(id)
	if err != nil {
		return nil, model.NewValidationError("invalid request id")
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, model.NewValidationError("title is required")
	}

	req, err := s.find(ctx, requestID)
	if err != nil {
		return nil, err
	}

	// Edit path is creator-only, regardless of state.
	if in.Actor != req.CreatedBy {
		return nil, fmt.Errorf("edit by %s: %w", in.Actor, model.ErrNotAuthorized)
	}
	if !req.Editable() {
		return nil, model.NewValidationError("request in status " + req.Status + " is not editable")
	}

	newStatus := model.StatusDraft
	newApprover := ""
	if in.Resubmit {
		approver, err := s.resolveApprover(ctx, in.Actor)
		if err != nil {
			return nil, err
		}
		newStatus = model.StatusPending
		newApprover = approver
	}

	// The row update is conditioned on the state the edit was based on, so
	// two concurrent editors cannot silently clobber each other.
	ok, err := s.repo.UpdateTransition(ctx, requestID, req.Status, req.CurrentApprover, map[string]interface{}{
		"title":            strings.TrimSpace(in.Title),
		"description":      in.Description,
		"status":           newStatus,
		"current_approver": newApprover,
	})
	if err != nil {
		return nil, fmt.Errorf("update request: %w", err)
	}
	if !ok {
		return nil, model.ErrConflict
	}

	// Reconcile after the row update. If this fails the audit entry below is
	// never written, so the trail cannot claim a completed resubmission.
	if err := s.documents.Reconcile(ctx, requestID, in.DeletedDocumentIDs, in.Files); err != nil {
		return nil, err
	}

	if in.Resubmit {
		entry := &model.RequestAuditLog{
			RequestID: requestID,
			Action:    model.ActionSubmitted,
			ActedBy:   in.Actor,
			ActedTo:   newApprover,
			Comment:   "Resubmitted after edit",
		}
		if err := s.audit.Append(ctx, entry); err != nil {
			return nil, err
		}
		s.broadcast(requestID, model.ActionSubmitted, newStatus, newApprover, in.Actor)
		log.Info().
			Str("request_id", id).
			Str("created_by", in.Actor).
			Str("approver", newApprover).
			Msg("request resubmitted")
	}

	return s.reload(ctx, requestID)
}

func (s *requestService) Act(ctx context.Context, id string, in ApprovalActionInput) (*RequestResponse, error) {
	requestID, err := uuid.Parse(id)
	if err != nil {
		return nil, model.NewValidationError("invalid request id")
	}

	switch in.Action {
	case ActApprove, ActReject, ActRejectWithEdit, ActForward:
	default:
		return nil, model.NewValidationError("unknown action " + in.Action)
	}

	if strings.TrimSpace(in.Comment) == "" {
		return nil, fmt.Errorf("action %s: %w", in.Action, model.ErrCommentRequired)
	}

	req, err := s.find(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if req.Status != model.StatusPending {
		// Stale client state: the request already left PENDING.
		return nil, fmt.Errorf("request is already %s: %w", req.Status, model.ErrConflict)
	}
	if in.Actor != req.CurrentApprover {
		return nil, fmt.Errorf("action by %s: %w", in.Actor, model.ErrNotAuthorized)
	}

	var newStatus, newApprover, auditAction, actedTo string
	switch in.Action {
	case ActApprove:
		newStatus, auditAction = model.StatusApproved, model.ActionApproved
	case ActReject:
		newStatus, auditAction = model.StatusRejected, model.ActionRejected
	case ActRejectWithEdit:
		// Returns to the originator for correction.
		newStatus, auditAction = model.StatusRejectedWithEdit, model.ActionRejectedWithEdit
		newApprover, actedTo = req.CreatedBy, req.CreatedBy
	case ActForward:
		next, err := s.resolveApprover(ctx, in.Actor)
		if err != nil {
			return nil, err
		}
		newStatus, auditAction = model.StatusPending, model.ActionForwarded
		newApprover, actedTo = next, next
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		// Compare-and-swap keyed on the expected (status, approver) pair: the
		// authorization check and the state update commit atomically, so a
		// losing concurrent actor fails here instead of clobbering.
		ok, err := s.repo.UpdateTransition(txCtx, requestID, model.StatusPending, in.Actor, map[string]interface{}{
			"status":           newStatus,
			"current_approver": newApprover,
		})
		if err != nil {
			return fmt.Errorf("transition request: %w", err)
		}
		if !ok {
			return model.ErrConflict
		}

		return s.audit.Append(txCtx, &model.RequestAuditLog{
			RequestID: requestID,
			Action:    auditAction,
			ActedBy:   in.Actor,
			ActedTo:   actedTo,
			Comment:   in.Comment,
		})
	})
	if err != nil {
		return nil, err
	}

	s.broadcast(requestID, auditAction, newStatus, newApprover, in.Actor)
	log.Info().
		Str("request_id", id).
		Str("action", auditAction).
		Str("acted_by", in.Actor).
		Str("acted_to", actedTo).
		Msg("approval action recorded")

	return s.reload(ctx, requestID)
}

func (s *requestService) Get(ctx context.Context, id string, actor string) (*RequestResponse, error) {
	requestID, err := uuid.Parse(id)
	if err != nil {
		return nil, model.NewValidationError("invalid request id")
	}

	req, err := s.find(ctx, requestID)
	if err != nil {
		return nil, err
	}

	// Drafts are visible only to their creator.
	if req.Status == model.StatusDraft && actor != req.CreatedBy {
		return nil, fmt.Errorf("view by %s: %w", actor, model.ErrNotAuthorized)
	}

	return toRequestResponse(req), nil
}

func (s *requestService) List(ctx context.Context, filter repository.RequestFilter, page, limit int) ([]RequestResponse, int64, error) {
	if filter.Status != "" && !model.ValidStatus(filter.Status) {
		return nil, 0, model.NewValidationError("unknown status " + filter.Status)
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	requests, total, err := s.repo.List(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, err
	}

	res := make([]RequestResponse, 0, len(requests))
	for _, r := range requests {
		res = append(res, *toRequestResponse(&r))
	}
	return res, total, nil
}

// --- Helpers ---

// resolveApprover looks up the acting employee's manager. An unroutable
// actor is a hard stop — a request must never end up PENDING with nobody
// responsible for it.
func (s *requestService) resolveApprover(ctx context.Context, actor string) (string, error) {
	manager, err := s.directory.LookupManager(ctx, actor)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return "", fmt.Errorf("actor %s not in directory: %w", actor, model.ErrNoApprover)
		}
		return "", err
	}
	if manager == "" {
		return "", fmt.Errorf("actor %s: %w", actor, model.ErrNoApprover)
	}
	return manager, nil
}

func (s *requestService) find(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("request %s: %w", id, model.ErrNotFound)
		}
		return nil, err
	}
	return req, nil
}

func (s *requestService) reload(ctx context.Context, id uuid.UUID) (*RequestResponse, error) {
	req, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return toRequestResponse(req), nil
}

func (s *requestService) broadcast(requestID uuid.UUID, action, status, approver, actedBy string) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastJSON(transitionEvent{
		Type:            "request_transition",
		RequestID:       requestID.String(),
		Action:          action,
		Status:          status,
		CurrentApprover: approver,
		ActedBy:         actedBy,
	})
}

func toRequestResponse(r *model.Request) *RequestResponse {
	return &RequestResponse{
		ID:              r.ID.String(),
		Title:           r.Title,
		Description:     r.Description,
		Status:          r.Status,
		CreatedBy:       r.CreatedBy,
		CurrentApprover: r.CurrentApprover,
		CreatedAt:       r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       r.UpdatedAt.Format(time.RFC3339),
	}
}
