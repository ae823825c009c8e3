package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"approvalflow/internal/model"
	"approvalflow/internal/repository"

	"github.com/google/uuid"
)

// AuditEntryResponse is the API shape of one ledger entry.
type AuditEntryResponse struct {
	ID         int64  `json:"id"`
	RequestID  string `json:"request_id"`
	Action     string `json:"action"`
	ActedBy    string `json:"acted_by"`
	ActedTo    string `json:"acted_to,omitempty"`
	Comment    string `json:"comment"`
	OccurredAt string `json:"occurred_at"`
}

// AuditService is the append-only ledger of lifecycle transitions.
type AuditService interface {
	// Append inserts one entry. Runs inside the caller's transaction when
	// invoked through the TransactionManager context.
	Append(ctx context.Context, entry *model.RequestAuditLog) error
	// History returns the trail ascending by occurrence. Read-only.
	History(ctx context.Context, requestID uuid.UUID) ([]AuditEntryResponse, error)
}

type auditService struct {
	repo repository.AuditRepository
}

func NewAuditService(repo repository.AuditRepository) AuditService {
	return &auditService{repo: repo}
}

func (s *auditService) Append(ctx context.Context, entry *model.RequestAuditLog) error {
	if !model.ValidAction(entry.Action) {
		return model.NewValidationError("unknown audit action " + entry.Action)
	}
	// The engine validates this before mutating anything; the ledger checks
	// again so a buggy caller cannot record an uncommented approval action.
	if model.CommentRequired(entry.Action) && strings.TrimSpace(entry.Comment) == "" {
		return fmt.Errorf("action %s: %w", entry.Action, model.ErrCommentRequired)
	}
	return s.repo.Append(ctx, entry)
}

func (s *auditService) History(ctx context.Context, requestID uuid.UUID) ([]AuditEntryResponse, error) {
	entries, err := s.repo.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	res := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		res = append(res, AuditEntryResponse{
			ID:         e.ID,
			RequestID:  e.RequestID.String(),
			Action:     e.Action,
			ActedBy:    e.ActedBy,
			ActedTo:    e.ActedTo,
			Comment:    e.Comment,
			OccurredAt: e.OccurredAt.Format(time.RFC3339),
		})
	}
	return res, nil
}

// ReplayHistory folds an ordered audit trail into the status and responsible
// party it implies. The ledger is the authoritative record; this is the
// reconstruction rule for verification and display.
func ReplayHistory(entries []model.RequestAuditLog) (status, currentApprover string) {
	status = model.StatusDraft
	for _, e := range entries {
		switch e.Action {
		case model.ActionSubmitted:
			status = model.StatusPending
			currentApprover = e.ActedTo
		case model.ActionApproved:
			status = model.StatusApproved
			currentApprover = ""
		case model.ActionRejected:
			status = model.StatusRejected
			currentApprover = ""
		case model.ActionRejectedWithEdit:
			status = model.StatusRejectedWithEdit
			currentApprover = e.ActedTo
		case model.ActionForwarded:
			status = model.StatusPending
			currentApprover = e.ActedTo
		}
	}
	return status, currentApprover
}
