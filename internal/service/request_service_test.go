package service

import (
	"context"
	"strings"
	"testing"

	"approvalflow/internal/model"
	"approvalflow/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertApproverInvariant checks the routing rule after every transition: an
// approver is set exactly while someone must act (PENDING or returned for
// correction), and never on drafts or terminal requests.
func assertApproverInvariant(t *testing.T, res *RequestResponse) {
	t.Helper()
	switch res.Status {
	case model.StatusPending, model.StatusRejectedWithEdit:
		assert.NotEmpty(t, res.CurrentApprover, "status %s must carry a responsible party", res.Status)
	default:
		assert.Empty(t, res.CurrentApprover, "status %s must not carry an approver", res.Status)
	}
}

func (f *fixture) trail(t *testing.T, id string) []model.RequestAuditLog {
	t.Helper()
	requestID, err := uuid.Parse(id)
	require.NoError(t, err)
	entries, err := f.auditRepo.ListByRequest(context.Background(), requestID)
	require.NoError(t, err)
	return entries
}

func TestSubmitRoutesToManager(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.engine.Create(ctx, CreateRequestInput{
		Title:       "Laptop purchase",
		Description: "Replacement for broken unit",
		Actor:       staffEmail,
		Submit:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, res.Status)
	assert.Equal(t, managerEmail, res.CurrentApprover)
	assertApproverInvariant(t, res)

	trail := f.trail(t, res.ID)
	require.Len(t, trail, 1)
	assert.Equal(t, model.ActionSubmitted, trail[0].Action)
	assert.Equal(t, staffEmail, trail[0].ActedBy)
	assert.Equal(t, managerEmail, trail[0].ActedTo)
}

func TestCreateDraftSkipsRoutingAndAudit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.engine.Create(ctx, CreateRequestInput{
		Title: "Half-written idea",
		Actor: staffEmail,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusDraft, res.Status)
	assert.Empty(t, res.CurrentApprover)
	assert.Empty(t, f.trail(t, res.ID))

	// Drafts are private to their creator.
	_, err = f.engine.Get(ctx, res.ID, managerEmail)
	assert.ErrorIs(t, err, model.ErrNotAuthorized)

	got, err := f.engine.Get(ctx, res.ID, staffEmail)
	require.NoError(t, err)
	assert.Equal(t, res.ID, got.ID)
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.engine.Create(ctx, CreateRequestInput{Title: "   ", Actor: staffEmail})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = f.engine.Create(ctx, CreateRequestInput{Title: "ok"})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestSubmitWithoutManagerIsHardStop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// The director reports to nobody, so submission cannot be routed.
	_, err := f.engine.Create(ctx, CreateRequestInput{
		Title:  "Director request",
		Actor:  directorEmail,
		Submit: true,
	})
	assert.ErrorIs(t, err, model.ErrNoApprover)

	// Nothing may be persisted on a routing failure.
	var count int64
	require.NoError(t, f.db.Model(&model.Request{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSubmitByUnknownActor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.engine.Create(ctx, CreateRequestInput{
		Title:  "Ghost request",
		Actor:  outsiderEmail,
		Submit: true,
	})
	assert.ErrorIs(t, err, model.ErrNoApprover)
}

func TestApprove(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.engine.Create(ctx, CreateRequestInput{Title: "Conference trip", Actor: staffEmail, Submit: true})
	require.NoError(t, err)

	res, err = f.engine.Act(ctx, res.ID, ApprovalActionInput{
		Action:  ActApprove,
		Comment: "Budget available",
		Actor:   managerEmail,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, res.Status)
	assertApproverInvariant(t, res)

	trail := f.trail(t, res.ID)
	require.Len(t, trail, 2)
	assert.Equal(t, model.ActionApproved, trail[1].Action)
	assert.Equal(t, "Budget available", trail[1].Comment)

	// Terminal: nothing further is accepted.
	_, err = f.engine.Act(ctx, res.ID, ApprovalActionInput{Action: ActReject, Comment: "too late", Actor: managerEmail})
	assert.ErrorIs(t, err, model.ErrConflict)
}

func TestReject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.engine.Create(ctx, CreateRequestInput{Title: "Team offsite", Actor: staffEmail, Submit: true})
	require.NoError(t, err)

	res, err = f.engine.Act(ctx, res.ID, ApprovalActionInput{
		Action:  ActReject,
		Comment: "Out of budget this quarter",
		Actor:   managerEmail,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, res.Status)
	assert.Empty(t, res.CurrentApprover)

	// Rejected is terminal, not editable.
	_, err = f.engine.Edit(ctx, res.ID, EditRequestInput{Title: "Team offsite v2", Actor: staffEmail})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestRejectWithEditReturnsToCreator(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.engine.Create(ctx, CreateRequestInput{Title: "Training course", Actor: staffEmail, Submit: true})
	require.NoError(t, err)

	res, err = f.engine.Act(ctx, res.ID, ApprovalActionInput{
		Action:  ActRejectWithEdit,
		Comment: "Add the cost breakdown",
		Actor:   managerEmail,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejectedWithEdit, res.Status)
	assert.Equal(t, staffEmail, res.CurrentApprover)
	assertApproverInvariant(t, res)

	// Creator fixes it up and resubmits; routing runs again.
	res, err = f.engine.Edit(ctx, res.ID, EditRequestInput{
		Title:       "Training course",
		Description: "Now with cost breakdown",
		Actor:       staffEmail,
		Resubmit:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, res.Status)
	assert.Equal(t, managerEmail, res.CurrentApprover)

	trail := f.trail(t, res.ID)
	require.Len(t, trail, 3)
	assert.Equal(t, model.ActionSubmitted, trail[2].Action)
	assert.Equal(t, "Resubmitted after edit", trail[2].Comment)
}

func TestForward(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.engine.Create(ctx, CreateRequestInput{Title: "Big purchase", Actor: staffEmail, Submit: true})
	require.NoError(t, err)

	// Manager escalates to their own manager.
	res, err = f.engine.Act(ctx, res.ID, ApprovalActionInput{
		Action:  ActForward,
		Comment: "Above my sign-off limit",
		Actor:   managerEmail,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, res.Status)
	assert.Equal(t, directorEmail, res.CurrentApprover)
	assertApproverInvariant(t, res)

	// The previous approver lost authority with the forward.
	_, err = f.engine.Act(ctx, res.ID, ApprovalActionInput{Action: ActApprove, Comment: "changed my mind", Actor: managerEmail})
	assert.ErrorIs(t, err, model.ErrNotAuthorized)

	// The director can decide it.
	res, err = f.engine.Act(ctx, res.ID, ApprovalActionInput{
		Action:  ActApprove,
		Comment: "Approved at director level",
		Actor:   directorEmail,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, res.Status)

	trail := f.trail(t, res.ID)
	require.Len(t, trail, 3)
	assert.Equal(t, []string{model.ActionSubmitted, model.ActionForwarded, model.ActionApproved},
		[]string{trail[0].Action, trail[1].Action, trail[2].Action})
	assert.Equal(t, directorEmail, trail[1].ActedTo)
}

func TestForwardAtTopOfChain(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.engine.Create(ctx, CreateRequestInput{Title: "Escalation", Actor: staffEmail, Submit: true})
	require.NoError(t, err)

	res, err = f.engine.Act(ctx, res.ID, ApprovalActionInput{Action: ActForward, Comment: "escalating", Actor: managerEmail})
	require.NoError(t, err)

	// The director has no manager, so a further forward must fail and leave
	// the request untouched.
	_, err = f.engine.Act(ctx, res.ID, ApprovalActionInput{Action: ActForward, Comment: "passing the buck", Actor: directorEmail})
	assert.ErrorIs(t, err, model.ErrNoApprover)

	got, err := f.engine.Get(ctx, res.ID, staffEmail)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Equal(t, directorEmail, got.CurrentApprover)
	assert.Len(t, f.trail(t, res.ID), 2)
}

func TestActRequiresComment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.engine.Create(ctx, CreateRequestInput{Title: "Needs reasons", Actor: staffEmail, Submit: true})
	require.NoError(t, err)

	for _, action := range []string{ActApprove, ActReject, ActRejectWithEdit, ActForward} {
		_, err := f.engine.Act(ctx, res.ID, ApprovalActionInput{Action: action, Comment: "   ", Actor: managerEmail})
		assert.ErrorIs(t, err, model.ErrCommentRequired, "action %s", action)
	}

	// Nothing went through.
	got, err := f.engine.Get(ctx, res.ID, staffEmail)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Len(t, f.trail(t, res.ID), 1)
}

func TestActByNonApprover(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.engine.Create(ctx, CreateRequestInput{Title: "Not yours", Actor: staffEmail, Submit: true})
	require.NoError(t, err)

	_, err = f.engine.Act(ctx, res.ID, ApprovalActionInput{Action: ActApprove, Comment: "let me in", Actor: directorEmail})
	assert.ErrorIs(t, err, model.ErrNotAuthorized)

	// The creator cannot act on their own request either.
	_, err = f.engine.Act(ctx, res.ID, ApprovalActionInput{Action: ActApprove, Comment: "self-serve", Actor: staffEmail})
	assert.ErrorIs(t, err, model.ErrNotAuthorized)
}

func TestActUnknownAction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.engine.Create(ctx, CreateRequestInput{Title: "Strict verbs", Actor: staffEmail, Submit: true})
	require.NoError(t, err)

	_, err = f.engine.Act(ctx, res.ID, ApprovalActionInput{Action: "ESCALATE", Comment: "?", Actor: managerEmail})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestEditByNonCreator(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.engine.Create(ctx, CreateRequestInput{Title: "Mine", Actor: staffEmail})
	require.NoError(t, err)

	_, err = f.engine.Edit(ctx, res.ID, EditRequestInput{Title: "Hijacked", Actor: managerEmail})
	assert.ErrorIs(t, err, model.ErrNotAuthorized)
}

func TestEditPendingNotEditable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.engine.Create(ctx, CreateRequestInput{Title: "In flight", Actor: staffEmail, Submit: true})
	require.NoError(t, err)

	_, err = f.engine.Edit(ctx, res.ID, EditRequestInput{Title: "In flight v2", Actor: staffEmail})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestEditDraftStaysDraft(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.engine.Create(ctx, CreateRequestInput{Title: "Draft", Description: "v1", Actor: staffEmail})
	require.NoError(t, err)

	res, err = f.engine.Edit(ctx, res.ID, EditRequestInput{Title: "Draft", Description: "v2", Actor: staffEmail})
	require.NoError(t, err)
	assert.Equal(t, model.StatusDraft, res.Status)
	assert.Equal(t, "v2", res.Description)
	assert.Empty(t, f.trail(t, res.ID))
}

func TestActOnUnknownRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.engine.Act(ctx, uuid.NewString(), ApprovalActionInput{Action: ActApprove, Comment: "x", Actor: managerEmail})
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = f.engine.Act(ctx, "not-a-uuid", ApprovalActionInput{Action: ActApprove, Comment: "x", Actor: managerEmail})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestListHidesForeignDrafts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	draft, err := f.engine.Create(ctx, CreateRequestInput{Title: "Private draft", Actor: staffEmail})
	require.NoError(t, err)
	submitted, err := f.engine.Create(ctx, CreateRequestInput{Title: "Submitted", Actor: staffEmail, Submit: true})
	require.NoError(t, err)

	// A broad listing by someone else must not surface the draft.
	visible, total, err := f.engine.List(ctx, repository.RequestFilter{VisibleTo: managerEmail}, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, visible, 1)
	assert.Equal(t, submitted.ID, visible[0].ID)

	// The creator still sees their own draft in the same listing.
	mine, total, err := f.engine.List(ctx, repository.RequestFilter{VisibleTo: staffEmail}, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	ids := []string{mine[0].ID, mine[1].ID}
	assert.Contains(t, ids, draft.ID)
	assert.Contains(t, ids, submitted.ID)
}

// racingRequestRepo lets another transition win the compare-and-swap right
// before the engine's own write lands, inside the same transaction context.
type racingRequestRepo struct {
	repository.RequestRepository
	raced bool
}

func (r *racingRequestRepo) UpdateTransition(ctx context.Context, id uuid.UUID, expectStatus, expectApprover string, fields map[string]interface{}) (bool, error) {
	if !r.raced {
		r.raced = true
		ok, err := r.RequestRepository.UpdateTransition(ctx, id, expectStatus, expectApprover, map[string]interface{}{
			"status":           model.StatusApproved,
			"current_approver": "",
		})
		if err != nil || !ok {
			return ok, err
		}
	}
	return r.RequestRepository.UpdateTransition(ctx, id, expectStatus, expectApprover, fields)
}

func TestActLosesRaceToConcurrentTransition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.engine.Create(ctx, CreateRequestInput{Title: "Contested", Actor: staffEmail, Submit: true})
	require.NoError(t, err)

	racing := &racingRequestRepo{RequestRepository: f.requests}
	engine := NewRequestService(racing, repository.NewTransactionManager(f.db), f.documents, f.audit, f.directory, nil)

	_, err = engine.Act(ctx, res.ID, ApprovalActionInput{Action: ActReject, Comment: "denied", Actor: managerEmail})
	assert.ErrorIs(t, err, model.ErrConflict)

	// The losing transaction rolled back whole: no state change, no audit row.
	got, err := f.engine.Get(ctx, res.ID, staffEmail)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Equal(t, managerEmail, got.CurrentApprover)
	assert.Len(t, f.trail(t, res.ID), 1)
}

func TestListRejectsUnknownStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, _, err := f.engine.List(ctx, repository.RequestFilter{Status: "OPEN"}, 1, 20)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestCreateWithAttachments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.engine.Create(ctx, CreateRequestInput{
		Title:  "With files",
		Actor:  staffEmail,
		Submit: true,
		Files: []FileUpload{
			{Name: "quote one.pdf", Content: strings.NewReader("pdf-bytes")},
			{Name: "quote two.pdf", Content: strings.NewReader("more-bytes")},
		},
	})
	require.NoError(t, err)

	docs, err := f.documents.List(ctx, uuid.MustParse(res.ID))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "quote one.pdf", docs[0].FileName)
	assert.Contains(t, docs[0].FilePath, res.ID+"/")
	assert.Contains(t, docs[0].FilePath, "quote_one.pdf")
}

func TestReplayMatchesStoredRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.engine.Create(ctx, CreateRequestInput{Title: "Replayable", Actor: staffEmail, Submit: true})
	require.NoError(t, err)

	steps := []ApprovalActionInput{
		{Action: ActRejectWithEdit, Comment: "needs detail", Actor: managerEmail},
	}
	for _, s := range steps {
		_, err = f.engine.Act(ctx, res.ID, s)
		require.NoError(t, err)
	}
	_, err = f.engine.Edit(ctx, res.ID, EditRequestInput{Title: "Replayable", Actor: staffEmail, Resubmit: true})
	require.NoError(t, err)
	_, err = f.engine.Act(ctx, res.ID, ApprovalActionInput{Action: ActForward, Comment: "escalate", Actor: managerEmail})
	require.NoError(t, err)
	_, err = f.engine.Act(ctx, res.ID, ApprovalActionInput{Action: ActApprove, Comment: "fine", Actor: directorEmail})
	require.NoError(t, err)

	// Folding the ledger must land on exactly the stored state.
	status, approver := ReplayHistory(f.trail(t, res.ID))
	got, err := f.engine.Get(ctx, res.ID, staffEmail)
	require.NoError(t, err)
	assert.Equal(t, got.Status, status)
	assert.Equal(t, got.CurrentApprover, approver)
}
