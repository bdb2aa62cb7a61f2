package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"trackline/internal/audit"
	"trackline/internal/config"
	"trackline/internal/domain"
	"trackline/internal/repo"
)

// Engine drives issue status changes through per-organization workflows.
// It resolves the governing workflow, checks the requested transition
// against the issue's current status, runs the transition's validators,
// and commits the status change with its history and audit records in a
// single transaction.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Audit  audit.Writer
	Config *config.Config
	Now    func() time.Time

	validators map[string]Validator
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:         db,
		Repo:       repo.Repo{DB: db},
		Audit:      audit.Writer{DB: db},
		Config:     cfg,
		Now:        time.Now,
		validators: builtinValidators(),
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// RegisterValidator adds a validator kind beyond the built-ins. Unknown
// kinds referenced by stored transitions still fail loudly at run time.
func (e Engine) RegisterValidator(kind string, v Validator) error {
	if kind == "" {
		return errors.New("validator kind required")
	}
	if v == nil {
		return errors.New("validator required")
	}
	e.validators[kind] = v
	return nil
}

// ResolveWorkflow determines the single workflow governing a project:
// the active workflow explicitly bound to the project, else the
// organization's active default. A missing default is a provisioning bug,
// surfaced as a not-found error.
func (e Engine) ResolveWorkflow(ctx context.Context, orgID, projectID string) (domain.Workflow, error) {
	wf, err := e.Repo.GetProjectWorkflow(ctx, orgID, projectID)
	if err == nil {
		return wf, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.Workflow{}, err
	}
	wf, err = e.Repo.GetDefaultWorkflow(ctx, orgID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Workflow{}, fmt.Errorf("no default workflow for organization %s: %w", orgID, repo.ErrNotFound)
	}
	return wf, err
}

// AvailableTransition is the caller-facing slice of a transition: identity
// and destination only. Validator configuration stays internal.
type AvailableTransition struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	ToStatus domain.Status `json:"to_status"`
}

// AvailableTransitions lists the transitions the issue may currently take:
// exactly those in its resolved workflow whose fromStatus equals the
// issue's status. An issue with no outgoing edges yields an empty list.
func (e Engine) AvailableTransitions(ctx context.Context, orgID, issueID string) ([]AvailableTransition, error) {
	issue, err := e.Repo.GetIssue(ctx, orgID, issueID)
	if err != nil {
		return nil, err
	}
	wf, err := e.ResolveWorkflow(ctx, orgID, issue.ProjectID)
	if err != nil {
		return nil, err
	}
	statuses := map[string]domain.Status{}
	for _, ws := range wf.Statuses {
		statuses[ws.StatusID] = ws.Status
	}
	res := []AvailableTransition{}
	for _, t := range wf.Transitions {
		if t.FromStatusID != issue.StatusID {
			continue
		}
		to, ok := statuses[t.ToStatusID]
		if !ok {
			to, err = e.Repo.GetStatus(ctx, orgID, t.ToStatusID)
			if err != nil {
				return nil, fmt.Errorf("transition %s destination: %w", t.ID, err)
			}
		}
		res = append(res, AvailableTransition{ID: t.ID, Name: t.Name, ToStatus: to})
	}
	return res, nil
}

// TransitionIssue executes a workflow transition on behalf of userID.
// On success the returned issue carries the new status; the status change,
// one history entry, and one audit entry commit atomically. Any validator
// failure aborts before the first write.
func (e Engine) TransitionIssue(ctx context.Context, orgID, userID, issueID, transitionID string) (domain.Issue, error) {
	issue, err := e.Repo.GetIssue(ctx, orgID, issueID)
	if err != nil {
		return domain.Issue{}, err
	}
	wf, err := e.ResolveWorkflow(ctx, orgID, issue.ProjectID)
	if err != nil {
		return domain.Issue{}, err
	}
	var tr *domain.Transition
	for idx := range wf.Transitions {
		if wf.Transitions[idx].ID == transitionID {
			tr = &wf.Transitions[idx]
			break
		}
	}
	if tr == nil {
		return domain.Issue{}, fmt.Errorf("transition %s not in workflow %s: %w", transitionID, wf.ID, repo.ErrNotFound)
	}
	if tr.FromStatusID != issue.StatusID {
		return domain.Issue{}, blocked(
			fmt.Sprintf("transition %s requires status %s but issue is in %s", tr.Name, tr.FromStatusID, issue.StatusID),
			map[string]any{"transitionId": tr.ID, "expectedStatusId": tr.FromStatusID, "actualStatusId": issue.StatusID})
	}

	refs := parseValidators(tr.ValidatorsJSON)
	if err := e.runValidators(ctx, orgID, issue, refs); err != nil {
		return domain.Issue{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Issue{}, err
	}
	defer tx.Rollback()

	now := e.now().UTC().Format(time.RFC3339)
	err = e.Repo.UpdateIssueStatusTx(ctx, tx, orgID, issue.ID, tr.FromStatusID, tr.ToStatusID, now)
	if errors.Is(err, repo.ErrNotFound) {
		// Another writer moved the issue between our read and this update.
		return domain.Issue{}, blocked(
			fmt.Sprintf("issue %s is no longer in status %s", issue.ID, tr.FromStatusID),
			map[string]any{"transitionId": tr.ID, "expectedStatusId": tr.FromStatusID})
	}
	if err != nil {
		return domain.Issue{}, err
	}
	if err := e.Audit.AppendHistory(ctx, tx, orgID, issue.ID, userID, "statusId", tr.FromStatusID, tr.ToStatusID); err != nil {
		return domain.Issue{}, err
	}
	if err := e.Audit.AppendAudit(ctx, tx, orgID, "Issue", issue.ID, userID, "TRANSITIONED", audit.Diff{
		"transitionId":   tr.ID,
		"transitionName": tr.Name,
		"fromStatusId":   tr.FromStatusID,
		"toStatusId":     tr.ToStatusID,
	}); err != nil {
		return domain.Issue{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Issue{}, err
	}
	return e.Repo.GetIssue(ctx, orgID, issue.ID)
}

// validatorRef is one entry of a transition's stored validators document.
type validatorRef struct {
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
}

// parseValidators decodes the stored validator list. A document that fails
// to decode degrades to no validators instead of blocking every transition
// on the edge; entries with a blank type survive decoding and fail loudly
// in the pipeline.
func parseValidators(raw *string) []validatorRef {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil
	}
	var refs []validatorRef
	if err := json.Unmarshal([]byte(*raw), &refs); err != nil {
		return nil
	}
	return refs
}

func (e Engine) runValidators(ctx context.Context, orgID string, issue domain.Issue, refs []validatorRef) error {
	for _, ref := range refs {
		v, ok := e.validators[ref.Type]
		if !ok {
			return blocked(fmt.Sprintf("unknown validator type %q", ref.Type),
				map[string]any{"validatorType": ref.Type})
		}
		vc := Context{
			Repo:   e.Repo,
			OrgID:  orgID,
			Issue:  issue,
			Config: ref.Config,
		}
		if err := v.Check(ctx, vc); err != nil {
			return err
		}
	}
	return nil
}
