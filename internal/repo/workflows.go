package repo

import (
	"context"
	"database/sql"

	"trackline/internal/domain"
)

func (r Repo) InsertWorkflowTx(ctx context.Context, tx *sql.Tx, w domain.Workflow) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO workflows(id,org_id,name,is_default,is_active,created_at) VALUES (?,?,?,?,?,?)`,
		w.ID, w.OrgID, w.Name, boolInt(w.IsDefault), boolInt(w.IsActive), w.CreatedAt)
	if err != nil {
		return err
	}
	for _, ws := range w.Statuses {
		if _, err := tx.ExecContext(ctx, `INSERT INTO workflow_statuses(workflow_id,status_id,position) VALUES (?,?,?)`,
			w.ID, ws.StatusID, ws.Position); err != nil {
			return err
		}
	}
	for _, t := range w.Transitions {
		if err := r.InsertTransitionTx(ctx, tx, w.ID, t); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) InsertTransitionTx(ctx context.Context, tx *sql.Tx, workflowID string, t domain.Transition) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO transitions(id,workflow_id,name,from_status_id,to_status_id,validators_json,conditions_json,post_functions_json)
VALUES (?,?,?,?,?,?,?,?)`,
		t.ID, workflowID, t.Name, t.FromStatusID, t.ToStatusID,
		nullableStringPtr(t.ValidatorsJSON), nullableStringPtr(t.ConditionsJSON), nullableStringPtr(t.PostFunctionsJSON))
	return err
}

// GetWorkflow loads a workflow with its ordered statuses and transitions.
func (r Repo) GetWorkflow(ctx context.Context, orgID, id string) (domain.Workflow, error) {
	var w domain.Workflow
	var isDefault, isActive int
	err := r.DB.QueryRowContext(ctx, `SELECT id,org_id,name,is_default,is_active,created_at FROM workflows WHERE org_id=? AND id=?`, orgID, id).
		Scan(&w.ID, &w.OrgID, &w.Name, &isDefault, &isActive, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	if err != nil {
		return w, err
	}
	w.IsDefault = isDefault != 0
	w.IsActive = isActive != 0
	return r.loadWorkflowEntries(ctx, w)
}

// GetProjectWorkflow returns the active workflow explicitly bound to a project.
func (r Repo) GetProjectWorkflow(ctx context.Context, orgID, projectID string) (domain.Workflow, error) {
	var id string
	err := r.DB.QueryRowContext(ctx, `
SELECT w.id FROM workflows w
JOIN workflow_projects wp ON wp.workflow_id=w.id
WHERE w.org_id=? AND wp.project_id=? AND w.is_active=1 LIMIT 1`, orgID, projectID).Scan(&id)
	if err == sql.ErrNoRows {
		return domain.Workflow{}, ErrNotFound
	}
	if err != nil {
		return domain.Workflow{}, err
	}
	return r.GetWorkflow(ctx, orgID, id)
}

// GetDefaultWorkflow returns the organization's active default workflow.
func (r Repo) GetDefaultWorkflow(ctx context.Context, orgID string) (domain.Workflow, error) {
	var id string
	err := r.DB.QueryRowContext(ctx, `SELECT id FROM workflows WHERE org_id=? AND is_default=1 AND is_active=1 LIMIT 1`, orgID).Scan(&id)
	if err == sql.ErrNoRows {
		return domain.Workflow{}, ErrNotFound
	}
	if err != nil {
		return domain.Workflow{}, err
	}
	return r.GetWorkflow(ctx, orgID, id)
}

func (r Repo) ListWorkflows(ctx context.Context, orgID string) ([]domain.Workflow, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,org_id,name,is_default,is_active,created_at FROM workflows WHERE org_id=? ORDER BY created_at DESC, id DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Workflow
	for rows.Next() {
		var w domain.Workflow
		var isDefault, isActive int
		if err := rows.Scan(&w.ID, &w.OrgID, &w.Name, &isDefault, &isActive, &w.CreatedAt); err != nil {
			return nil, err
		}
		w.IsDefault = isDefault != 0
		w.IsActive = isActive != 0
		res = append(res, w)
	}
	return res, rows.Err()
}

// BindWorkflowToProject assigns a workflow to a project, replacing any
// previous assignment.
func (r Repo) BindWorkflowToProject(ctx context.Context, tx *sql.Tx, workflowID, projectID string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO workflow_projects(workflow_id,project_id) VALUES (?,?)
ON CONFLICT(project_id) DO UPDATE SET workflow_id=excluded.workflow_id`, workflowID, projectID)
	return err
}

func (r Repo) loadWorkflowEntries(ctx context.Context, w domain.Workflow) (domain.Workflow, error) {
	rows, err := r.DB.QueryContext(ctx, `
SELECT ws.status_id, ws.position, s.name, s.category
FROM workflow_statuses ws
JOIN statuses s ON s.id=ws.status_id AND s.org_id=?
WHERE ws.workflow_id=? ORDER BY ws.position`, w.OrgID, w.ID)
	if err != nil {
		return w, err
	}
	defer rows.Close()
	for rows.Next() {
		var ws domain.WorkflowStatus
		if err := rows.Scan(&ws.StatusID, &ws.Position, &ws.Status.Name, &ws.Status.Category); err != nil {
			return w, err
		}
		ws.Status.ID = ws.StatusID
		ws.Status.OrgID = w.OrgID
		w.Statuses = append(w.Statuses, ws)
	}
	if err := rows.Err(); err != nil {
		return w, err
	}

	trows, err := r.DB.QueryContext(ctx, `
SELECT id,workflow_id,name,from_status_id,to_status_id,validators_json,conditions_json,post_functions_json
FROM transitions WHERE workflow_id=? ORDER BY rowid`, w.ID)
	if err != nil {
		return w, err
	}
	defer trows.Close()
	for trows.Next() {
		var t domain.Transition
		var validators, conditions, postFunctions sql.NullString
		if err := trows.Scan(&t.ID, &t.WorkflowID, &t.Name, &t.FromStatusID, &t.ToStatusID, &validators, &conditions, &postFunctions); err != nil {
			return w, err
		}
		if validators.Valid {
			t.ValidatorsJSON = &validators.String
		}
		if conditions.Valid {
			t.ConditionsJSON = &conditions.String
		}
		if postFunctions.Valid {
			t.PostFunctionsJSON = &postFunctions.String
		}
		w.Transitions = append(w.Transitions, t)
	}
	return w, trows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
