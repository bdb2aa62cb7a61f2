package repo

import (
	"context"
	"database/sql"
	"strings"

	"trackline/internal/domain"
)

const issueColumns = `i.id,i.org_id,i.project_id,i.parent_id,i.type,i.summary,i.status_id,i.assignee_id,i.reporter_id,i.resolution_id,i.priority_id,i.custom_fields_json,i.created_at,i.updated_at`

func (r Repo) InsertIssue(ctx context.Context, i domain.Issue) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := r.InsertIssueTx(ctx, tx, i); err != nil {
		return err
	}
	return tx.Commit()
}

func (r Repo) InsertIssueTx(ctx context.Context, tx *sql.Tx, i domain.Issue) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO issues(id,org_id,project_id,parent_id,type,summary,status_id,assignee_id,reporter_id,resolution_id,priority_id,custom_fields_json,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		i.ID, i.OrgID, i.ProjectID, nullableStringPtr(i.ParentID), i.Type, i.Summary, i.StatusID,
		nullableStringPtr(i.AssigneeID), nullableStringPtr(i.ReporterID), nullableStringPtr(i.ResolutionID),
		nullableStringPtr(i.PriorityID), nullableStringPtr(i.CustomFieldsJSON), i.CreatedAt, i.UpdatedAt)
	return err
}

// GetIssue loads a live issue with its status reference row populated.
// Soft-deleted issues are not visible.
func (r Repo) GetIssue(ctx context.Context, orgID, id string) (domain.Issue, error) {
	row := r.DB.QueryRowContext(ctx, `
SELECT `+issueColumns+`, s.name, s.category
FROM issues i
JOIN statuses s ON s.id=i.status_id AND s.org_id=i.org_id
WHERE i.org_id=? AND i.id=? AND i.deleted_at IS NULL`, orgID, id)
	return scanIssue(row)
}

func scanIssue(row *sql.Row) (domain.Issue, error) {
	var i domain.Issue
	var parentID, assigneeID, reporterID, resolutionID, priorityID, customFields sql.NullString
	var statusName string
	var statusCategory domain.StatusCategory
	err := row.Scan(&i.ID, &i.OrgID, &i.ProjectID, &parentID, &i.Type, &i.Summary, &i.StatusID,
		&assigneeID, &reporterID, &resolutionID, &priorityID, &customFields, &i.CreatedAt, &i.UpdatedAt,
		&statusName, &statusCategory)
	if err == sql.ErrNoRows {
		return i, ErrNotFound
	}
	if err != nil {
		return i, err
	}
	if parentID.Valid {
		i.ParentID = &parentID.String
	}
	if assigneeID.Valid {
		i.AssigneeID = &assigneeID.String
	}
	if reporterID.Valid {
		i.ReporterID = &reporterID.String
	}
	if resolutionID.Valid {
		i.ResolutionID = &resolutionID.String
	}
	if priorityID.Valid {
		i.PriorityID = &priorityID.String
	}
	if customFields.Valid {
		i.CustomFieldsJSON = &customFields.String
	}
	i.Status = &domain.Status{ID: i.StatusID, OrgID: i.OrgID, Name: statusName, Category: statusCategory}
	return i, nil
}

type IssueFilters struct {
	OrgID           string
	ProjectID       string
	StatusID        string
	ParentID        string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListIssues(ctx context.Context, f IssueFilters) ([]domain.Issue, error) {
	clauses := []string{"i.org_id=?", "i.deleted_at IS NULL"}
	args := []any{f.OrgID}
	if f.ProjectID != "" {
		clauses = append(clauses, "i.project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.StatusID != "" {
		clauses = append(clauses, "i.status_id=?")
		args = append(args, f.StatusID)
	}
	if f.ParentID != "" {
		clauses = append(clauses, "i.parent_id=?")
		args = append(args, f.ParentID)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(i.created_at < ? OR (i.created_at = ? AND i.id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	query := `SELECT ` + issueColumns + `, s.name, s.category
FROM issues i
JOIN statuses s ON s.id=i.status_id AND s.org_id=i.org_id
WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY i.created_at DESC, i.id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Issue
	for rows.Next() {
		var i domain.Issue
		var parentID, assigneeID, reporterID, resolutionID, priorityID, customFields sql.NullString
		var statusName string
		var statusCategory domain.StatusCategory
		if err := rows.Scan(&i.ID, &i.OrgID, &i.ProjectID, &parentID, &i.Type, &i.Summary, &i.StatusID,
			&assigneeID, &reporterID, &resolutionID, &priorityID, &customFields, &i.CreatedAt, &i.UpdatedAt,
			&statusName, &statusCategory); err != nil {
			return nil, err
		}
		if parentID.Valid {
			i.ParentID = &parentID.String
		}
		if assigneeID.Valid {
			i.AssigneeID = &assigneeID.String
		}
		if reporterID.Valid {
			i.ReporterID = &reporterID.String
		}
		if resolutionID.Valid {
			i.ResolutionID = &resolutionID.String
		}
		if priorityID.Valid {
			i.PriorityID = &priorityID.String
		}
		if customFields.Valid {
			i.CustomFieldsJSON = &customFields.String
		}
		i.Status = &domain.Status{ID: i.StatusID, OrgID: i.OrgID, Name: statusName, Category: statusCategory}
		res = append(res, i)
	}
	return res, rows.Err()
}

// UpdateIssueStatusTx moves an issue to a new status only if it still sits
// on the expected prior status. Returns ErrNotFound when no row matched,
// which means the issue vanished or another writer won the race.
func (r Repo) UpdateIssueStatusTx(ctx context.Context, tx *sql.Tx, orgID, issueID, expectedStatusID, newStatusID, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE issues SET status_id=?, updated_at=?
WHERE org_id=? AND id=? AND status_id=? AND deleted_at IS NULL`,
		newStatusID, updatedAt, orgID, issueID, expectedStatusID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SoftDeleteIssue(ctx context.Context, orgID, id, deletedAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE issues SET deleted_at=? WHERE org_id=? AND id=? AND deleted_at IS NULL`,
		deletedAt, orgID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountOpenSubtasks counts live children of an issue whose status category
// is anything other than DONE.
func (r Repo) CountOpenSubtasks(ctx context.Context, orgID, issueID string) (int, error) {
	row := r.DB.QueryRowContext(ctx, `
SELECT count(*)
FROM issues i
JOIN statuses s ON s.id=i.status_id AND s.org_id=i.org_id
WHERE i.org_id=? AND i.parent_id=? AND i.deleted_at IS NULL AND s.category != 'DONE'`, orgID, issueID)
	var n int
	err := row.Scan(&n)
	return n, err
}
