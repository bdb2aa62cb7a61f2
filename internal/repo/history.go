package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"trackline/internal/domain"
)

func (r Repo) ListIssueHistory(ctx context.Context, orgID, issueID string) ([]domain.IssueHistory, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,org_id,issue_id,user_id,field,old_value,new_value,created_at
FROM issue_history WHERE org_id=? AND issue_id=? ORDER BY id ASC`, orgID, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.IssueHistory
	for rows.Next() {
		var h domain.IssueHistory
		var oldValue, newValue sql.NullString
		if err := rows.Scan(&h.ID, &h.OrgID, &h.IssueID, &h.UserID, &h.Field, &oldValue, &newValue, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.OldValue = oldValue.String
		h.NewValue = newValue.String
		res = append(res, h)
	}
	return res, rows.Err()
}

// LatestAudit returns the most recent audit entries, newest first.
func (r Repo) LatestAudit(ctx context.Context, limit int, orgID, entityType, entityID string) ([]domain.AuditEntry, error) {
	return r.LatestAuditFrom(ctx, limit, 0, orgID, entityType, entityID)
}

func (r Repo) LatestAuditFrom(ctx context.Context, limit int, cursor int64, orgID, entityType, entityID string) ([]domain.AuditEntry, error) {
	clauses := []string{"org_id=?"}
	args := []any{orgID}
	if entityType != "" {
		clauses = append(clauses, "entity_type=?")
		args = append(args, entityType)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,org_id,entity_type,entity_id,user_id,action,diff_json,created_at FROM audit_log %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	return r.scanAudit(ctx, query, args...)
}

// AuditAfter returns audit entries with IDs greater than the cursor in
// ascending order.
func (r Repo) AuditAfter(ctx context.Context, limit int, cursor int64, orgID string) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses := []string{"org_id=?"}
	args := []any{orgID}
	if cursor > 0 {
		clauses = append(clauses, "id>?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,org_id,entity_type,entity_id,user_id,action,diff_json,created_at FROM audit_log %s ORDER BY id ASC LIMIT ?`, where)
	args = append(args, limit)
	return r.scanAudit(ctx, query, args...)
}

// LatestAuditID returns the most recent audit entry ID for an organization.
func (r Repo) LatestAuditID(ctx context.Context, orgID string) (int64, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM audit_log WHERE org_id=?`, orgID)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r Repo) scanAudit(ctx context.Context, query string, args ...any) ([]domain.AuditEntry, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AuditEntry
	for rows.Next() {
		var a domain.AuditEntry
		if err := rows.Scan(&a.ID, &a.OrgID, &a.EntityType, &a.EntityID, &a.UserID, &a.Action, &a.Diff, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}
