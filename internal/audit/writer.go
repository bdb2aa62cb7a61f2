package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Writer appends history and audit rows inside the caller's transaction,
// so a status change and its records commit or roll back together.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type Diff map[string]any

func (w Writer) AppendHistory(ctx context.Context, tx *sql.Tx, orgID, issueID, userID, field, oldValue, newValue string) error {
	ts := w.now().UTC().Format(time.RFC3339)
	_, err := tx.ExecContext(ctx, `INSERT INTO issue_history(org_id,issue_id,user_id,field,old_value,new_value,created_at) VALUES (?,?,?,?,?,?,?)`,
		orgID, issueID, userID, field, nullable(oldValue), nullable(newValue), ts)
	return err
}

func (w Writer) AppendAudit(ctx context.Context, tx *sql.Tx, orgID, entityType, entityID, userID, action string, diff Diff) error {
	ts := w.now().UTC().Format(time.RFC3339)
	if diff == nil {
		diff = Diff{}
	}
	data, err := json.Marshal(diff)
	if err != nil {
		return fmt.Errorf("marshal audit diff: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO audit_log(org_id,entity_type,entity_id,user_id,action,diff_json,created_at) VALUES (?,?,?,?,?,?,?)`,
		orgID, entityType, entityID, userID, action, string(data), ts)
	return err
}

func (w Writer) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
