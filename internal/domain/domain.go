package domain

import "encoding/json"

type Organization struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Project struct {
	ID        string `json:"id"`
	OrgID     string `json:"org_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// StatusCategory is the coarse completion bucket a status belongs to.
type StatusCategory string

const (
	CategoryTodo       StatusCategory = "TODO"
	CategoryInProgress StatusCategory = "IN_PROGRESS"
	CategoryDone       StatusCategory = "DONE"
)

// ValidCategory reports whether c is one of the known status categories.
func ValidCategory(c StatusCategory) bool {
	switch c {
	case CategoryTodo, CategoryInProgress, CategoryDone:
		return true
	}
	return false
}

type Status struct {
	ID       string         `json:"id"`
	OrgID    string         `json:"org_id"`
	Name     string         `json:"name"`
	Category StatusCategory `json:"category" enum:"TODO,IN_PROGRESS,DONE"`
}

// WorkflowStatus places a status inside a workflow at an ordinal position.
// Position defines display and traversal order, not transition legality.
type WorkflowStatus struct {
	StatusID string `json:"status_id"`
	Position int    `json:"position"`
	Status   Status `json:"status"`
}

// Transition is a directed edge between two statuses. ValidatorsJSON holds
// the ordered validator list as stored; ConditionsJSON and PostFunctionsJSON
// are reserved extension points carried through verbatim and never executed.
type Transition struct {
	ID                string  `json:"id"`
	WorkflowID        string  `json:"workflow_id"`
	Name              string  `json:"name"`
	FromStatusID      string  `json:"from_status_id"`
	ToStatusID        string  `json:"to_status_id"`
	ValidatorsJSON    *string `json:"validators_json,omitempty"`
	ConditionsJSON    *string `json:"conditions_json,omitempty"`
	PostFunctionsJSON *string `json:"post_functions_json,omitempty"`
}

type Workflow struct {
	ID          string           `json:"id"`
	OrgID       string           `json:"org_id"`
	Name        string           `json:"name"`
	IsDefault   bool             `json:"is_default"`
	IsActive    bool             `json:"is_active"`
	Statuses    []WorkflowStatus `json:"statuses,omitempty"`
	Transitions []Transition     `json:"transitions,omitempty"`
	CreatedAt   string           `json:"created_at" format:"date-time"`
}

type Issue struct {
	ID               string  `json:"id"`
	OrgID            string  `json:"org_id"`
	ProjectID        string  `json:"project_id"`
	ParentID         *string `json:"parent_id,omitempty"`
	Type             string  `json:"type"`
	Summary          string  `json:"summary"`
	StatusID         string  `json:"status_id"`
	AssigneeID       *string `json:"assignee_id,omitempty"`
	ReporterID       *string `json:"reporter_id,omitempty"`
	ResolutionID     *string `json:"resolution_id,omitempty"`
	PriorityID       *string `json:"priority_id,omitempty"`
	CustomFieldsJSON *string `json:"custom_fields_json,omitempty"`
	CreatedAt        string  `json:"created_at" format:"date-time"`
	UpdatedAt        string  `json:"updated_at" format:"date-time"`
	DeletedAt        *string `json:"deleted_at,omitempty" format:"date-time"`

	// Status is the resolved reference row for StatusID when loaded.
	Status *Status `json:"status,omitempty"`
}

// FieldValue resolves a named issue property for validator checks. Core
// fields are addressed by their camelCase name; anything else is looked up
// in the custom fields document. A missing key and a null value are the
// same: both return ok=false.
func (i Issue) FieldValue(name string) (any, bool) {
	switch name {
	case "id":
		return i.ID, true
	case "projectId":
		return i.ProjectID, true
	case "statusId":
		return i.StatusID, true
	case "type":
		return i.Type, true
	case "summary":
		return i.Summary, true
	case "parentId":
		return deref(i.ParentID)
	case "assigneeId":
		return deref(i.AssigneeID)
	case "reporterId":
		return deref(i.ReporterID)
	case "resolutionId":
		return deref(i.ResolutionID)
	case "priorityId":
		return deref(i.PriorityID)
	}
	if i.CustomFieldsJSON == nil {
		return nil, false
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(*i.CustomFieldsJSON), &fields); err != nil {
		return nil, false
	}
	v, ok := fields[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func deref(s *string) (any, bool) {
	if s == nil {
		return nil, false
	}
	return *s, true
}

// IssueHistory records a single field change on an issue.
type IssueHistory struct {
	ID        int64  `json:"id"`
	OrgID     string `json:"org_id"`
	IssueID   string `json:"issue_id"`
	UserID    string `json:"user_id"`
	Field     string `json:"field"`
	OldValue  string `json:"old_value"`
	NewValue  string `json:"new_value"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// AuditEntry is the coarse cross-entity change record.
type AuditEntry struct {
	ID         int64  `json:"id"`
	OrgID      string `json:"org_id"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	UserID     string `json:"user_id"`
	Action     string `json:"action"`
	Diff       string `json:"diff_json"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
