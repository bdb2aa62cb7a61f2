package server

import (
	"encoding/json"

	"trackline/internal/domain"
	"trackline/internal/workflow"
)

type ProjectResponse struct {
	ID        string `json:"id"`
	OrgID     string `json:"org_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

func projectResponse(p domain.Project) ProjectResponse {
	return ProjectResponse{ID: p.ID, OrgID: p.OrgID, Name: p.Name, CreatedAt: p.CreatedAt}
}

func mapProjects(items []domain.Project) []ProjectResponse {
	out := make([]ProjectResponse, 0, len(items))
	for _, p := range items {
		out = append(out, projectResponse(p))
	}
	return out
}

type StatusResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category" enum:"TODO,IN_PROGRESS,DONE"`
}

func statusResponse(s domain.Status) StatusResponse {
	return StatusResponse{ID: s.ID, Name: s.Name, Category: string(s.Category)}
}

type WorkflowStatusResponse struct {
	Position int            `json:"position"`
	Status   StatusResponse `json:"status"`
}

type TransitionResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	FromStatusID string `json:"from_status_id"`
	ToStatusID   string `json:"to_status_id"`
}

type WorkflowResponse struct {
	ID          string                   `json:"id"`
	OrgID       string                   `json:"org_id"`
	Name        string                   `json:"name"`
	IsDefault   bool                     `json:"is_default"`
	IsActive    bool                     `json:"is_active"`
	Statuses    []WorkflowStatusResponse `json:"statuses"`
	Transitions []TransitionResponse     `json:"transitions"`
	CreatedAt   string                   `json:"created_at"`
}

func workflowResponse(w domain.Workflow) WorkflowResponse {
	out := WorkflowResponse{
		ID:          w.ID,
		OrgID:       w.OrgID,
		Name:        w.Name,
		IsDefault:   w.IsDefault,
		IsActive:    w.IsActive,
		Statuses:    []WorkflowStatusResponse{},
		Transitions: []TransitionResponse{},
		CreatedAt:   w.CreatedAt,
	}
	for _, ws := range w.Statuses {
		out.Statuses = append(out.Statuses, WorkflowStatusResponse{
			Position: ws.Position,
			Status:   statusResponse(ws.Status),
		})
	}
	for _, t := range w.Transitions {
		out.Transitions = append(out.Transitions, TransitionResponse{
			ID:           t.ID,
			Name:         t.Name,
			FromStatusID: t.FromStatusID,
			ToStatusID:   t.ToStatusID,
		})
	}
	return out
}

func mapWorkflows(items []domain.Workflow) []WorkflowResponse {
	out := make([]WorkflowResponse, 0, len(items))
	for _, w := range items {
		out = append(out, workflowResponse(w))
	}
	return out
}

type AvailableTransitionResponse struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	ToStatus StatusResponse `json:"to_status"`
}

func mapAvailableTransitions(items []workflow.AvailableTransition) []AvailableTransitionResponse {
	out := make([]AvailableTransitionResponse, 0, len(items))
	for _, t := range items {
		out = append(out, AvailableTransitionResponse{
			ID:       t.ID,
			Name:     t.Name,
			ToStatus: statusResponse(t.ToStatus),
		})
	}
	return out
}

type IssueResponse struct {
	ID           string          `json:"id"`
	OrgID        string          `json:"org_id"`
	ProjectID    string          `json:"project_id"`
	ParentID     *string         `json:"parent_id,omitempty"`
	Type         string          `json:"type"`
	Summary      string          `json:"summary"`
	StatusID     string          `json:"status_id"`
	Status       *StatusResponse `json:"status,omitempty"`
	AssigneeID   *string         `json:"assignee_id,omitempty"`
	ReporterID   *string         `json:"reporter_id,omitempty"`
	ResolutionID *string         `json:"resolution_id,omitempty"`
	PriorityID   *string         `json:"priority_id,omitempty"`
	CustomFields json.RawMessage `json:"custom_fields,omitempty"`
	CreatedAt    string          `json:"created_at"`
	UpdatedAt    string          `json:"updated_at"`
}

func issueResponse(i domain.Issue) IssueResponse {
	out := IssueResponse{
		ID:           i.ID,
		OrgID:        i.OrgID,
		ProjectID:    i.ProjectID,
		ParentID:     i.ParentID,
		Type:         i.Type,
		Summary:      i.Summary,
		StatusID:     i.StatusID,
		AssigneeID:   i.AssigneeID,
		ReporterID:   i.ReporterID,
		ResolutionID: i.ResolutionID,
		PriorityID:   i.PriorityID,
		CreatedAt:    i.CreatedAt,
		UpdatedAt:    i.UpdatedAt,
	}
	if i.Status != nil {
		sr := statusResponse(*i.Status)
		out.Status = &sr
	}
	if i.CustomFieldsJSON != nil && json.Valid([]byte(*i.CustomFieldsJSON)) {
		out.CustomFields = json.RawMessage(*i.CustomFieldsJSON)
	}
	return out
}

func mapIssues(items []domain.Issue) []IssueResponse {
	out := make([]IssueResponse, 0, len(items))
	for _, i := range items {
		out = append(out, issueResponse(i))
	}
	return out
}

type HistoryEntryResponse struct {
	ID        int64  `json:"id"`
	IssueID   string `json:"issue_id"`
	UserID    string `json:"user_id"`
	Field     string `json:"field"`
	OldValue  string `json:"old_value"`
	NewValue  string `json:"new_value"`
	CreatedAt string `json:"created_at"`
}

func mapHistory(items []domain.IssueHistory) []HistoryEntryResponse {
	out := make([]HistoryEntryResponse, 0, len(items))
	for _, h := range items {
		out = append(out, HistoryEntryResponse{
			ID:        h.ID,
			IssueID:   h.IssueID,
			UserID:    h.UserID,
			Field:     h.Field,
			OldValue:  h.OldValue,
			NewValue:  h.NewValue,
			CreatedAt: h.CreatedAt,
		})
	}
	return out
}

type AuditEntryResponse struct {
	ID         int64           `json:"id"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	UserID     string          `json:"user_id"`
	Action     string          `json:"action"`
	Diff       json.RawMessage `json:"diff,omitempty"`
	CreatedAt  string          `json:"created_at"`
}

func mapAudit(items []domain.AuditEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, 0, len(items))
	for _, a := range items {
		r := AuditEntryResponse{
			ID:         a.ID,
			EntityType: a.EntityType,
			EntityID:   a.EntityID,
			UserID:     a.UserID,
			Action:     a.Action,
			CreatedAt:  a.CreatedAt,
		}
		if a.Diff != "" && json.Valid([]byte(a.Diff)) {
			r.Diff = json.RawMessage(a.Diff)
		}
		out = append(out, r)
	}
	return out
}

type CreateProjectRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CreateIssueRequest struct {
	ID           string          `json:"id,omitempty"`
	ProjectID    string          `json:"project_id"`
	ParentID     *string         `json:"parent_id,omitempty"`
	Type         string          `json:"type,omitempty"`
	Summary      string          `json:"summary"`
	StatusID     string          `json:"status_id,omitempty"`
	AssigneeID   *string         `json:"assignee_id,omitempty"`
	ReporterID   *string         `json:"reporter_id,omitempty"`
	PriorityID   *string         `json:"priority_id,omitempty"`
	CustomFields json.RawMessage `json:"custom_fields,omitempty"`
}

type TransitionIssueRequest struct {
	TransitionID string `json:"transition_id"`
}
