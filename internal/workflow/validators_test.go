package workflow_test

import (
	"errors"
	"testing"

	"trackline/internal/app"
	"trackline/internal/config"
	"trackline/internal/domain"
	"trackline/internal/workflow"
)

// bindRequiredField installs a workflow on proj-1 whose only transition
// requires the given issue property.
func bindRequiredField(t *testing.T, env testEnv, field string) string {
	t.Helper()
	seed := config.WorkflowSeed{
		Name: "Field gate",
		Transitions: []config.TransitionSeed{
			{ID: "fg-start", Name: "Start", From: "status-todo", To: "status-ip",
				Validators: []config.ValidatorSeed{{Type: "required_field", Config: map[string]any{"field": field}}}},
		},
	}
	if _, err := app.CreateWorkflow(env.Ctx, env.Repo, "org-1", seed,
		[]string{"status-todo", "status-ip"}, []string{"proj-1"}); err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	return "fg-start"
}

func TestRequiredFieldCustomFieldPresent(t *testing.T) {
	env := newTestEnv(t)
	trID := bindRequiredField(t, env, "severity")
	createIssue(t, env, "iss-1", "proj-1", "status-todo", func(i *domain.Issue) {
		i.CustomFieldsJSON = strptr(`{"severity":"high"}`)
	})
	moved, err := env.Engine.TransitionIssue(env.Ctx, "org-1", "alice", "iss-1", trID)
	if err != nil {
		t.Fatalf("transition with field set: %v", err)
	}
	if moved.StatusID != "status-ip" {
		t.Fatalf("expected status-ip, got %s", moved.StatusID)
	}
}

func TestRequiredFieldCustomFieldNull(t *testing.T) {
	env := newTestEnv(t)
	trID := bindRequiredField(t, env, "severity")
	// an explicit null counts the same as a missing key
	createIssue(t, env, "iss-null", "proj-1", "status-todo", func(i *domain.Issue) {
		i.CustomFieldsJSON = strptr(`{"severity":null}`)
	})
	_, err := env.Engine.TransitionIssue(env.Ctx, "org-1", "alice", "iss-null", trID)
	var ve *workflow.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error for null field, got %v", err)
	}
	if ve.Details["field"] != "severity" {
		t.Fatalf("unexpected details: %+v", ve.Details)
	}
}

func TestRequiredFieldCustomFieldAbsent(t *testing.T) {
	env := newTestEnv(t)
	trID := bindRequiredField(t, env, "severity")
	createIssue(t, env, "iss-absent", "proj-1", "status-todo", func(i *domain.Issue) {
		i.CustomFieldsJSON = strptr(`{"other":"x"}`)
	})
	_, err := env.Engine.TransitionIssue(env.Ctx, "org-1", "alice", "iss-absent", trID)
	var ve *workflow.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error for absent field, got %v", err)
	}

	// no custom fields document at all
	createIssue(t, env, "iss-bare", "proj-1", "status-todo", nil)
	_, err = env.Engine.TransitionIssue(env.Ctx, "org-1", "alice", "iss-bare", trID)
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error without custom fields, got %v", err)
	}
}

func TestRequiredFieldCoreField(t *testing.T) {
	env := newTestEnv(t)
	trID := bindRequiredField(t, env, "assigneeId")
	createIssue(t, env, "iss-unassigned", "proj-1", "status-todo", nil)
	_, err := env.Engine.TransitionIssue(env.Ctx, "org-1", "alice", "iss-unassigned", trID)
	var ve *workflow.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error for unassigned issue, got %v", err)
	}

	createIssue(t, env, "iss-assigned", "proj-1", "status-todo", func(i *domain.Issue) {
		i.AssigneeID = strptr("bob")
	})
	if _, err := env.Engine.TransitionIssue(env.Ctx, "org-1", "alice", "iss-assigned", trID); err != nil {
		t.Fatalf("transition with assignee: %v", err)
	}
}

func TestRequiredFieldMissingConfig(t *testing.T) {
	env := newTestEnv(t)
	seed := config.WorkflowSeed{
		Name: "Broken gate",
		Transitions: []config.TransitionSeed{
			{ID: "bg-start", Name: "Start", From: "status-todo", To: "status-ip",
				Validators: []config.ValidatorSeed{{Type: "required_field"}}},
		},
	}
	if _, err := app.CreateWorkflow(env.Ctx, env.Repo, "org-1", seed,
		[]string{"status-todo", "status-ip"}, []string{"proj-1"}); err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	createIssue(t, env, "iss-1", "proj-1", "status-todo", nil)
	_, err := env.Engine.TransitionIssue(env.Ctx, "org-1", "alice", "iss-1", "bg-start")
	var ve *workflow.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error for misconfigured validator, got %v", err)
	}
	if ve.Code != workflow.CodeTransitionBlocked {
		t.Fatalf("unexpected code %s", ve.Code)
	}
	issue, _ := env.Repo.GetIssue(env.Ctx, "org-1", "iss-1")
	if issue.StatusID != "status-todo" {
		t.Fatalf("misconfigured validator still moved the issue: %s", issue.StatusID)
	}
}

func TestValidatorsShortCircuit(t *testing.T) {
	env := newTestEnv(t)
	seed := config.WorkflowSeed{
		Name: "Two gates",
		Transitions: []config.TransitionSeed{
			{ID: "tg-start", Name: "Start", From: "status-todo", To: "status-ip",
				Validators: []config.ValidatorSeed{
					{Type: "required_field", Config: map[string]any{"field": "severity"}},
					{Type: "no_such_validator"},
				}},
		},
	}
	if _, err := app.CreateWorkflow(env.Ctx, env.Repo, "org-1", seed,
		[]string{"status-todo", "status-ip"}, []string{"proj-1"}); err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	createIssue(t, env, "iss-1", "proj-1", "status-todo", nil)
	_, err := env.Engine.TransitionIssue(env.Ctx, "org-1", "alice", "iss-1", "tg-start")
	var ve *workflow.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	// first failing validator reports; the unknown type after it never runs
	if ve.Details["field"] != "severity" {
		t.Fatalf("expected first validator's failure, got %+v", ve.Details)
	}
}
