package workflow

import (
	"context"
	"fmt"

	"trackline/internal/domain"
	"trackline/internal/repo"
)

// CodeTransitionBlocked is the stable machine-readable code carried by
// every ValidationError from this package.
const CodeTransitionBlocked = "WORKFLOW_TRANSITION_BLOCKED"

// ValidationError means the transition is well-formed but currently
// disallowed: a status mismatch, a failing validator, a missing validator
// config key, or an unrecognized validator type.
type ValidationError struct {
	Code    string
	Message string
	Details map[string]any
}

func (e *ValidationError) Error() string { return e.Message }

func blocked(message string, details map[string]any) *ValidationError {
	return &ValidationError{Code: CodeTransitionBlocked, Message: message, Details: details}
}

// Context carries what a validator may read. Validators never write.
type Context struct {
	Repo   repo.Repo
	OrgID  string
	Issue  domain.Issue
	Config map[string]any
}

// Validator is a single predicate gating a transition.
type Validator interface {
	Check(ctx context.Context, vc Context) error
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(ctx context.Context, vc Context) error

func (f ValidatorFunc) Check(ctx context.Context, vc Context) error { return f(ctx, vc) }

func builtinValidators() map[string]Validator {
	return map[string]Validator{
		"required_field":   ValidatorFunc(requiredField),
		"no_open_subtasks": ValidatorFunc(noOpenSubtasks),
	}
}

// requiredField fails when the configured issue property is null or absent.
// A missing config.field is a configuration error but surfaces through the
// same blocked channel so callers see one failure shape.
func requiredField(_ context.Context, vc Context) error {
	name, _ := vc.Config["field"].(string)
	if name == "" {
		return blocked("required_field validator missing config.field",
			map[string]any{"validatorType": "required_field"})
	}
	if _, ok := vc.Issue.FieldValue(name); !ok {
		return blocked(fmt.Sprintf("field %s must be set before this transition", name),
			map[string]any{"validatorType": "required_field", "field": name})
	}
	return nil
}

// noOpenSubtasks fails while any live child issue sits in a status whose
// category is not DONE, reporting how many remain.
func noOpenSubtasks(ctx context.Context, vc Context) error {
	count, err := vc.Repo.CountOpenSubtasks(ctx, vc.OrgID, vc.Issue.ID)
	if err != nil {
		return err
	}
	if count > 0 {
		return blocked(fmt.Sprintf("%d open subtasks must be completed before this transition", count),
			map[string]any{"validatorType": "no_open_subtasks", "openSubtasks": count})
	}
	return nil
}
