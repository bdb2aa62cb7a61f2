package config_test

import (
	"strings"
	"testing"

	"trackline/internal/config"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := config.Default("org-1")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Organization.ID != "org-1" {
		t.Fatalf("org id not applied: %s", cfg.Organization.ID)
	}
	if len(cfg.Statuses) != 4 {
		t.Fatalf("expected 4 seed statuses, got %d", len(cfg.Statuses))
	}
	if len(cfg.Workflow.Transitions) != 5 {
		t.Fatalf("expected 5 seed transitions, got %d", len(cfg.Workflow.Transitions))
	}
}

func TestGenerateDefaultRoundTrip(t *testing.T) {
	raw := config.GenerateDefault("org-x")
	cfg, err := config.FromYAML([]byte(raw))
	if err != nil {
		t.Fatalf("generated template does not parse: %v", err)
	}
	if cfg.Organization.ID != "org-x" {
		t.Fatalf("org id not templated: %s", cfg.Organization.ID)
	}
}

func TestValidateRejectsBadCategory(t *testing.T) {
	cfg := config.Default("org-1")
	cfg.Statuses[0].Category = "WAITING"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "unknown category") {
		t.Fatalf("expected category error, got %v", err)
	}
}

func TestValidateRejectsDanglingTransition(t *testing.T) {
	cfg := config.Default("org-1")
	cfg.Workflow.Transitions[0].To = "status-ghost"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "unknown to status") {
		t.Fatalf("expected dangling transition error, got %v", err)
	}
}

func TestValidateRejectsDuplicateStatus(t *testing.T) {
	cfg := config.Default("org-1")
	cfg.Statuses = append(cfg.Statuses, cfg.Statuses[0])
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "defined twice") {
		t.Fatalf("expected duplicate status error, got %v", err)
	}
}

func TestValidateRejectsRequiredFieldWithoutField(t *testing.T) {
	cfg := config.Default("org-1")
	cfg.Workflow.Transitions[0].Validators = []config.ValidatorSeed{{Type: "required_field"}}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "missing config.field") {
		t.Fatalf("expected required_field config error, got %v", err)
	}
}

func TestValidateRejectsMissingOrg(t *testing.T) {
	cfg := config.Default("")
	cfg.Organization.ID = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for missing organization id")
	}
}
