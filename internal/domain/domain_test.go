package domain_test

import (
	"testing"

	"trackline/internal/domain"
)

func strptr(s string) *string { return &s }

func TestFieldValueCoreFields(t *testing.T) {
	issue := domain.Issue{
		ID:        "iss-1",
		ProjectID: "proj-1",
		StatusID:  "status-todo",
		Type:      "bug",
		Summary:   "Broken",
	}
	for name, want := range map[string]any{
		"id":        "iss-1",
		"projectId": "proj-1",
		"statusId":  "status-todo",
		"type":      "bug",
		"summary":   "Broken",
	} {
		got, ok := issue.FieldValue(name)
		if !ok || got != want {
			t.Fatalf("FieldValue(%q) = %v, %v; want %v, true", name, got, ok, want)
		}
	}
}

func TestFieldValueNilPointers(t *testing.T) {
	issue := domain.Issue{ID: "iss-1"}
	for _, name := range []string{"assigneeId", "reporterId", "resolutionId", "priorityId", "parentId"} {
		if _, ok := issue.FieldValue(name); ok {
			t.Fatalf("FieldValue(%q) should be absent on an empty issue", name)
		}
	}
	issue.AssigneeID = strptr("bob")
	if v, ok := issue.FieldValue("assigneeId"); !ok || v != "bob" {
		t.Fatalf("FieldValue(assigneeId) = %v, %v", v, ok)
	}
}

func TestFieldValueCustomFields(t *testing.T) {
	issue := domain.Issue{
		ID:               "iss-1",
		CustomFieldsJSON: strptr(`{"severity":"high","count":3,"empty":null}`),
	}
	if v, ok := issue.FieldValue("severity"); !ok || v != "high" {
		t.Fatalf("severity = %v, %v", v, ok)
	}
	if v, ok := issue.FieldValue("count"); !ok || v != float64(3) {
		t.Fatalf("count = %v, %v", v, ok)
	}
	// null and missing are the same answer
	if _, ok := issue.FieldValue("empty"); ok {
		t.Fatalf("null custom field should be absent")
	}
	if _, ok := issue.FieldValue("nothere"); ok {
		t.Fatalf("missing custom field should be absent")
	}
}

func TestFieldValueMalformedCustomFields(t *testing.T) {
	issue := domain.Issue{
		ID:               "iss-1",
		CustomFieldsJSON: strptr(`{broken`),
	}
	if _, ok := issue.FieldValue("anything"); ok {
		t.Fatalf("malformed custom fields should report absent")
	}
}

func TestValidCategory(t *testing.T) {
	for _, c := range []domain.StatusCategory{domain.CategoryTodo, domain.CategoryInProgress, domain.CategoryDone} {
		if !domain.ValidCategory(c) {
			t.Fatalf("%s should be valid", c)
		}
	}
	if domain.ValidCategory("WAITING") {
		t.Fatalf("WAITING should be invalid")
	}
}
