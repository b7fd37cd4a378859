package fhir

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNewOperationOutcome(t *testing.T) {
	o := NewOperationOutcome(IssueSeverityError, IssueTypeStructure, "bad body")
	if o.ResourceType != "OperationOutcome" {
		t.Errorf("resourceType = %s", o.ResourceType)
	}
	if len(o.Issue) != 1 || o.Issue[0].Code != IssueTypeStructure || o.Issue[0].Diagnostics != "bad body" {
		t.Errorf("issue = %+v", o.Issue)
	}
	if !o.HasErrors() {
		t.Error("expected an error outcome")
	}
}

func TestOutcomeBuilder(t *testing.T) {
	b := NewOutcomeBuilder()
	if b.Len() != 0 {
		t.Fatalf("new builder has %d issues", b.Len())
	}
	o := b.
		AddIssue(IssueSeverityWarning, IssueTypeProcessing, "slow").
		AddIssueWithLocation(IssueSeverityError, IssueTypeRequired, "Name is required", "patient-first-name").
		Build()

	if len(o.Issue) != 2 {
		t.Fatalf("issues = %+v", o.Issue)
	}
	if o.Issue[0].Expression != nil {
		t.Error("plain issues carry no expression")
	}
	if got := o.Issue[1].Expression; len(got) != 1 || got[0] != "patient-first-name" {
		t.Errorf("expression = %v", got)
	}
}

func TestOutcome_EmptyIssueListEncodes(t *testing.T) {
	data, err := json.Marshal(NewOutcomeBuilder().Build())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"issue":[]`) {
		t.Errorf("json = %s", data)
	}
}

func TestHasErrors(t *testing.T) {
	tests := []struct {
		severity string
		want     bool
	}{
		{IssueSeverityFatal, true},
		{IssueSeverityError, true},
		{IssueSeverityWarning, false},
		{IssueSeverityInformation, false},
	}
	for _, tt := range tests {
		o := NewOperationOutcome(tt.severity, IssueTypeProcessing, "x")
		if got := o.HasErrors(); got != tt.want {
			t.Errorf("%s: HasErrors = %v, want %v", tt.severity, got, tt.want)
		}
	}
}

func TestOutcomeHelpers(t *testing.T) {
	if o := SuccessOutcome("All OK"); o.HasErrors() || o.Issue[0].Code != IssueTypeInformational {
		t.Errorf("success = %+v", o)
	}
	if o := ErrorOutcome("boom"); !o.HasErrors() || o.Issue[0].Code != IssueTypeProcessing {
		t.Errorf("error = %+v", o)
	}
	o := NotFoundOutcome("Questionnaire", "abc")
	if o.Issue[0].Code != IssueTypeNotFound || o.Issue[0].Diagnostics != "Questionnaire/abc not found" {
		t.Errorf("not found = %+v", o)
	}
}
