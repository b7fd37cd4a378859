package fhir

import "fmt"

// OperationOutcome severity levels per FHIR R4 spec.
const (
	IssueSeverityFatal       = "fatal"
	IssueSeverityError       = "error"
	IssueSeverityWarning     = "warning"
	IssueSeverityInformation = "information"
)

// OperationOutcome issue type codes per FHIR R4 spec.
const (
	IssueTypeInvalid       = "invalid"
	IssueTypeStructure     = "structure"
	IssueTypeRequired      = "required"
	IssueTypeValue         = "value"
	IssueTypeNotFound      = "not-found"
	IssueTypeProcessing    = "processing"
	IssueTypeNotSupported  = "not-supported"
	IssueTypeBusinessRule  = "business-rule"
	IssueTypeException     = "exception"
	IssueTypeInformational = "informational"
	IssueTypeTooCostly     = "too-costly"
)

type CodeableConcept struct {
	Text string `json:"text,omitempty"`
}

type OperationOutcome struct {
	ResourceType string                  `json:"resourceType"`
	Issue        []OperationOutcomeIssue `json:"issue"`
}

type OperationOutcomeIssue struct {
	Severity    string           `json:"severity"`
	Code        string           `json:"code"`
	Details     *CodeableConcept `json:"details,omitempty"`
	Diagnostics string           `json:"diagnostics,omitempty"`
	Expression  []string         `json:"expression,omitempty"`
}

func NewOperationOutcome(severity, code, diagnostics string) *OperationOutcome {
	return NewOutcomeBuilder().AddIssue(severity, code, diagnostics).Build()
}

// OutcomeBuilder provides a fluent API for constructing OperationOutcome resources.
type OutcomeBuilder struct {
	outcome *OperationOutcome
}

func NewOutcomeBuilder() *OutcomeBuilder {
	return &OutcomeBuilder{
		outcome: &OperationOutcome{
			ResourceType: "OperationOutcome",
			Issue:        []OperationOutcomeIssue{},
		},
	}
}

func (b *OutcomeBuilder) AddIssue(severity, code, diagnostics string) *OutcomeBuilder {
	b.outcome.Issue = append(b.outcome.Issue, OperationOutcomeIssue{
		Severity:    severity,
		Code:        code,
		Diagnostics: diagnostics,
	})
	return b
}

// AddIssueWithLocation adds an issue pointing at an expression path.
func (b *OutcomeBuilder) AddIssueWithLocation(severity, code, diagnostics, location string) *OutcomeBuilder {
	b.outcome.Issue = append(b.outcome.Issue, OperationOutcomeIssue{
		Severity:    severity,
		Code:        code,
		Diagnostics: diagnostics,
		Expression:  []string{location},
	})
	return b
}

// Len returns the number of issues added so far.
func (b *OutcomeBuilder) Len() int {
	return len(b.outcome.Issue)
}

func (b *OutcomeBuilder) Build() *OperationOutcome {
	return b.outcome
}

// HasErrors returns true if the outcome contains any error or fatal issues.
func (o *OperationOutcome) HasErrors() bool {
	for _, issue := range o.Issue {
		if issue.Severity == IssueSeverityError || issue.Severity == IssueSeverityFatal {
			return true
		}
	}
	return false
}

func SuccessOutcome(message string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityInformation, IssueTypeInformational, message)
}

func ErrorOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeProcessing, diagnostics)
}

func NotFoundOutcome(resourceType, id string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeNotFound, fmt.Sprintf("%s/%s not found", resourceType, id))
}
