package intake

import (
	"fmt"
	"regexp"
)

// Validator is a custom per-field check. It returns ok=false with a message
// to fail, or ok=false with an empty message for a generic failure.
type Validator func(value any) (ok bool, message string)

// PatternRule is a format check applied to non-empty string values.
type PatternRule struct {
	Regexp  *regexp.Regexp
	Message string
}

// Rules is the validation ruleset generated for one field.
type Rules struct {
	Required        bool
	RequiredMessage string
	Pattern         *PatternRule
	Validate        Validator
}

// IsZero reports whether the ruleset checks nothing.
func (r Rules) IsZero() bool {
	return !r.Required && r.Pattern == nil && r.Validate == nil
}

var (
	zipPattern   = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	phonePattern = regexp.MustCompile(`^\(\d{3}\) \d{3}-\d{4}$`)
	ssnPattern   = regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

var dataTypePatterns = map[DataType]PatternRule{
	DataTypeZIP:   {Regexp: zipPattern, Message: "Please enter a valid ZIP code (12345 or 12345-6789)"},
	DataTypePhone: {Regexp: phonePattern, Message: "Please enter a phone number as (123) 456-7890"},
	DataTypeSSN:   {Regexp: ssnPattern, Message: "Please enter an SSN as 123-45-6789"},
	DataTypeEmail: {Regexp: emailPattern, Message: "Please enter a valid email address"},
}

const (
	insurancePriorityKey          = "insurance-priority"
	insurancePrioritySecondaryKey = "insurance-priority-2"

	// AddressLine2Message is returned when line 2 is filled without line 1.
	AddressLine2Message = "Address line 2 cannot be filled without address line 1"
)

// addressLinePairs maps each address line 2 key to its line 1 key.
var addressLinePairs = map[string]string{
	"patient-address-line-2":           "patient-address-line-1",
	"guarantor-address-line-2":         "guarantor-address-line-1",
	"employer-address-line-2":          "employer-address-line-1",
	"emergency-contact-address-line-2": "emergency-contact-address-line-1",
	"policy-holder-address-line-2":     "policy-holder-address-line-1",
	"policy-holder-address-line-2-2":   "policy-holder-address-line-1-2",
}

// AddressLinePairs returns a copy of the line 2 to line 1 key table.
func AddressLinePairs() map[string]string {
	out := make(map[string]string, len(addressLinePairs))
	for k, v := range addressLinePairs {
		out[k] = v
	}
	return out
}

// GenerateRules builds the ruleset for one field. requiredKeys are the
// owning section's unconditional required keys.
//
// A field holds at most one custom validator. When more than one by-key or
// by-type validator applies, the later assignment replaces the earlier one,
// in this order: date checks, insurance priority, address line 2.
func (e *Engine) GenerateRules(field *FieldConfig, values FormValues, requiredKeys []string) Rules {
	var rules Rules
	if field == nil || field.Kind == KindDisplay {
		return rules
	}

	eval := e.Evaluate(field, values, field.EnableBehavior)
	if eval.Required || containsKey(requiredKeys, field.Key) {
		rules.Required = true
		rules.RequiredMessage = requiredMessage(field)
	}

	if p, ok := dataTypePatterns[field.DataType]; ok {
		p := p
		rules.Pattern = &p
	}

	switch {
	case field.DataType == DataTypeDOB:
		rules.Validate = e.dobValidator()
	case field.IsDateKind():
		rules.Validate = dateValidator
	}

	if counterpart, ok := insurancePriorityCounterpart(field.Key); ok {
		rules.Validate = insurancePriorityValidator(values, counterpart)
	}

	if line1, ok := addressLinePairs[field.Key]; ok {
		rules.Validate = addressLine2Validator(values, line1)
	}

	return rules
}

// GenerateRulesForSection builds rules for every field of one section
// repetition, keyed by field key. Display fields are omitted.
func (e *Engine) GenerateRulesForSection(items FieldMap, values FormValues, requiredKeys []string) map[string]Rules {
	out := make(map[string]Rules, len(items))
	for key, field := range items {
		if field == nil || field.Kind == KindDisplay {
			continue
		}
		out[key] = e.GenerateRules(field, values, requiredKeys)
	}
	return out
}

func requiredMessage(field *FieldConfig) string {
	if field.Label != "" {
		return field.Label + " is required"
	}
	return "This field is required"
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

func (e *Engine) dobValidator() Validator {
	return func(value any) (bool, string) {
		if isEmptyValue(value) {
			return true, ""
		}
		d, ok := parseDate(value)
		if !ok {
			return false, "Please enter a valid date"
		}
		if d.After(e.now()) {
			return false, "Date of birth cannot be in the future"
		}
		return true, ""
	}
}

func dateValidator(value any) (bool, string) {
	if isEmptyValue(value) {
		return true, ""
	}
	if _, ok := parseDate(value); !ok {
		return false, "Please enter a valid date"
	}
	return true, ""
}

func insurancePriorityCounterpart(key string) (string, bool) {
	switch key {
	case insurancePriorityKey:
		return insurancePrioritySecondaryKey, true
	case insurancePrioritySecondaryKey:
		return insurancePriorityKey, true
	}
	return "", false
}

func insurancePriorityValidator(values FormValues, counterpart string) Validator {
	return func(value any) (bool, string) {
		if isEmptyValue(value) {
			return true, ""
		}
		other, ok := values[counterpart]
		if ok && !isEmptyValue(other) && strictEqual(other, true, value) {
			return false, fmt.Sprintf("You may not have two %v insurance plans", value)
		}
		return true, ""
	}
}

func addressLine2Validator(values FormValues, line1Key string) Validator {
	return func(value any) (bool, string) {
		if isEmptyValue(value) {
			return true, ""
		}
		if isEmptyValue(values[line1Key]) {
			return false, AddressLine2Message
		}
		return true, ""
	}
}

// Check runs the ruleset against a value. The first failing rule wins.
func (r Rules) Check(value any) *FieldError {
	if r.Required && isEmptyValue(value) {
		msg := r.RequiredMessage
		if msg == "" {
			msg = "This field is required"
		}
		return &FieldError{Type: ErrorRequired, Message: msg}
	}
	if r.Pattern != nil {
		if s, ok := value.(string); ok && s != "" && !r.Pattern.Regexp.MatchString(s) {
			return &FieldError{Type: ErrorPattern, Message: r.Pattern.Message}
		}
	}
	if r.Validate != nil {
		if ok, msg := r.Validate(value); !ok {
			if msg == "" {
				msg = "Validation failed"
			}
			return &FieldError{Type: ErrorValidate, Message: msg}
		}
	}
	return nil
}

// RuleSummary is the JSON-friendly description of a ruleset.
type RuleSummary struct {
	Required        bool   `json:"required"`
	RequiredMessage string `json:"requiredMessage,omitempty"`
	Pattern         string `json:"pattern,omitempty"`
	PatternMessage  string `json:"patternMessage,omitempty"`
	HasValidator    bool   `json:"hasValidator"`
}

func (r Rules) Summary() RuleSummary {
	s := RuleSummary{
		Required:        r.Required,
		RequiredMessage: r.RequiredMessage,
		HasValidator:    r.Validate != nil,
	}
	if r.Pattern != nil {
		s.Pattern = r.Pattern.Regexp.String()
		s.PatternMessage = r.Pattern.Message
	}
	return s
}
