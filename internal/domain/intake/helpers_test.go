package intake

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

var testNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func newTestEngine(t *testing.T, doc *FormDocument) *Engine {
	t.Helper()
	cfg, err := NewFormConfig(doc)
	if err != nil {
		t.Fatalf("NewFormConfig: %v", err)
	}
	e := NewEngine(cfg, zerolog.Nop())
	e.SetClock(func() time.Time { return testNow })
	return e
}

func defaultEngine(t *testing.T) *Engine {
	t.Helper()
	cfg, err := DefaultFormConfig()
	if err != nil {
		t.Fatalf("DefaultFormConfig: %v", err)
	}
	e := NewEngine(cfg, zerolog.Nop())
	e.SetClock(func() time.Time { return testNow })
	return e
}

// bareEngine evaluates fields without any form config.
func bareEngine() *Engine {
	e := NewEngine(nil, zerolog.Nop())
	e.SetClock(func() time.Time { return testNow })
	return e
}

func trigger(target string, op Operator, effects ...Effect) Trigger {
	return Trigger{TargetFieldKey: target, Operator: op, Effects: effects}
}

func (t Trigger) withString(s string) Trigger {
	t.AnswerString = &s
	return t
}

func (t Trigger) withBool(b bool) Trigger {
	t.AnswerBoolean = &b
	return t
}

func (t Trigger) withDate(d string) Trigger {
	t.AnswerDateTime = &d
	return t
}

func (t Trigger) withSubText(s string) Trigger {
	t.SubstituteText = &s
	return t
}

func single(linkID string, fields FieldMap) *FormSection {
	return &FormSection{Title: linkID, LinkID: SingleLinkID(linkID), Items: SectionItems{Single: fields}}
}

func input(label string) *FieldConfig {
	return &FieldConfig{Kind: KindInput, Label: label}
}

// completePatient passes every rule of the default form with the optional
// sections switched off.
func completePatient() FormValues {
	return FormValues{
		"patient-first-name":      "Ada",
		"patient-last-name":       "Lovelace",
		"patient-dob":             "1980-04-12",
		"patient-address-line-1":  "12 St James's Square",
		"patient-city":            "Springfield",
		"patient-state":           "IL",
		"patient-zip":             "62701",
		"patient-phone":           "(555) 123-4567",
		"patient-is-guarantor":    true,
		"employment-status":       "Retired",
		"emergency-contact-name":  "Charles Babbage",
		"emergency-contact-phone": "(555) 987-6543",
		"reason-for-visit":        "Annual physical",
		"payment-method":          "Self-pay",
	}
}

func errorKeys(errs map[string]FieldError) map[string]ErrorType {
	out := make(map[string]ErrorType, len(errs))
	for k, v := range errs {
		out[k] = v.Type
	}
	return out
}
