package intake

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// FormValues is the flat snapshot of the intake form keyed by field key.
// A missing key means the control has never held a value; a present key with
// a nil value is an explicit null.
type FormValues map[string]any

// FieldKind distinguishes answerable controls from static content.
type FieldKind string

const (
	KindInput   FieldKind = "input"
	KindDisplay FieldKind = "display"
	KindGroup   FieldKind = "group"
)

func (k FieldKind) Valid() bool {
	switch k {
	case KindInput, KindDisplay, KindGroup:
		return true
	}
	return false
}

// DataType is the semantic type that selects a format check.
type DataType string

const (
	DataTypeNone  DataType = ""
	DataTypeZIP   DataType = "ZIP"
	DataTypePhone DataType = "Phone Number"
	DataTypeSSN   DataType = "SSN"
	DataTypeEmail DataType = "Email"
	DataTypeDOB   DataType = "DOB"
)

func (d DataType) Valid() bool {
	switch d {
	case DataTypeNone, DataTypeZIP, DataTypePhone, DataTypeSSN, DataTypeEmail, DataTypeDOB:
		return true
	}
	return false
}

// DisabledDisplay controls what happens to a field whose enable triggers
// evaluate to false: hidden fields are skipped from validation, disabled
// fields stay visible read-only and are still validated.
type DisabledDisplay string

const (
	DisplayHidden   DisabledDisplay = "hidden"
	DisplayDisabled DisabledDisplay = "disabled"
)

// EnableBehavior is the combination policy for multiple enable triggers.
type EnableBehavior string

const (
	EnableAny EnableBehavior = "any"
	EnableAll EnableBehavior = "all"
)

func (b EnableBehavior) orDefault() EnableBehavior {
	if b == "" {
		return EnableAny
	}
	return b
}

// Effect is what a trigger does when its condition is met.
type Effect string

const (
	EffectEnable  Effect = "enable"
	EffectRequire Effect = "require"
	EffectSubText Effect = "sub-text"
)

func (e Effect) Valid() bool {
	switch e {
	case EffectEnable, EffectRequire, EffectSubText:
		return true
	}
	return false
}

// Operator is a trigger comparison.
type Operator string

const (
	OpExists       Operator = "exists"
	OpEqual        Operator = "="
	OpNotEqual     Operator = "!="
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
)

func (o Operator) Valid() bool {
	switch o {
	case OpExists, OpEqual, OpNotEqual, OpGreater, OpLess, OpGreaterEqual, OpLessEqual:
		return true
	}
	return false
}

// IsOrdering reports whether the operator compares dates.
func (o Operator) IsOrdering() bool {
	switch o {
	case OpGreater, OpLess, OpGreaterEqual, OpLessEqual:
		return true
	}
	return false
}

// Trigger ties the value of another field to one or more effects.
type Trigger struct {
	TargetFieldKey string   `json:"targetFieldKey"`
	Effects        []Effect `json:"effects"`
	Operator       Operator `json:"operator"`
	AnswerBoolean  *bool    `json:"answerBoolean,omitempty"`
	AnswerString   *string  `json:"answerString,omitempty"`
	AnswerDateTime *string  `json:"answerDateTime,omitempty"`
	SubstituteText *string  `json:"substituteText,omitempty"`
}

// answer returns whichever answer the trigger declares, or nil.
func (t *Trigger) answer() any {
	switch {
	case t.AnswerBoolean != nil:
		return *t.AnswerBoolean
	case t.AnswerString != nil:
		return *t.AnswerString
	case t.AnswerDateTime != nil:
		return *t.AnswerDateTime
	}
	return nil
}

// FieldConfig is a single form field. Fields are never mutated after load.
type FieldConfig struct {
	Key             string          `json:"key"`
	Kind            FieldKind       `json:"kind"`
	Label           string          `json:"label,omitempty"`
	InputType       string          `json:"inputType,omitempty"`
	DataType        DataType        `json:"dataType,omitempty"`
	DisabledDisplay DisabledDisplay `json:"disabledDisplay,omitempty"`
	EnableBehavior  EnableBehavior  `json:"enableBehavior,omitempty"`
	Triggers        []Trigger       `json:"triggers,omitempty"`
}

// IsDateKind reports whether the field holds a calendar date.
func (f *FieldConfig) IsDateKind() bool {
	return f.InputType == "date" || f.InputType == "dateTime"
}

func (f *FieldConfig) hiddenWhenDisabled() bool {
	return f.DisabledDisplay != DisplayDisabled
}

// FieldMap is one repetition's fields keyed by field key.
type FieldMap map[string]*FieldConfig

// LinkID identifies a section. Array sections carry one id per repetition.
type LinkID struct {
	IDs   []string
	Array bool
}

// SingleLinkID builds a plain section id.
func SingleLinkID(id string) LinkID { return LinkID{IDs: []string{id}} }

// ArrayLinkID builds a repeating section id list.
func ArrayLinkID(ids ...string) LinkID { return LinkID{IDs: ids, Array: true} }

// Resolve picks the id for a repetition. Without an index, or with an index
// outside the list, every id is returned.
func (l LinkID) Resolve(index ...int) []string {
	if l.Array && len(index) > 0 && index[0] >= 0 && index[0] < len(l.IDs) {
		return []string{l.IDs[index[0]]}
	}
	return l.IDs
}

func (l LinkID) String() string {
	if !l.Array && len(l.IDs) == 1 {
		return l.IDs[0]
	}
	return fmt.Sprintf("%v", l.IDs)
}

func (l LinkID) MarshalJSON() ([]byte, error) {
	if l.Array {
		return json.Marshal(l.IDs)
	}
	if len(l.IDs) == 0 {
		return json.Marshal("")
	}
	return json.Marshal(l.IDs[0])
}

func (l *LinkID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		l.Array = true
		return json.Unmarshal(data, &l.IDs)
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("linkId: %w", err)
	}
	l.IDs = []string{s}
	l.Array = false
	return nil
}

// SectionItems holds either one field map or an ordered list of field maps,
// one per repetition of an array section.
type SectionItems struct {
	Single   FieldMap
	Repeated []FieldMap
}

func (s SectionItems) MarshalJSON() ([]byte, error) {
	if s.Repeated != nil {
		return json.Marshal(s.Repeated)
	}
	return json.Marshal(s.Single)
}

func (s *SectionItems) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, &s.Repeated)
	}
	return json.Unmarshal(data, &s.Single)
}

// RequiredKeys is either a flat key list or one key list per repetition.
type RequiredKeys struct {
	Flat    []string
	Indexed [][]string
}

// For returns the unconditional required keys for a repetition.
func (r RequiredKeys) For(index int) []string {
	if r.Indexed != nil {
		if index >= 0 && index < len(r.Indexed) {
			return r.Indexed[index]
		}
		return nil
	}
	return r.Flat
}

func (r RequiredKeys) MarshalJSON() ([]byte, error) {
	if r.Indexed != nil {
		return json.Marshal(r.Indexed)
	}
	if r.Flat == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.Flat)
}

func (r *RequiredKeys) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("requiredFields: %w", err)
	}
	if len(raw) > 0 && bytes.HasPrefix(bytes.TrimSpace(raw[0]), []byte("[")) {
		return json.Unmarshal(data, &r.Indexed)
	}
	return json.Unmarshal(data, &r.Flat)
}

// FormSection groups fields and may repeat.
type FormSection struct {
	Title          string         `json:"title"`
	LinkID         LinkID         `json:"linkId"`
	Items          SectionItems   `json:"items"`
	HiddenFields   []string       `json:"hiddenFields,omitempty"`
	RequiredFields RequiredKeys   `json:"requiredFields,omitempty"`
	Triggers       []Trigger      `json:"triggers,omitempty"`
	EnableBehavior EnableBehavior `json:"enableBehavior,omitempty"`
}

// ErrSectionShape is returned when section items are read inconsistently with
// how the section is declared.
var ErrSectionShape = errors.New("section items do not match section shape")

// IsArray reports whether the section repeats.
func (s *FormSection) IsArray() bool {
	return s.LinkID.Array
}

// Repetitions returns how many field maps the section declares.
func (s *FormSection) Repetitions() int {
	if s.IsArray() {
		return len(s.Items.Repeated)
	}
	return 1
}

// Fields returns the field map for a repetition. Array sections must be read
// with an index; single sections accept no index or index 0.
func (s *FormSection) Fields(index ...int) (FieldMap, error) {
	if s.IsArray() {
		if len(index) == 0 {
			return nil, fmt.Errorf("%w: %s is an array section and needs a repetition index", ErrSectionShape, s.LinkID)
		}
		if index[0] < 0 || index[0] >= len(s.Items.Repeated) {
			return nil, fmt.Errorf("%w: %s has no repetition %d", ErrSectionShape, s.LinkID, index[0])
		}
		return s.Items.Repeated[index[0]], nil
	}
	if len(index) > 0 && index[0] != 0 {
		return nil, fmt.Errorf("%w: %s is not an array section", ErrSectionShape, s.LinkID)
	}
	if s.Items.Single == nil {
		return nil, fmt.Errorf("%w: %s has no items", ErrSectionShape, s.LinkID)
	}
	return s.Items.Single, nil
}

// IsFieldHidden reports whether key is in the section's static hidden list.
func (s *FormSection) IsFieldHidden(key string) bool {
	for _, k := range s.HiddenFields {
		if k == key {
			return true
		}
	}
	return false
}

// EvaluationResult is the outcome of evaluating one field's triggers.
// Enabled is nil when no enable trigger expressed an opinion.
type EvaluationResult struct {
	Required       bool    `json:"required"`
	Enabled        *bool   `json:"enabled"`
	SubstituteText *string `json:"substituteText,omitempty"`
}

// IsEnabled treats "no opinion" as enabled.
func (r EvaluationResult) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// IsDisabled reports an explicit false from the enable triggers.
func (r EvaluationResult) IsDisabled() bool {
	return r.Enabled != nil && !*r.Enabled
}

// ErrorType tags a field validation failure.
type ErrorType string

const (
	ErrorRequired ErrorType = "required"
	ErrorPattern  ErrorType = "pattern"
	ErrorValidate ErrorType = "validate"
)

// FieldError is one entry of the resolver's error map.
type FieldError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
}

// RenderedSectionCounts maps a section linkId to how many repetitions are
// currently rendered.
type RenderedSectionCounts map[string]int

func boolPtr(b bool) *bool { return &b }
