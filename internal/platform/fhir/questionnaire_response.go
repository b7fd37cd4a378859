package fhir

import (
	"encoding/json"
	"fmt"
)

// QuestionnaireResponse carries only what answer extraction needs.
type QuestionnaireResponse struct {
	ResourceType string                      `json:"resourceType"`
	ID           string                      `json:"id,omitempty"`
	Status       string                      `json:"status,omitempty"`
	Item         []QuestionnaireResponseItem `json:"item,omitempty"`
}

type QuestionnaireResponseItem struct {
	LinkID string                        `json:"linkId"`
	Text   string                        `json:"text,omitempty"`
	Answer []QuestionnaireResponseAnswer `json:"answer,omitempty"`
	Item   []QuestionnaireResponseItem   `json:"item,omitempty"`
}

// QuestionnaireResponseAnswer holds one answer. Exactly one value[x] is set.
type QuestionnaireResponseAnswer struct {
	ValueBoolean  *bool                       `json:"valueBoolean,omitempty"`
	ValueDecimal  *json.Number                `json:"valueDecimal,omitempty"`
	ValueInteger  *json.Number                `json:"valueInteger,omitempty"`
	ValueDate     *string                     `json:"valueDate,omitempty"`
	ValueDateTime *string                     `json:"valueDateTime,omitempty"`
	ValueTime     *string                     `json:"valueTime,omitempty"`
	ValueString   *string                     `json:"valueString,omitempty"`
	ValueURI      *string                     `json:"valueUri,omitempty"`
	ValueCoding   *Coding                     `json:"valueCoding,omitempty"`
	Item          []QuestionnaireResponseItem `json:"item,omitempty"`
}

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

// Value returns the answer's value[x]. Codings yield their code, numbers a
// float64 or int64.
func (a QuestionnaireResponseAnswer) Value() any {
	switch {
	case a.ValueBoolean != nil:
		return *a.ValueBoolean
	case a.ValueString != nil:
		return *a.ValueString
	case a.ValueDate != nil:
		return *a.ValueDate
	case a.ValueDateTime != nil:
		return *a.ValueDateTime
	case a.ValueTime != nil:
		return *a.ValueTime
	case a.ValueURI != nil:
		return *a.ValueURI
	case a.ValueCoding != nil:
		return a.ValueCoding.Code
	case a.ValueInteger != nil:
		if n, err := a.ValueInteger.Int64(); err == nil {
			return n
		}
		return a.ValueInteger.String()
	case a.ValueDecimal != nil:
		if f, err := a.ValueDecimal.Float64(); err == nil {
			return f
		}
		return a.ValueDecimal.String()
	}
	return nil
}

// Answers flattens the response into linkId → value. Items without answers
// are omitted, a single answer is stored as-is and several answers as a
// slice. Nested items, including items under answers, are flattened too.
func (qr *QuestionnaireResponse) Answers() (map[string]any, error) {
	if qr.ResourceType != "" && qr.ResourceType != "QuestionnaireResponse" {
		return nil, fmt.Errorf("expected resourceType QuestionnaireResponse, got %s", qr.ResourceType)
	}
	out := make(map[string]any)
	if err := collectAnswers(qr.Item, out); err != nil {
		return nil, err
	}
	return out, nil
}

func collectAnswers(items []QuestionnaireResponseItem, out map[string]any) error {
	for _, item := range items {
		if item.LinkID == "" {
			return fmt.Errorf("questionnaire response item without linkId")
		}
		switch len(item.Answer) {
		case 0:
		case 1:
			out[item.LinkID] = item.Answer[0].Value()
		default:
			vals := make([]any, 0, len(item.Answer))
			for _, a := range item.Answer {
				vals = append(vals, a.Value())
			}
			out[item.LinkID] = vals
		}
		for _, a := range item.Answer {
			if err := collectAnswers(a.Item, out); err != nil {
				return err
			}
		}
		if err := collectAnswers(item.Item, out); err != nil {
			return err
		}
	}
	return nil
}
