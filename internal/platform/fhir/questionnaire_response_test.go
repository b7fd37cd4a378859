package fhir

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestQuestionnaireResponse_Answers(t *testing.T) {
	body := `{
	  "resourceType": "QuestionnaireResponse",
	  "status": "completed",
	  "item": [
	    {"linkId": "demographics", "item": [
	      {"linkId": "first-name", "answer": [{"valueString": "Ada"}]},
	      {"linkId": "dob", "answer": [{"valueDate": "1980-04-12"}]},
	      {"linkId": "unanswered"}
	    ]},
	    {"linkId": "is-guarantor", "answer": [{"valueBoolean": false}]},
	    {"linkId": "payment-method", "answer": [{"valueCoding": {"system": "urn:payment", "code": "Self-pay", "display": "Self pay"}}]},
	    {"linkId": "visits", "answer": [{"valueInteger": 3}]},
	    {"linkId": "weight", "answer": [{"valueDecimal": 61.5}]},
	    {"linkId": "languages", "answer": [{"valueString": "en"}, {"valueString": "fr"}]},
	    {"linkId": "has-allergies", "answer": [{"valueBoolean": true, "item": [
	      {"linkId": "allergy", "answer": [{"valueString": "penicillin"}]}
	    ]}]}
	  ]
	}`

	var qr QuestionnaireResponse
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&qr); err != nil {
		t.Fatal(err)
	}
	got, err := qr.Answers()
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]any{
		"first-name":     "Ada",
		"dob":            "1980-04-12",
		"is-guarantor":   false,
		"payment-method": "Self-pay",
		"visits":         int64(3),
		"weight":         61.5,
		"languages":      []any{"en", "fr"},
		"has-allergies":  true,
		"allergy":        "penicillin",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("answers = %#v\nwant %#v", got, want)
	}
	if _, ok := got["unanswered"]; ok {
		t.Error("items without answers are omitted")
	}
	if _, ok := got["demographics"]; ok {
		t.Error("group items carry no value")
	}
}

func TestQuestionnaireResponse_AnswersErrors(t *testing.T) {
	wrong := &QuestionnaireResponse{ResourceType: "Patient"}
	if _, err := wrong.Answers(); err == nil {
		t.Error("expected an error for the wrong resource type")
	}

	s := "x"
	noLink := &QuestionnaireResponse{Item: []QuestionnaireResponseItem{
		{LinkID: "group", Item: []QuestionnaireResponseItem{{Answer: []QuestionnaireResponseAnswer{{ValueString: &s}}}}},
	}}
	if _, err := noLink.Answers(); err == nil {
		t.Error("expected an error for a nested item without linkId")
	}

	bare := &QuestionnaireResponse{}
	got, err := bare.Answers()
	if err != nil || len(got) != 0 {
		t.Errorf("empty response: %v %v", got, err)
	}
}

func TestAnswerValue(t *testing.T) {
	s := "text"
	uri := "https://example.org"
	tm := "08:30:00"
	dt := "2026-01-02T10:00:00Z"
	big := json.Number("1e400")
	notInt := json.Number("2.5")

	tests := []struct {
		name   string
		answer QuestionnaireResponseAnswer
		want   any
	}{
		{"string", QuestionnaireResponseAnswer{ValueString: &s}, "text"},
		{"uri", QuestionnaireResponseAnswer{ValueURI: &uri}, uri},
		{"time", QuestionnaireResponseAnswer{ValueTime: &tm}, tm},
		{"dateTime", QuestionnaireResponseAnswer{ValueDateTime: &dt}, dt},
		{"integer that is not an int", QuestionnaireResponseAnswer{ValueInteger: &notInt}, "2.5"},
		{"decimal out of range", QuestionnaireResponseAnswer{ValueDecimal: &big}, "1e400"},
		{"empty", QuestionnaireResponseAnswer{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.answer.Value(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Value() = %#v, want %#v", got, tt.want)
			}
		})
	}
}
