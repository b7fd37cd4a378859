package intake

import (
	"fmt"
	"sort"
	"strings"
)

// LintIssue is a problem found by static analysis of a form config.
type LintIssue struct {
	Severity string `json:"severity"` // "error" or "warning"
	Section  string `json:"section,omitempty"`
	Field    string `json:"field,omitempty"`
	Message  string `json:"message"`
}

// LintResult lists every issue; Valid is false when any issue is an error.
type LintResult struct {
	Valid  bool        `json:"valid"`
	Issues []LintIssue `json:"issues"`
}

func (r *LintResult) addError(section, field, msg string) {
	r.Valid = false
	r.Issues = append(r.Issues, LintIssue{Severity: "error", Section: section, Field: field, Message: msg})
}

func (r *LintResult) addWarning(section, field, msg string) {
	r.Issues = append(r.Issues, LintIssue{Severity: "warning", Section: section, Field: field, Message: msg})
}

// Lint inspects a form config without evaluating it.
func Lint(cfg *FormConfig) *LintResult {
	result := &LintResult{Valid: true, Issues: make([]LintIssue, 0)}

	// Every field key, with the sections that declare it.
	owners := make(map[string][]string)
	for _, sk := range cfg.order {
		s := cfg.sections[sk]
		for i := 0; i < s.Repetitions(); i++ {
			fields, err := sectionFields(s, i)
			if err != nil {
				result.addError(sk, "", err.Error())
				continue
			}
			for fk := range fields {
				owners[fk] = append(owners[fk], sk)
			}
		}
	}

	dupes := make([]string, 0)
	for fk, secs := range owners {
		if len(secs) > 1 {
			dupes = append(dupes, fk)
		}
	}
	sort.Strings(dupes)
	for _, fk := range dupes {
		result.addError("", fk, fmt.Sprintf("field key declared %d times (sections: %s)",
			len(owners[fk]), strings.Join(owners[fk], ", ")))
	}

	for _, sk := range cfg.order {
		s := cfg.sections[sk]
		lintTriggers(result, owners, sk, "", s.Triggers)

		for _, hk := range s.HiddenFields {
			if !sectionDeclares(s, hk) {
				result.addWarning(sk, hk, "hidden field is not declared in this section")
			}
		}
		for i := 0; i < s.Repetitions(); i++ {
			for _, rk := range s.RequiredFields.For(i) {
				if !sectionDeclares(s, rk) {
					result.addWarning(sk, rk, "required field is not declared in this section")
				}
			}
			fields, err := sectionFields(s, i)
			if err != nil {
				continue
			}
			for _, fk := range sortedKeys(fields) {
				lintTriggers(result, owners, sk, fk, fields[fk].Triggers)
			}
		}
	}
	return result
}

func lintTriggers(result *LintResult, owners map[string][]string, section, field string, triggers []Trigger) {
	for i, t := range triggers {
		where := fmt.Sprintf("trigger %d", i)
		if !t.Operator.Valid() {
			result.addWarning(section, field, fmt.Sprintf("%s: unknown operator %q is never met", where, t.Operator))
		}
		if _, ok := owners[t.TargetFieldKey]; !ok {
			target := t.TargetFieldKey
			if j := strings.LastIndex(target, "."); j >= 0 {
				target = target[j+1:]
			}
			if _, ok := owners[target]; !ok {
				result.addWarning(section, field, fmt.Sprintf("%s: target %q matches no field", where, t.TargetFieldKey))
			}
		}
		if t.Operator.IsOrdering() && t.AnswerDateTime == nil {
			result.addWarning(section, field, fmt.Sprintf("%s: operator %q needs answerDateTime", where, t.Operator))
		}
		for _, effect := range t.Effects {
			if !effect.Valid() {
				result.addError(section, field, fmt.Sprintf("%s: unknown effect %q", where, effect))
			}
			if effect == EffectSubText && t.SubstituteText == nil {
				result.addWarning(section, field, fmt.Sprintf("%s: sub-text effect without substituteText", where))
			}
		}
	}
}

func sectionDeclares(s *FormSection, key string) bool {
	for i := 0; i < s.Repetitions(); i++ {
		fields, err := sectionFields(s, i)
		if err != nil {
			continue
		}
		if _, ok := fields[key]; ok {
			return true
		}
	}
	return false
}
