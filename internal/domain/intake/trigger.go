package intake

import (
	"strings"
)

// Evaluate reduces a field's triggers against the current values.
//
// Each trigger contributes one unit per declared effect, in order. Enable
// units combine according to behavior, require units OR together, and the
// last met sub-text unit supplies the substitute label.
func (e *Engine) Evaluate(field *FieldConfig, values FormValues, behavior EnableBehavior) EvaluationResult {
	if field == nil || len(field.Triggers) == 0 {
		return EvaluationResult{Enabled: boolPtr(true)}
	}
	behavior = behavior.orDefault()

	var res EvaluationResult
	for i := range field.Triggers {
		t := &field.Triggers[i]
		met := e.conditionMet(field.Key, t, values)
		for _, effect := range t.Effects {
			switch effect {
			case EffectEnable:
				res.Enabled = reduceEnabled(res.Enabled, met, behavior)
			case EffectRequire:
				if met {
					res.Required = true
				}
			case EffectSubText:
				if met {
					res.SubstituteText = t.SubstituteText
				}
			}
		}
	}
	return res
}

func reduceEnabled(current *bool, met bool, behavior EnableBehavior) *bool {
	if current == nil {
		return boolPtr(met)
	}
	if met {
		if behavior == EnableAll && !*current {
			return current
		}
		return boolPtr(true)
	}
	if behavior == EnableAll {
		return boolPtr(false)
	}
	return current
}

// lookupTarget finds the trigger's target value. Dotted keys fall back to the
// segment after the last dot when the full key is absent.
func lookupTarget(values FormValues, key string) (any, bool) {
	v, ok := values[key]
	if !ok {
		if i := strings.LastIndex(key, "."); i >= 0 {
			v, ok = values[key[i+1:]]
		}
	}
	return v, ok
}

func (e *Engine) conditionMet(fieldKey string, t *Trigger, values FormValues) bool {
	current, present := lookupTarget(values, t.TargetFieldKey)

	switch t.Operator {
	case OpExists:
		has := present && !isEmptyValue(current)
		if t.AnswerBoolean != nil && *t.AnswerBoolean {
			return has
		}
		return !has
	case OpEqual:
		return strictEqual(current, present, t.answer())
	case OpNotEqual:
		return !strictEqual(current, present, t.answer())
	case OpGreater, OpLess, OpGreaterEqual, OpLessEqual:
		return compareDates(t.Operator, current, t.AnswerDateTime)
	default:
		e.logger.Warn().
			Str("field", fieldKey).
			Str("target", t.TargetFieldKey).
			Str("operator", string(t.Operator)).
			Msg("unknown trigger operator")
		e.metrics.UnknownOperator(string(t.Operator))
		return false
	}
}

func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// strictEqual compares without coercion: a string never equals a boolean.
// A trigger without an answer matches only an absent value.
func strictEqual(current any, present bool, answer any) bool {
	switch a := answer.(type) {
	case nil:
		return !present
	case bool:
		b, ok := current.(bool)
		return ok && b == a
	case string:
		s, ok := current.(string)
		return ok && s == a
	}
	return false
}

func compareDates(op Operator, current any, answer *string) bool {
	if answer == nil || isEmptyValue(current) {
		return false
	}
	got, ok := parseDate(current)
	if !ok {
		return false
	}
	want, ok := parseDate(*answer)
	if !ok {
		return false
	}
	switch op {
	case OpGreater:
		return got.After(want)
	case OpLess:
		return got.Before(want)
	case OpGreaterEqual:
		return !got.Before(want)
	case OpLessEqual:
		return !got.After(want)
	}
	return false
}
