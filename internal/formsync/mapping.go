package formsync

import (
	"reflect"
	"strings"

	"github.com/pilab-dev/airform/domain"
)

// Validate checks that every required binding has a non-empty answer.
func Validate(form *domain.Form, answers map[string]any) error {
	for _, b := range form.Fields {
		if !b.Required {
			continue
		}
		if v, ok := answers[b.ExternalFieldID]; !ok || isEmpty(v) {
			return &ValidationError{FieldID: b.ExternalFieldID, FieldName: fieldName(b)}
		}
	}
	return nil
}

// MapAnswers translates answers keyed by field id into the Airtable fields
// payload keyed by field name. Answers without a binding and empty optional
// answers are dropped.
func MapAnswers(form *domain.Form, answers map[string]any) map[string]any {
	fields := make(map[string]any, len(form.Fields))
	for _, b := range form.Fields {
		v, ok := answers[b.ExternalFieldID]
		if !ok || isEmpty(v) {
			continue
		}
		fields[fieldName(b)] = v
	}
	return fields
}

func fieldName(b domain.FieldBinding) string {
	if b.ExternalFieldName != "" {
		return b.ExternalFieldName
	}
	return b.ExternalFieldID
}

// isEmpty treats nil, blank strings and empty collections as missing.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
