package forms

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/adonese/adminutils/apperr"
	"github.com/go-playground/validator/v10"
)

// CheckboxValue reads a checkbox from submitted form data. A missing key is
// false, the literals "true" and "false" are honoured and any other non-empty
// value is true.
func CheckboxValue(raw url.Values, name string) bool {
	values, ok := raw[name]
	if !ok || len(values) == 0 {
		return false
	}
	switch strings.ToLower(values[0]) {
	case "true":
		return true
	case "false", "":
		return false
	}
	return true
}

// TextCleaner returns the trimmed submitted string.
type TextCleaner struct{}

func (TextCleaner) Clean(_ context.Context, name string, raw url.Values, _ PriorFunc) (any, error) {
	return strings.TrimSpace(raw.Get(name)), nil
}

// IntCleaner parses an integer; an empty submission is nil.
type IntCleaner struct{}

func (IntCleaner) Clean(_ context.Context, name string, raw url.Values, _ PriorFunc) (any, error) {
	s := strings.TrimSpace(raw.Get(name))
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, apperr.Invalid(name, "enter a whole number")
	}
	return n, nil
}

// BoolCleaner reads a checkbox.
type BoolCleaner struct{}

func (BoolCleaner) Clean(_ context.Context, name string, raw url.Values, _ PriorFunc) (any, error) {
	return CheckboxValue(raw, name), nil
}

// ForeignKeyCleaner parses a primary key; an empty submission is nil.
type ForeignKeyCleaner struct{}

func (ForeignKeyCleaner) Clean(_ context.Context, name string, raw url.Values, _ PriorFunc) (any, error) {
	s := strings.TrimSpace(raw.Get(name))
	if s == "" {
		return nil, nil
	}
	pk, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, apperr.Invalid(name, "select a valid choice")
	}
	return uint(pk), nil
}

// TimeCleaner accepts RFC3339 or "2006-01-02 15:04:05"; empty is nil.
type TimeCleaner struct{}

func (TimeCleaner) Clean(_ context.Context, name string, raw url.Values, _ PriorFunc) (any, error) {
	s := strings.TrimSpace(raw.Get(name))
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return nil, apperr.Invalid(name, "enter a valid date/time")
}

// DefaultCleaner picks a cleaner for a field kind.
func DefaultCleaner(kind Kind) Cleaner {
	switch kind {
	case KindInt:
		return IntCleaner{}
	case KindBool:
		return BoolCleaner{}
	case KindTime:
		return TimeCleaner{}
	case KindForeignKey:
		return ForeignKeyCleaner{}
	default:
		return TextCleaner{}
	}
}

// Clean runs every field's cleaner and rules over raw. prior supplies the
// stored-value lookup of a field, or nil when there is none. All field errors
// are reported together as one validation error.
func (f *Form) Clean(ctx context.Context, raw url.Values, prior func(name string) PriorFunc) (map[string]any, error) {
	cleaned := make(map[string]any, len(f.order))
	var errs []error
	for _, field := range f.Fields() {
		cleaner := field.Cleaner
		if cleaner == nil {
			cleaner = DefaultCleaner(field.Kind)
		}
		var lookup PriorFunc
		if prior != nil {
			lookup = prior(field.Name)
		}
		value, err := cleaner.Clean(ctx, field.Name, raw, lookup)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := field.check(value); err != nil {
			errs = append(errs, err)
			continue
		}
		cleaned[field.Name] = value
	}
	if len(errs) == 0 {
		return cleaned, nil
	}
	fields, err := apperr.FieldErrors(errs...)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return nil, apperr.WithFields(apperr.ErrValidation, out)
}

func (field *Field) check(value any) error {
	if field.Required && isEmpty(value) {
		return apperr.Invalid(field.Name, "this field is required")
	}
	if field.Rules == "" || value == nil {
		return nil
	}
	if err := Validator().Var(value, field.Rules); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return apperr.Invalid(field.Name, ErrorToString(verrs[0]))
		}
		return apperr.Invalid(field.Name, err.Error())
	}
	return nil
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	}
	return false
}
