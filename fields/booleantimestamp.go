// Package fields holds admin form fields and widgets with non-trivial
// behaviour: a checkbox backed by a nullable timestamp and a tag picker.
package fields

import (
	"context"
	"fmt"
	"html/template"
	"net/url"
	"time"

	"github.com/adonese/adminutils/apperr"
	"github.com/adonese/adminutils/forms"
)

// DisplayLayout is how a stored timestamp is shown next to its checkbox.
const DisplayLayout = "15:04:05 02/01/2006"

// PriorLookup returns the timestamp currently stored on the record being
// saved, or nil when it is null or the record does not exist yet.
type PriorLookup func(ctx context.Context) (*time.Time, error)

// BooleanTimestamp stores a nullable timestamp edited through a checkbox.
// Ticking the box records the save time; re-saving keeps the original time;
// unticking clears it.
type BooleanTimestamp struct {
	Name string
	Now  func() time.Time
}

// Clean applies the checkbox transition to the stored value:
//
//	prior    checked   result
//	null     yes       now
//	null     no        validation error
//	set      yes       prior (unchanged)
//	set      no        null
func (f BooleanTimestamp) Clean(ctx context.Context, checked bool, prior PriorLookup) (*time.Time, error) {
	var saved *time.Time
	if prior != nil {
		var err error
		if saved, err = prior(ctx); err != nil {
			return nil, err
		}
	}

	switch {
	case checked && saved == nil:
		now := f.now()
		return &now, nil
	case checked:
		return saved, nil
	case saved != nil:
		return nil, nil
	default:
		return nil, apperr.Invalid(f.Name, "cannot clear a value that was never set")
	}
}

func (f BooleanTimestamp) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now().UTC()
}

// FormCleaner adapts f to forms.Cleaner.
func (f BooleanTimestamp) FormCleaner() forms.Cleaner {
	return timestampCleaner{field: f}
}

type timestampCleaner struct {
	field BooleanTimestamp
}

func (c timestampCleaner) Clean(ctx context.Context, name string, raw url.Values, prior forms.PriorFunc) (any, error) {
	field := c.field
	if field.Name == "" {
		field.Name = name
	}
	var lookup PriorLookup
	if prior != nil {
		lookup = func(ctx context.Context) (*time.Time, error) {
			v, err := prior(ctx)
			if err != nil {
				return nil, err
			}
			return asTime(v)
		}
	}
	t, err := field.Clean(ctx, forms.CheckboxValue(raw, name), lookup)
	if err != nil || t == nil {
		return nil, err
	}
	return *t, nil
}

func asTime(v any) (*time.Time, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case *time.Time:
		return t, nil
	case time.Time:
		if t.IsZero() {
			return nil, nil
		}
		return &t, nil
	}
	return nil, fmt.Errorf("stored value %T is not a timestamp", v)
}

// BooleanTimestampWidget renders a checkbox followed by its label and, when
// set, the stored timestamp.
type BooleanTimestampWidget struct {
	forms.CheckboxInput
	Label string
}

func (w BooleanTimestampWidget) Render(name string, value any) (template.HTML, error) {
	box, err := w.CheckboxInput.Render(name, value)
	if err != nil {
		return "", err
	}
	// After a failed submit the value is still the raw bool, so only a
	// real timestamp gets printed.
	t, _ := asTime(value)
	if _, isBool := value.(bool); !isBool && t != nil {
		return template.HTML(fmt.Sprintf(`%s<span class="vCheckboxLabel">%s: %s</span>`,
			box, template.HTMLEscapeString(w.Label), t.Format(DisplayLayout))), nil
	}
	return template.HTML(fmt.Sprintf(`%s<span class="vCheckboxLabel">%s</span>`,
		box, template.HTMLEscapeString(w.Label))), nil
}
