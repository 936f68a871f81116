package forms

import (
	"fmt"
	"html/template"
	"reflect"
	"sort"
	"strings"
	"time"
)

// Attrs are extra HTML attributes rendered on an input.
type Attrs map[string]string

func (a Attrs) render() string {
	if len(a) == 0 {
		return ""
	}
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, ` %s="%s"`, template.HTMLEscapeString(k), template.HTMLEscapeString(a[k]))
	}
	return b.String()
}

// TextInput renders <input type="text">.
type TextInput struct {
	Attrs Attrs
}

func (w TextInput) Render(name string, value any) (template.HTML, error) {
	return renderInput("text", name, formatValue(value), w.Attrs), nil
}

// NumberInput renders <input type="number">.
type NumberInput struct {
	Attrs Attrs
}

func (w NumberInput) Render(name string, value any) (template.HTML, error) {
	return renderInput("number", name, formatValue(value), w.Attrs), nil
}

// CheckboxInput renders a checkbox checked for any value except false, nil
// and the empty string.
type CheckboxInput struct {
	Attrs Attrs
}

func (w CheckboxInput) Render(name string, value any) (template.HTML, error) {
	checked := ""
	if IsChecked(value) {
		checked = ` checked`
	}
	return template.HTML(fmt.Sprintf(`<input type="checkbox" name="%s" id="id_%s"%s%s>`,
		template.HTMLEscapeString(name), template.HTMLEscapeString(name), checked, w.Attrs.render())), nil
}

// IsChecked reports whether a stored value should tick a checkbox.
func IsChecked(value any) bool {
	if value == nil {
		return false
	}
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v != ""
	case time.Time:
		return !v.IsZero()
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Ptr {
		return !rv.IsNil()
	}
	return true
}

// Option is one entry of a select widget.
type Option struct {
	Value string
	Label string
}

// Select renders a single-choice <select> with an optional add-related link.
type Select struct {
	Options    []Option
	AddURL     string
	Multiple   bool
	canAddRel  bool
	addRelInit bool
}

func (w *Select) SetCanAddRelated(v bool) {
	w.canAddRel = v
	w.addRelInit = true
}

// CanAddRelated defaults to true when an AddURL is configured.
func (w *Select) CanAddRelated() bool {
	if !w.addRelInit {
		return w.AddURL != ""
	}
	return w.canAddRel && w.AddURL != ""
}

func (w *Select) AllowsMultiple() bool { return w.Multiple }

// Clone returns a copy whose add-related state can change independently.
func (w *Select) Clone() *Select {
	c := *w
	c.Options = append([]Option(nil), w.Options...)
	return &c
}

func (w *Select) Render(name string, value any) (template.HTML, error) {
	selected := map[string]bool{}
	switch v := value.(type) {
	case []string:
		for _, s := range v {
			selected[s] = true
		}
	case nil:
	default:
		selected[formatValue(v)] = true
	}

	var b strings.Builder
	multiple := ""
	if w.Multiple {
		multiple = " multiple"
	}
	fmt.Fprintf(&b, `<select name="%s" id="id_%s"%s>`, template.HTMLEscapeString(name), template.HTMLEscapeString(name), multiple)
	for _, opt := range w.Options {
		sel := ""
		if selected[opt.Value] {
			sel = ` selected="selected"`
		}
		fmt.Fprintf(&b, `<option value="%s"%s>%s</option>`,
			template.HTMLEscapeString(opt.Value), sel, template.HTMLEscapeString(opt.Label))
	}
	b.WriteString(`</select>`)
	if w.CanAddRelated() {
		fmt.Fprintf(&b, `<a class="related-widget-wrapper-link add-related" href="%s">+</a>`, template.HTMLEscapeString(w.AddURL))
	}
	return template.HTML(b.String()), nil
}

func renderInput(typ, name, value string, attrs Attrs) template.HTML {
	return template.HTML(fmt.Sprintf(`<input type="%s" name="%s" id="id_%s" value="%s"%s>`,
		typ,
		template.HTMLEscapeString(name),
		template.HTMLEscapeString(name),
		template.HTMLEscapeString(value),
		attrs.render()))
}

func formatValue(value any) string {
	if value == nil {
		return ""
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return ""
		}
		value = rv.Elem().Interface()
	}
	if t, ok := value.(time.Time); ok {
		return t.Format("2006-01-02 15:04:05")
	}
	return fmt.Sprint(value)
}
