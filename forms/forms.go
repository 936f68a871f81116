// Package forms describes admin form fields, their widgets and the media a
// page needs to render them.
package forms

import (
	"context"
	"html/template"
	"net/url"
	"sort"
)

// Widget renders the HTML control of a form field.
type Widget interface {
	Render(name string, value any) (template.HTML, error)
}

// RelatedWidget is implemented by widgets that can show an "add related
// object" control next to themselves.
type RelatedWidget interface {
	Widget
	SetCanAddRelated(bool)
	CanAddRelated() bool
}

// MultipleWidget marks widgets that pick several related objects at once.
type MultipleWidget interface {
	Widget
	AllowsMultiple() bool
}

// Kind is the storage kind of a model field, used to pick defaults.
type Kind string

const (
	KindText             Kind = "text"
	KindInt              Kind = "int"
	KindBool             Kind = "bool"
	KindTime             Kind = "time"
	KindForeignKey       Kind = "foreign_key"
	KindManyToMany       Kind = "many_to_many"
	KindBooleanTimestamp Kind = "boolean_timestamp"
)

// PriorFunc reads the value currently stored for a field on the record being
// saved. It returns nil when the record does not exist yet.
type PriorFunc func(ctx context.Context) (any, error)

// Cleaner converts submitted form values into the value stored on the model.
type Cleaner interface {
	Clean(ctx context.Context, name string, raw url.Values, prior PriorFunc) (any, error)
}

// Field is one field of an admin form.
type Field struct {
	// Name is the column the field writes to.
	Name     string
	Label    string
	HelpText string
	Kind     Kind
	Widget   Widget
	Cleaner  Cleaner
	Required bool
	// Rules is a validator tag applied to the cleaned value, e.g. "min=1".
	Rules string
}

// Form is an ordered set of fields keyed by name.
type Form struct {
	BaseFields map[string]*Field
	order      []string
}

// NewForm keeps fields in the order given.
func NewForm(fields ...*Field) *Form {
	f := &Form{BaseFields: make(map[string]*Field, len(fields))}
	for _, field := range fields {
		f.Add(field)
	}
	return f
}

// Add appends field, replacing any existing field with the same name.
func (f *Form) Add(field *Field) {
	if _, ok := f.BaseFields[field.Name]; !ok {
		f.order = append(f.order, field.Name)
	}
	f.BaseFields[field.Name] = field
}

// Fields returns the fields in declaration order.
func (f *Form) Fields() []*Field {
	out := make([]*Field, 0, len(f.order))
	for _, name := range f.order {
		out = append(out, f.BaseFields[name])
	}
	return out
}

// Names returns the field names in declaration order.
func (f *Form) Names() []string {
	return append([]string(nil), f.order...)
}

// Media lists the scripts and stylesheets a page needs.
type Media struct {
	JS  []string            `json:"js"`
	CSS map[string][]string `json:"css"`
}

// Merge returns m with other's assets appended, skipping duplicates.
func (m Media) Merge(other Media) Media {
	out := Media{JS: appendUnique(nil, m.JS...), CSS: map[string][]string{}}
	out.JS = appendUnique(out.JS, other.JS...)
	for _, src := range []map[string][]string{m.CSS, other.CSS} {
		for medium, files := range src {
			out.CSS[medium] = appendUnique(out.CSS[medium], files...)
		}
	}
	return out
}

// Mediums returns the stylesheet media types in sorted order.
func (m Media) Mediums() []string {
	out := make([]string, 0, len(m.CSS))
	for k := range m.CSS {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func appendUnique(dst []string, items ...string) []string {
	for _, it := range items {
		seen := false
		for _, d := range dst {
			if d == it {
				seen = true
				break
			}
		}
		if !seen {
			dst = append(dst, it)
		}
	}
	return dst
}
