// Package listfilter provides changelist filters whose choices are computed
// from a declarative description: value ranges, relative date windows and
// null checks. Each filter reports the query parameters it owns and can apply
// them to a gorm query.
package listfilter

import (
	"maps"
	"strings"

	"gorm.io/gorm"
)

const (
	suffixGte    = "__gte"
	suffixLt     = "__lt"
	suffixIsNull = "__isnull"
)

// Field identifies the model column a filter narrows.
type Field struct {
	// Path is the column name used to build lookup keys, e.g. "word_count".
	Path string
	// Title is the default display title, usually the verbose field name.
	Title string
}

// Choice is one selectable entry of a rendered filter.
type Choice struct {
	Selected    bool   `json:"selected"`
	QueryString string `json:"query_string"`
	Display     string `json:"display"`
}

// ListFilter is built once per request from the incoming lookup params.
type ListFilter interface {
	Title() string
	ExpectedParameters() []string
	Choices(cl *ChangeList) []Choice
	Apply(db *gorm.DB) (*gorm.DB, error)
}

// Factory builds a ListFilter for a field from the active lookup params.
type Factory func(field Field, params map[string]string) ListFilter

type link struct {
	display string
	params  map[string]string
}

// linkFilter is a filter whose choices are a fixed list of param mappings.
type linkFilter struct {
	title    string
	path     string
	generic  string
	active   map[string]string
	used     map[string]string
	links    []link
	expected []string
}

func newLinkFilter(field Field, params map[string]string, title string) *linkFilter {
	f := &linkFilter{
		title:   field.Title,
		path:    field.Path,
		generic: field.Path + "__",
		active:  map[string]string{},
		used:    map[string]string{},
		expected: []string{
			field.Path + suffixGte,
			field.Path + suffixLt,
			field.Path + suffixIsNull,
		},
	}
	if f.title == "" {
		f.title = strings.ReplaceAll(field.Path, "_", " ")
	}
	if title != "" {
		f.title = title
	}
	for k, v := range params {
		if strings.HasPrefix(k, f.generic) {
			f.active[k] = v
		}
	}
	for _, k := range f.expected {
		if v, ok := params[k]; ok {
			f.used[k] = v
		}
	}
	return f
}

func (f *linkFilter) Title() string { return f.title }

func (f *linkFilter) ExpectedParameters() []string {
	return append([]string(nil), f.expected...)
}

func (f *linkFilter) Choices(cl *ChangeList) []Choice {
	out := make([]Choice, 0, len(f.links))
	for _, l := range f.links {
		out = append(out, Choice{
			Selected:    maps.Equal(f.active, l.params),
			QueryString: cl.QueryString(l.params, f.generic),
			Display:     l.display,
		})
	}
	return out
}

func (f *linkFilter) Apply(db *gorm.DB) (*gorm.DB, error) {
	return applyLookups(db, f.path, f.used)
}

type titledFilter struct {
	ListFilter
	title string
}

func (t titledFilter) Title() string { return t.title }

// WithTitle overrides the display title of every filter built by factory.
// An empty title keeps the filter's own.
func WithTitle(factory Factory, title string) Factory {
	return func(field Field, params map[string]string) ListFilter {
		lf := factory(field, params)
		if title == "" {
			return lf
		}
		return titledFilter{ListFilter: lf, title: title}
	}
}
