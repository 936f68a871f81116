package listfilter

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

type boundKind int

const (
	boundOpen boundKind = iota
	boundValue
	boundOffset
)

// Bound is one end of a range lookup: an absolute value, an offset relative
// to the current time, or Open.
type Bound struct {
	kind   boundKind
	value  any
	offset time.Duration
}

// Open leaves a side of the range unconstrained.
var Open = Bound{}

// Value is an absolute bound, e.g. Value(1000) or Value("2020-01-01").
func Value(v any) Bound {
	if v == nil {
		return Open
	}
	return Bound{kind: boundValue, value: v}
}

// Offset is a bound relative to the clock when the factory is built. A range
// with any Offset bound filters on calendar dates.
func Offset(d time.Duration) Bound {
	return Bound{kind: boundOffset, offset: d}
}

// Days is shorthand for Offset(n * 24h).
func Days(n int) Bound {
	return Offset(time.Duration(n) * 24 * time.Hour)
}

// Lookup is one labelled range; Start is inclusive, Stop exclusive.
type Lookup struct {
	Label string
	Start Bound
	Stop  Bound
}

// Range builds a Lookup.
func Range(label string, start, stop Bound) Lookup {
	return Lookup{Label: label, Start: start, Stop: stop}
}

type options struct {
	nullable bool
	title    string
	now      func() time.Time
}

// Option configures a filter factory.
type Option func(*options)

// Nullable appends an "Unknown" choice selecting null values.
func Nullable(nullable bool) Option {
	return func(o *options) { o.nullable = nullable }
}

// Title replaces the field's default display title.
func Title(title string) Option {
	return func(o *options) { o.title = title }
}

// WithClock sets the clock relative bounds are resolved against.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type resolvedLookup struct {
	label string
	start string
	stop  string
	hasLo bool
	hasHi bool
}

// MakeRange returns a factory for filters with one choice per lookup, preceded
// by "Any" and, when Nullable, followed by "Unknown".
//
// Offset bounds are resolved here, once, against the configured clock; every
// filter the factory builds shares the frozen values.
//
//	listfilter.MakeRange([]listfilter.Lookup{
//		listfilter.Range("Less than 1000", listfilter.Open, listfilter.Value(1000)),
//		listfilter.Range("1K to 5K", listfilter.Value(1000), listfilter.Value(5000)),
//		listfilter.Range("At least 5K", listfilter.Value(5000), listfilter.Open),
//	}, listfilter.Nullable(true))
func MakeRange(lookups []Lookup, opts ...Option) Factory {
	o := buildOptions(opts)
	now := o.now()

	resolved := make([]resolvedLookup, 0, len(lookups))
	for _, l := range lookups {
		dateBased := l.Start.kind == boundOffset || l.Stop.kind == boundOffset
		r := resolvedLookup{label: l.Label}
		r.start, r.hasLo = resolveBound(l.Start, now, dateBased)
		r.stop, r.hasHi = resolveBound(l.Stop, now, dateBased)
		resolved = append(resolved, r)
	}

	return func(field Field, params map[string]string) ListFilter {
		f := newLinkFilter(field, params, o.title)
		f.links = append(f.links, link{display: "Any", params: map[string]string{}})
		for _, r := range resolved {
			p := map[string]string{}
			if r.hasLo {
				p[field.Path+suffixGte] = r.start
			}
			if r.hasHi {
				p[field.Path+suffixLt] = r.stop
			}
			f.links = append(f.links, link{display: r.label, params: p})
		}
		if o.nullable {
			f.links = append(f.links, link{
				display: "Unknown",
				params:  map[string]string{field.Path + suffixIsNull: "True"},
			})
		}
		return f
	}
}

func resolveBound(b Bound, now time.Time, dateBased bool) (string, bool) {
	switch b.kind {
	case boundOffset:
		return now.Add(b.offset).Format(dateLayout), true
	case boundValue:
		if t, ok := b.value.(time.Time); ok {
			if dateBased {
				return t.Format(dateLayout), true
			}
			return t.Format(time.RFC3339), true
		}
		return fmt.Sprint(b.value), true
	default:
		return "", false
	}
}
