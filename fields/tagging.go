package fields

import (
	"context"
	"fmt"
	"html/template"
	"net/url"
	"sort"
	"strings"

	"github.com/adonese/adminutils/forms"
)

// ParseTagInput splits free-form tag input into a sorted, de-duplicated list.
//
// Double-quoted phrases are single tags. Outside quotes, tags are separated
// by commas when any unquoted comma is present, otherwise by spaces.
func ParseTagInput(input string) []string {
	if strings.TrimSpace(input) == "" {
		return []string{}
	}
	if !strings.ContainsAny(input, `,"`) {
		return uniqueSorted(splitStrip(input, " "))
	}

	var (
		words      []string
		pending    []string
		buf        strings.Builder
		looseComma bool
	)
	runes := []rune(input)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c != '"' {
			if c == ',' {
				looseComma = true
			}
			buf.WriteRune(c)
			continue
		}

		if buf.Len() > 0 {
			pending = append(pending, buf.String())
			buf.Reset()
		}
		closed := false
		for i++; i < len(runes); i++ {
			if runes[i] == '"' {
				closed = true
				break
			}
			buf.WriteRune(runes[i])
		}
		if !closed {
			// An unterminated quote is treated as unquoted text.
			if strings.Contains(buf.String(), ",") {
				looseComma = true
			}
			break
		}
		if word := strings.TrimSpace(buf.String()); word != "" {
			words = append(words, word)
		}
		buf.Reset()
	}
	if buf.Len() > 0 {
		pending = append(pending, buf.String())
	}

	delimiter := " "
	if looseComma {
		delimiter = ","
	}
	for _, chunk := range pending {
		words = append(words, splitStrip(chunk, delimiter)...)
	}
	return uniqueSorted(words)
}

func splitStrip(s, delimiter string) []string {
	var out []string
	for _, w := range strings.Split(s, delimiter) {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, w)
		}
	}
	return out
}

func uniqueSorted(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// TaggingSelect is an autocomplete tag picker. Only the tags already chosen
// are rendered as options; the browser widget fetches the rest from URL.
type TaggingSelect struct {
	URL string
}

// RenderOptions renders the selected tags parsed from the stored tag string.
func (w TaggingSelect) RenderOptions(selected string) template.HTML {
	tags := ParseTagInput(selected)
	options := make([]string, 0, len(tags))
	for _, tag := range tags {
		esc := template.HTMLEscapeString(tag)
		options = append(options, fmt.Sprintf(`<option value="%s" selected="selected">%s</option>`, esc, esc))
	}
	return template.HTML(strings.Join(options, "\n"))
}

func (w TaggingSelect) Render(name string, value any) (template.HTML, error) {
	stored, _ := value.(string)
	return template.HTML(fmt.Sprintf(
		`<select name="%s" id="id_%s" multiple data-autocomplete-light-url="%s" data-autocomplete-light-function="select2" data-tags="true">%s</select>`,
		template.HTMLEscapeString(name),
		template.HTMLEscapeString(name),
		template.HTMLEscapeString(w.URL),
		w.RenderOptions(stored),
	)), nil
}

func (w TaggingSelect) AllowsMultiple() bool { return true }

// AutocompleteURL is the endpoint the browser queries for more tags.
func (w TaggingSelect) AutocompleteURL() string { return w.URL }

// EditString joins tags back into a string ParseTagInput reads unchanged.
// Tags containing a comma are quoted; when any tag contains a space the
// tags are comma separated.
func EditString(tags []string) string {
	names := make([]string, 0, len(tags))
	useComma := false
	for _, tag := range tags {
		switch {
		case strings.Contains(tag, ","):
			names = append(names, `"`+tag+`"`)
		case strings.Contains(tag, " "):
			useComma = true
			names = append(names, tag)
		default:
			names = append(names, tag)
		}
	}
	sort.Strings(names)
	if useComma {
		return strings.Join(names, ", ")
	}
	return strings.Join(names, " ")
}

// TagsCleaner merges every submitted value of a tag field into one
// normalised tag string. Each value is one tag unless it holds a comma or
// a quote, in which case it is parsed as tag input.
type TagsCleaner struct{}

func (TagsCleaner) Clean(_ context.Context, name string, raw url.Values, _ forms.PriorFunc) (any, error) {
	var tags []string
	for _, v := range raw[name] {
		if strings.ContainsAny(v, `,"`) {
			tags = append(tags, ParseTagInput(v)...)
			continue
		}
		if v = strings.TrimSpace(v); v != "" {
			tags = append(tags, v)
		}
	}
	return EditString(uniqueSorted(tags)), nil
}

var _ forms.MultipleWidget = TaggingSelect{}
