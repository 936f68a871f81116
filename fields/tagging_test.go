package fields

import (
	"context"
	"net/url"
	"reflect"
	"testing"
)

func TestParseTagInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", []string{}},
		{"spaces", "one two  three two", []string{"one", "three", "two"}},
		{"commas", "one two, three", []string{"one two", "three"}},
		{"quoted phrase", `"one two" three`, []string{"one two", "three"}},
		{"quoted with commas outside", `"one two", three, four five`, []string{"four five", "one two", "three"}},
		{"comma inside quotes only", `"one, two" three`, []string{"one, two", "three"}},
		{"unterminated quote", `one "two three`, []string{"one", "three", "two"}},
		{"unterminated quote with comma", `one "two, three`, []string{"one", "three", "two"}},
		{"duplicates", "a,a, b", []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseTagInput(tt.input); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseTagInput(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTaggingSelect_RenderOptions(t *testing.T) {
	w := TaggingSelect{URL: "/admin/tags/autocomplete/"}
	got := string(w.RenderOptions(`sci-fi "space opera"`))
	want := "<option value=\"sci-fi\" selected=\"selected\">sci-fi</option>\n" +
		"<option value=\"space opera\" selected=\"selected\">space opera</option>"
	if got != want {
		t.Errorf("RenderOptions() = %q, want %q", got, want)
	}
	if got := w.RenderOptions(""); got != "" {
		t.Errorf("RenderOptions(\"\") = %q, want empty", got)
	}
}

func TestEditString(t *testing.T) {
	tests := []struct {
		name string
		tags []string
		want string
	}{
		{"plain", []string{"b", "a"}, "a b"},
		{"space", []string{"space opera", "sci-fi"}, "sci-fi, space opera"},
		{"comma", []string{"one, two", "three"}, `"one, two" three`},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EditString(tt.tags)
			if got != tt.want {
				t.Errorf("EditString() = %q, want %q", got, tt.want)
			}
			if back := ParseTagInput(got); len(tt.tags) > 0 && len(back) != len(tt.tags) {
				t.Errorf("ParseTagInput(EditString()) = %q, want %d tags", back, len(tt.tags))
			}
		})
	}
}

func TestTagsCleaner(t *testing.T) {
	raw := url.Values{"tags": {"sci-fi", "space opera", "sci-fi", ""}}
	got, err := TagsCleaner{}.Clean(context.Background(), "tags", raw, nil)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if got != "sci-fi, space opera" {
		t.Errorf("Clean() = %q, want %q", got, "sci-fi, space opera")
	}
}
