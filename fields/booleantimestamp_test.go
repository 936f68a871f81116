package fields

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/adonese/adminutils/apperr"
	"github.com/adonese/adminutils/forms"
)

var saveTime = time.Date(2024, time.May, 4, 9, 15, 30, 0, time.UTC)

func stored(t *time.Time) PriorLookup {
	return func(context.Context) (*time.Time, error) { return t, nil }
}

func TestBooleanTimestamp_Clean(t *testing.T) {
	earlier := saveTime.Add(-48 * time.Hour)
	field := BooleanTimestamp{Name: "published_at", Now: func() time.Time { return saveTime }}

	tests := []struct {
		name    string
		prior   PriorLookup
		checked bool
		want    *time.Time
		wantErr bool
	}{
		{"null checked sets now", stored(nil), true, &saveTime, false},
		{"no record checked sets now", nil, true, &saveTime, false},
		{"null unchecked fails", stored(nil), false, nil, true},
		{"set checked keeps prior", stored(&earlier), true, &earlier, false},
		{"set unchecked clears", stored(&earlier), false, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := field.Clean(context.Background(), tt.checked, tt.prior)
			if tt.wantErr {
				if apperr.Code(err) != apperr.ErrValidation.Code {
					t.Fatalf("Clean() error = %v, want validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Clean() unexpected error: %v", err)
			}
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("Clean() = %v, want nil", got)
			case tt.want != nil && (got == nil || !got.Equal(*tt.want)):
				t.Errorf("Clean() = %v, want %v", got, *tt.want)
			}
		})
	}
}

// Simulates saving the same record repeatedly with a store that remembers
// what the previous save wrote.
func TestBooleanTimestamp_SaveSequence(t *testing.T) {
	clock := saveTime
	field := BooleanTimestamp{Name: "published_at", Now: func() time.Time { return clock }}
	var db *time.Time
	save := func(checked bool) error {
		v, err := field.Clean(context.Background(), checked, stored(db))
		if err != nil {
			return err
		}
		db = v
		return nil
	}

	if err := save(true); err != nil || db == nil || !db.Equal(saveTime) {
		t.Fatalf("first save: db=%v err=%v", db, err)
	}
	clock = clock.Add(time.Hour)
	if err := save(true); err != nil || !db.Equal(saveTime) {
		t.Fatalf("re-save should keep original timestamp: db=%v err=%v", db, err)
	}
	if err := save(false); err != nil || db != nil {
		t.Fatalf("uncheck should clear: db=%v err=%v", db, err)
	}
	if err := save(false); apperr.Code(err) != apperr.ErrValidation.Code {
		t.Fatalf("uncheck on null should fail, got %v", err)
	}
}

func TestBooleanTimestamp_LookupError(t *testing.T) {
	boom := errors.New("db down")
	_, err := BooleanTimestamp{}.Clean(context.Background(), true, func(context.Context) (*time.Time, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Clean() error = %v, want %v", err, boom)
	}
}

func TestBooleanTimestamp_FormCleaner(t *testing.T) {
	earlier := saveTime.Add(-time.Hour)
	cleaner := BooleanTimestamp{Now: func() time.Time { return saveTime }}.FormCleaner()
	prior := func(v any) forms.PriorFunc {
		return func(context.Context) (any, error) { return v, nil }
	}

	got, err := cleaner.Clean(context.Background(), "published_at", url.Values{"published_at": {"on"}}, prior(&earlier))
	if err != nil || got.(time.Time) != earlier {
		t.Fatalf("checked with prior: got %v err %v", got, err)
	}
	got, err = cleaner.Clean(context.Background(), "published_at", url.Values{}, prior(&earlier))
	if err != nil || got != nil {
		t.Fatalf("unchecked with prior: got %v err %v", got, err)
	}
	_, err = cleaner.Clean(context.Background(), "published_at", url.Values{}, prior(nil))
	e, ok := apperr.As(err)
	if !ok || e.Fields["published_at"] == nil {
		t.Fatalf("expected field error on published_at, got %v", err)
	}
}

func TestBooleanTimestampWidget_Render(t *testing.T) {
	w := BooleanTimestampWidget{Label: "Published at"}
	ts := time.Date(2023, time.December, 1, 8, 5, 9, 0, time.UTC)

	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"timestamp", &ts, `<span class="vCheckboxLabel">Published at: 08:05:09 01/12/2023</span>`},
		{"null", (*time.Time)(nil), `<span class="vCheckboxLabel">Published at</span>`},
		{"bool after failed submit", true, `<span class="vCheckboxLabel">Published at</span>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html, err := w.Render("published_at", tt.value)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.HasSuffix(string(html), tt.want) {
				t.Errorf("Render() = %s, want suffix %s", html, tt.want)
			}
			if !strings.HasPrefix(string(html), `<input type="checkbox"`) {
				t.Errorf("Render() should start with the checkbox: %s", html)
			}
		})
	}
}
