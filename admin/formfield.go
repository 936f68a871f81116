package admin

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/adonese/adminutils/fields"
	"github.com/adonese/adminutils/forms"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MultipleSelectHelpText is appended to the help text of many-to-many fields
// rendered as a plain multiple select.
const MultipleSelectHelpText = `Hold down "Control", or "Command" on a Mac, to select more than one.`

const jqueryUICDN = "https://ajax.googleapis.com/ajax/libs/jqueryui/1.13.2/"

// Autocompleter is implemented by widgets that look their choices up from a
// remote endpoint instead of rendering every option.
type Autocompleter interface {
	forms.Widget
	AutocompleteURL() string
}

// LongListFilter swaps long filter lists in the changelist sidebar for an
// autocompleting input. Empty fields take their defaults.
type LongListFilter struct {
	Show      string
	Threshold string
	Height    string
}

// Media returns the jQuery UI assets and the long list filter script.
func (l LongListFilter) Media() forms.Media {
	show, threshold, height := l.Show, l.Threshold, l.Height
	if show == "" {
		show = "active"
	}
	if threshold == "" {
		threshold = "300"
	}
	if height == "" {
		height = "100"
	}
	return forms.Media{
		JS: []string{
			jqueryUICDN + "jquery-ui.min.js",
			fmt.Sprintf("js/adminutils/long_list_filter.js?show=%s&threshold=%s&height=%s", show, threshold, height),
		},
		CSS: map[string][]string{
			"all": {jqueryUICDN + "themes/smoothness/jquery-ui.css"},
		},
	}
}

// FormFieldFor builds the form field of a model column.
//
// Boolean-timestamp columns get a checkbox labelled with the title-cased
// verbose name and no form label. Fields named in AutocompleteWidgets take
// that widget; a nil entry is ignored. Many-to-many fields using an
// autocomplete multiple widget drop the "Hold down Control" hint.
func (ma *ModelAdmin) FormFieldFor(prefix string, dbf DBField) *forms.Field {
	field := &forms.Field{
		Name:     dbf.Name,
		Label:    capFirst(dbf.verboseName()),
		HelpText: dbf.HelpText,
		Kind:     dbf.Kind,
		Widget:   dbf.Widget,
		Cleaner:  dbf.Cleaner,
		Required: dbf.Required,
		Rules:    dbf.Rules,
	}
	if s, ok := field.Widget.(*forms.Select); ok {
		field.Widget = s.Clone()
	}

	if dbf.Kind == forms.KindBooleanTimestamp {
		field.Label = ""
		field.Required = false
		field.Widget = fields.BooleanTimestampWidget{
			Label: cases.Title(language.Und).String(dbf.verboseName()),
		}
		field.Cleaner = fields.BooleanTimestamp{Name: dbf.Name, Now: ma.Now}.FormCleaner()
	}

	if w, ok := ma.AutocompleteWidgets[dbf.Name]; ok && w != nil {
		field.Widget = w
	}
	if field.Widget == nil {
		field.Widget = defaultWidget(prefix, dbf)
	}

	if dbf.Kind == forms.KindManyToMany {
		field.HelpText = manyToManyHelpText(field)
	}
	return field
}

func manyToManyHelpText(field *forms.Field) string {
	_, auto := field.Widget.(Autocompleter)
	mw, multi := field.Widget.(forms.MultipleWidget)
	if auto && multi && mw.AllowsMultiple() {
		return strings.TrimSpace(strings.ReplaceAll(field.HelpText, MultipleSelectHelpText, ""))
	}
	if strings.Contains(field.HelpText, MultipleSelectHelpText) {
		return field.HelpText
	}
	return strings.TrimSpace(field.HelpText + " " + MultipleSelectHelpText)
}

func defaultWidget(prefix string, dbf DBField) forms.Widget {
	switch dbf.Kind {
	case forms.KindInt:
		return forms.NumberInput{}
	case forms.KindBool:
		return forms.CheckboxInput{}
	case forms.KindForeignKey, forms.KindManyToMany:
		w := &forms.Select{Multiple: dbf.Kind == forms.KindManyToMany}
		if app, model, ok := strings.Cut(dbf.Related, "."); ok {
			w.AddURL = fmt.Sprintf("%s/%s/%s/add/", strings.TrimSuffix(prefix, "/"), app, model)
		}
		return w
	}
	return forms.TextInput{}
}

// GetForm builds a fresh form for one request and applies the add-related
// settings to its widgets.
func (ma *ModelAdmin) GetForm(prefix string) (*forms.Form, error) {
	form := forms.NewForm()
	for _, dbf := range ma.Fields {
		form.Add(ma.FormFieldFor(prefix, dbf))
	}

	if ma.ShowAddRelatedFields != nil {
		show := make(map[string]bool, len(ma.ShowAddRelatedFields))
		for _, name := range ma.ShowAddRelatedFields {
			show[name] = true
		}
		for _, field := range form.Fields() {
			if !show[field.Name] {
				disableAddRelated(field)
			}
		}
		return form, nil
	}
	for _, name := range ma.HideAddRelatedFields {
		field, ok := form.BaseFields[name]
		if !ok {
			return nil, fmt.Errorf("hide add related: %s has no field %q", ma.ContentType.NaturalKey(), name)
		}
		disableAddRelated(field)
	}
	return form, nil
}

func disableAddRelated(field *forms.Field) {
	if w, ok := field.Widget.(forms.RelatedWidget); ok {
		w.SetCanAddRelated(false)
	}
}

func capFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
