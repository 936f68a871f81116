package main

import (
	"time"

	"github.com/adonese/adminutils/admin"
	"github.com/adonese/adminutils/fields"
	"github.com/adonese/adminutils/forms"
	"github.com/adonese/adminutils/listfilter"
)

// Author and Book make up the "library" app served by the example admin.
type Author struct {
	ID             uint   `gorm:"primaryKey"`
	Name           string `gorm:"size:200"`
	FeaturedBookID *uint
	FeaturedBook   *Book `gorm:"foreignKey:FeaturedBookID"`
}

type Book struct {
	ID          uint   `gorm:"primaryKey"`
	Title       string `gorm:"size:200"`
	Chapters    *int
	WordCount   *int
	PublishedAt *time.Time
	ReviewedAt  *time.Time
	Tags        string
	AuthorID    *uint
	Author      *Author `gorm:"foreignKey:AuthorID"`
}

func registerLibrary(site *admin.Site) {
	site.Register("library", &Author{}, &admin.ModelAdmin{
		Fields: []admin.DBField{
			{Name: "name", Kind: forms.KindText, Required: true, Rules: "max=200"},
			{Name: "featured_book_id", VerboseName: "featured book", Kind: forms.KindForeignKey, Related: "library.book"},
		},
		ListDisplay: []string{"id", "name", "featured_book_id"},
		Ordering:    "name",
		PostSave:    []admin.PostSaveRedirectHandler{site.RelatedObjectLinker(), admin.Redirectable{}},
		PostDelete:  []admin.PostDeleteHandler{admin.Redirectable{}},
	})

	site.Register("library", &Book{}, &admin.ModelAdmin{
		Fields: []admin.DBField{
			{Name: "title", Kind: forms.KindText, Required: true, Rules: "max=200"},
			{Name: "author_id", VerboseName: "author", Kind: forms.KindForeignKey, Related: "library.author"},
			{Name: "chapters", Kind: forms.KindInt, Rules: "min=0"},
			{Name: "word_count", Kind: forms.KindInt, Rules: "min=0"},
			{Name: "published_at", VerboseName: "published", Kind: forms.KindBooleanTimestamp},
			{Name: "reviewed_at", VerboseName: "reviewed", Kind: forms.KindTime},
			{Name: "tags", Kind: forms.KindText, Cleaner: fields.TagsCleaner{}},
		},
		ListDisplay: []string{"id", "title", "author_id", "chapters", "word_count", "published_at", "reviewed_at", "tags"},
		ListFilter: []admin.FilterSpec{
			{
				Field: listfilter.Field{Path: "word_count", Title: "word count"},
				Factory: listfilter.MakeRange([]listfilter.Lookup{
					listfilter.Range("Short story", listfilter.Open, listfilter.Value(7500)),
					listfilter.Range("Novella", listfilter.Value(7500), listfilter.Value(40000)),
					listfilter.Range("Novel", listfilter.Value(40000), listfilter.Open),
				}, listfilter.Nullable(true)),
			},
			{
				Field: listfilter.Field{Path: "chapters"},
				Factory: listfilter.WithTitle(listfilter.MakeRange([]listfilter.Lookup{
					listfilter.Range("Under 10", listfilter.Open, listfilter.Value(10)),
					listfilter.Range("10 or more", listfilter.Value(10), listfilter.Open),
				}), "length"),
			},
			{
				Field: listfilter.Field{Path: "published_at", Title: "published"},
				Factory: listfilter.MakeRange([]listfilter.Lookup{
					listfilter.Range("Last 30 days", listfilter.Days(-30), listfilter.Days(1)),
					listfilter.Range("Older", listfilter.Open, listfilter.Days(-30)),
				}, listfilter.Nullable(true)),
			},
			{
				Field:   listfilter.Field{Path: "reviewed_at", Title: "reviewed"},
				Factory: listfilter.DateOrNull(),
			},
		},
		Actions:              []admin.Action{admin.XLSXExportAction()},
		Ordering:             "id desc",
		HideAddRelatedFields: []string{"author_id"},
		LongListFilter:       &admin.LongListFilter{},
		AutocompleteWidgets: map[string]forms.Widget{
			"tags": fields.TaggingSelect{URL: tagAutocompletePath},
		},
		PostSave:   []admin.PostSaveRedirectHandler{site.RelatedObjectLinker(), admin.Redirectable{}},
		PostDelete: []admin.PostDeleteHandler{admin.Redirectable{}},
	})
}
