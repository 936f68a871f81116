// Package admin serves changelist, add, change and delete views for gorm
// models over gin, with the post-save hooks, form-field mappings and actions
// an admin site needs.
package admin

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/adonese/adminutils/forms"
	"github.com/adonese/adminutils/listfilter"
	"github.com/adonese/adminutils/store"
	"github.com/adonese/adminutils/users"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// DBField describes one model column exposed on the admin form.
type DBField struct {
	// Name is the column name, e.g. "published_at".
	Name        string
	VerboseName string
	Kind        forms.Kind
	Required    bool
	HelpText    string
	Rules       string
	// Widget overrides the default widget of Kind.
	Widget  forms.Widget
	Cleaner forms.Cleaner
	// Related is the "app.model" a foreign key or many-to-many points at.
	Related string
}

func (f DBField) verboseName() string {
	if f.VerboseName != "" {
		return f.VerboseName
	}
	return strings.ReplaceAll(f.Name, "_", " ")
}

// FilterSpec attaches a list filter factory to a column.
type FilterSpec struct {
	Field   listfilter.Field
	Factory listfilter.Factory
}

// Action runs on the rows selected in the changelist. selected is a query
// already scoped to the model and the chosen primary keys. An action that
// writes nothing to c gets the default redirect back to the changelist.
type Action struct {
	Name        string
	Description string
	Run         func(c *gin.Context, ma *ModelAdmin, selected *gorm.DB) error
}

// Response is the outcome of a view before it is written.
type Response struct {
	Status   int
	Location string
	Body     any
}

// IsRedirect reports whether r is a 302 redirect.
func (r Response) IsRedirect() bool {
	return r.Status == http.StatusFound
}

func redirect(location string) Response {
	return Response{Status: http.StatusFound, Location: location}
}

// PostSaveRedirectHandler may replace the response sent after a successful
// add or change. Handlers run in the order they are listed on the ModelAdmin,
// each receiving the previous handler's response.
type PostSaveRedirectHandler interface {
	ResponseAdd(c *gin.Context, obj any, resp Response) (Response, error)
	ResponseChange(c *gin.Context, obj any, resp Response) (Response, error)
}

// PostDeleteHandler may replace the response of the delete view.
type PostDeleteHandler interface {
	ResponseDelete(c *gin.Context, resp Response) (Response, error)
}

// ModelAdmin configures the admin views of one model.
type ModelAdmin struct {
	ContentType store.ContentType

	Fields      []DBField
	ListDisplay []string
	ListFilter  []FilterSpec
	Actions     []Action
	// Ordering is an ORDER BY clause, e.g. "id desc".
	Ordering string
	PerPage  int

	// HideAddRelatedFields turns off the add-related control of the listed
	// fields. When ShowAddRelatedFields is non-nil it is used instead, as a
	// whitelist.
	HideAddRelatedFields []string
	ShowAddRelatedFields []string

	DisableDeletion bool
	LongListFilter  *LongListFilter
	// AutocompleteWidgets replaces the widget of the named fields.
	AutocompleteWidgets map[string]forms.Widget
	BaseMedia           forms.Media

	PostSave   []PostSaveRedirectHandler
	PostDelete []PostDeleteHandler

	Now func() time.Time
}

func (ma *ModelAdmin) now() time.Time {
	if ma.Now != nil {
		return ma.Now()
	}
	return time.Now()
}

func (ma *ModelAdmin) perm(action string) string {
	return fmt.Sprintf("%s.%s_%s", ma.ContentType.AppLabel, action, ma.ContentType.Model)
}

func (ma *ModelAdmin) HasViewPermission(u *users.User) bool {
	return u.HasPerm(ma.perm("view")) || u.HasPerm(ma.perm("change"))
}

func (ma *ModelAdmin) HasAddPermission(u *users.User) bool {
	return u.HasPerm(ma.perm("add"))
}

func (ma *ModelAdmin) HasChangePermission(u *users.User) bool {
	return u.HasPerm(ma.perm("change"))
}

// HasDeletePermission is always false when DisableDeletion is set.
func (ma *ModelAdmin) HasDeletePermission(u *users.User) bool {
	if ma.DisableDeletion {
		return false
	}
	return u.HasPerm(ma.perm("delete"))
}

// ChangelistURL is the path of the model's changelist.
func (ma *ModelAdmin) ChangelistURL(prefix string) string {
	return fmt.Sprintf("%s/%s/%s/", strings.TrimSuffix(prefix, "/"), ma.ContentType.AppLabel, ma.ContentType.Model)
}

// Media is the base media plus whatever the enabled features add.
func (ma *ModelAdmin) Media() forms.Media {
	media := ma.BaseMedia
	if ma.LongListFilter != nil {
		media = media.Merge(ma.LongListFilter.Media())
	}
	return media
}

// GetActions lists the actions available to u. delete_selected is offered
// only to users allowed to delete.
func (ma *ModelAdmin) GetActions(u *users.User) []Action {
	out := make([]Action, 0, len(ma.Actions)+1)
	if ma.HasDeletePermission(u) {
		out = append(out, deleteSelectedAction())
	}
	return append(out, ma.Actions...)
}

func (ma *ModelAdmin) responseAdd(c *gin.Context, obj any, resp Response) (Response, error) {
	var err error
	for _, h := range ma.PostSave {
		if resp, err = h.ResponseAdd(c, obj, resp); err != nil {
			return resp, err
		}
	}
	return resp, nil
}

func (ma *ModelAdmin) responseChange(c *gin.Context, obj any, resp Response) (Response, error) {
	var err error
	for _, h := range ma.PostSave {
		if resp, err = h.ResponseChange(c, obj, resp); err != nil {
			return resp, err
		}
	}
	return resp, nil
}

func (ma *ModelAdmin) responseDelete(c *gin.Context, resp Response) (Response, error) {
	var err error
	for _, h := range ma.PostDelete {
		if resp, err = h.ResponseDelete(c, resp); err != nil {
			return resp, err
		}
	}
	return resp, nil
}
