package admin

import (
	"context"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adonese/adminutils/apperr"
	"github.com/adonese/adminutils/forms"
	"github.com/adonese/adminutils/listfilter"
	"github.com/adonese/adminutils/store"
	"github.com/adonese/adminutils/users"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPerPage = 100
	pageParam      = "p"
)

// Site routes the admin views of every registered model.
type Site struct {
	Db       *gorm.DB
	Registry *store.Registry
	Logger   *logrus.Logger
	// Prefix is the path the site is mounted under, "/admin" by default.
	Prefix string

	mu     sync.RWMutex
	admins map[string]*ModelAdmin
}

func NewSite(db *gorm.DB, registry *store.Registry, logger *logrus.Logger) *Site {
	if registry == nil {
		registry = store.NewRegistry()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Site{
		Db:       db,
		Registry: registry,
		Logger:   logger,
		Prefix:   "/admin",
		admins:   map[string]*ModelAdmin{},
	}
}

// Register exposes model under appLabel. A nil ma gets the defaults.
func (s *Site) Register(appLabel string, model any, ma *ModelAdmin) *ModelAdmin {
	if ma == nil {
		ma = &ModelAdmin{}
	}
	ma.ContentType = s.Registry.Register(appLabel, model)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins[ma.ContentType.NaturalKey()] = ma
	return ma
}

// RelatedObjectLinker returns a linker bound to the site's database and
// registry.
func (s *Site) RelatedObjectLinker() RelatedObjectLinker {
	return RelatedObjectLinker{DB: s.Db, Registry: s.Registry}
}

// Admin returns the ModelAdmin registered for app and model.
func (s *Site) Admin(app, model string) (*ModelAdmin, error) {
	s.mu.RLock()
	ma, ok := s.admins[app+"."+strings.ToLower(model)]
	s.mu.RUnlock()
	if !ok {
		return nil, apperr.New(apperr.ErrUnknownModel.Code, apperr.ErrUnknownModel.Status, "no admin for "+app+"."+model)
	}
	return ma, nil
}

// Admins lists the registered ModelAdmins sorted by natural key.
func (s *Site) Admins() []*ModelAdmin {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ModelAdmin, 0, len(s.admins))
	for _, ct := range s.Registry.All() {
		if ma, ok := s.admins[ct.NaturalKey()]; ok {
			out = append(out, ma)
		}
	}
	return out
}

// Routes mounts the model views on r under s.Prefix. Authentication is the
// caller's middleware; the views only read the user it stores.
func (s *Site) Routes(r gin.IRouter) {
	initAdminMetrics()
	g := r.Group(s.Prefix)
	g.GET("/:app/:model/", s.Changelist)
	g.POST("/:app/:model/", s.RunAction)
	g.GET("/:app/:model/add/", s.AddForm)
	g.POST("/:app/:model/add/", s.Add)
	g.GET("/:app/:model/:id/change/", s.ChangeForm)
	g.POST("/:app/:model/:id/change/", s.Change)
	g.GET("/:app/:model/:id/delete/", s.DeleteConfirm)
	g.POST("/:app/:model/:id/delete/", s.Delete)
}

// CurrentUser returns the user the authentication middleware stored on c.
func CurrentUser(c *gin.Context) (*users.User, error) {
	v, ok := c.Get(users.ContextKey)
	if !ok {
		return nil, apperr.ErrUnauthorized
	}
	u, ok := v.(*users.User)
	if !ok || u == nil {
		return nil, apperr.ErrUnauthorized
	}
	return u, nil
}

func (s *Site) begin(c *gin.Context) (*ModelAdmin, *users.User, error) {
	u, err := CurrentUser(c)
	if err != nil {
		return nil, nil, err
	}
	ma, err := s.Admin(c.Param("app"), c.Param("model"))
	if err != nil {
		return nil, u, err
	}
	return ma, u, nil
}

func objectID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.New(apperr.ErrNotFound.Code, apperr.ErrNotFound.Status, "no object with id "+c.Param("id"))
	}
	return uint(id), nil
}

func forbidden(action string) error {
	return apperr.New(apperr.ErrForbidden.Code, apperr.ErrForbidden.Status, "you may not "+action+" this model")
}

func (s *Site) fail(c *gin.Context, view string, err error) {
	model := c.Param("app") + "." + c.Param("model")
	recordView(model, view, err)
	status := apperr.Status(err)
	entry := s.Logger.WithFields(logrus.Fields{
		"error": err.Error(),
		"code":  apperr.Code(err),
		"model": model,
		"view":  view,
		"path":  c.Request.URL.Path,
	})
	if status >= http.StatusInternalServerError {
		entry.Error("admin view failed")
	} else {
		entry.Info("admin view rejected")
	}
	c.AbortWithStatusJSON(status, apperr.Payload(err))
}

func (s *Site) write(c *gin.Context, view string, resp Response) {
	recordView(c.Param("app")+"."+c.Param("model"), view, nil)
	if resp.Location != "" {
		c.Redirect(resp.Status, resp.Location)
		return
	}
	c.JSON(resp.Status, resp.Body)
}

// ChangelistFilter is one rendered sidebar filter.
type ChangelistFilter struct {
	Title   string              `json:"title"`
	Choices []listfilter.Choice `json:"choices"`
}

// ActionInfo describes an action offered on the changelist.
type ActionInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ChangelistPage is the changelist view payload.
type ChangelistPage struct {
	Model   string             `json:"model"`
	Count   int64              `json:"count"`
	Page    int                `json:"page"`
	Pages   int                `json:"pages"`
	Filters []ChangelistFilter `json:"filters"`
	Actions []ActionInfo       `json:"actions"`
	Media   forms.Media        `json:"media"`
	Results any                `json:"results"`
}

// Changelist lists the model's records narrowed by the active filters.
func (s *Site) Changelist(c *gin.Context) {
	ma, u, err := s.begin(c)
	if err != nil {
		s.fail(c, "changelist", err)
		return
	}
	if !ma.HasViewPermission(u) {
		s.fail(c, "changelist", forbidden("view"))
		return
	}
	page, err := s.changelist(c, ma, u)
	if err != nil {
		s.fail(c, "changelist", err)
		return
	}
	s.write(c, "changelist", Response{Status: http.StatusOK, Body: page})
}

func (s *Site) changelist(c *gin.Context, ma *ModelAdmin, u *users.User) (*ChangelistPage, error) {
	cl := listfilter.NewChangeList(c.Request.URL.Query())
	filters := make([]listfilter.ListFilter, 0, len(ma.ListFilter))
	out := &ChangelistPage{Model: ma.ContentType.NaturalKey(), Media: ma.Media()}
	for _, spec := range ma.ListFilter {
		lf := spec.Factory(spec.Field, cl.Params)
		filters = append(filters, lf)
		out.Filters = append(out.Filters, ChangelistFilter{Title: lf.Title(), Choices: lf.Choices(cl)})
	}
	for _, a := range ma.GetActions(u) {
		out.Actions = append(out.Actions, ActionInfo{Name: a.Name, Description: a.Description})
	}

	q := s.Db.WithContext(c.Request.Context()).Model(ma.ContentType.New())
	q, err := listfilter.ApplyAll(q, filters)
	if err != nil {
		return nil, err
	}
	q = q.Session(&gorm.Session{})

	start := time.Now()
	defer func() { recordChangelistQuery(out.Model, time.Since(start)) }()
	if err := q.Count(&out.Count).Error; err != nil {
		return nil, apperr.Wrap(err, apperr.ErrDatabase, "")
	}

	perPage := ma.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	out.Pages = int((out.Count + int64(perPage) - 1) / int64(perPage))
	out.Page = 1
	if p, err := strconv.Atoi(c.Query(pageParam)); err == nil && p > 0 {
		out.Page = p
	}

	rows := ma.ContentType.NewSlice()
	if ma.Ordering != "" {
		q = q.Order(ma.Ordering)
	}
	if err := q.Limit(perPage).Offset((out.Page - 1) * perPage).Find(rows).Error; err != nil {
		return nil, apperr.Wrap(err, apperr.ErrDatabase, "")
	}
	out.Results = rows
	return out, nil
}

// FormField is one rendered form field.
type FormField struct {
	Name     string        `json:"name"`
	Label    string        `json:"label"`
	HelpText string        `json:"help_text,omitempty"`
	Required bool          `json:"required"`
	HTML     template.HTML `json:"html"`
}

// FormPage is the add/change form view payload.
type FormPage struct {
	Model  string      `json:"model"`
	Fields []FormField `json:"fields"`
	Media  forms.Media `json:"media"`
}

func (s *Site) formPage(ctx context.Context, ma *ModelAdmin, obj any) (*FormPage, error) {
	form, err := ma.GetForm(s.Prefix)
	if err != nil {
		return nil, err
	}
	page := &FormPage{Model: ma.ContentType.NaturalKey(), Media: ma.Media()}
	for _, field := range form.Fields() {
		var value any
		if obj != nil {
			if value, err = store.FieldValue(ctx, s.Db, obj, field.Name); err != nil {
				return nil, err
			}
		}
		html, err := field.Widget.Render(field.Name, value)
		if err != nil {
			return nil, err
		}
		page.Fields = append(page.Fields, FormField{
			Name:     field.Name,
			Label:    field.Label,
			HelpText: field.HelpText,
			Required: field.Required,
			HTML:     html,
		})
	}
	return page, nil
}

// AddForm renders an empty form.
func (s *Site) AddForm(c *gin.Context) {
	ma, u, err := s.begin(c)
	if err != nil {
		s.fail(c, "add_form", err)
		return
	}
	if !ma.HasAddPermission(u) {
		s.fail(c, "add_form", forbidden("add"))
		return
	}
	page, err := s.formPage(c.Request.Context(), ma, nil)
	if err != nil {
		s.fail(c, "add_form", err)
		return
	}
	s.write(c, "add_form", Response{Status: http.StatusOK, Body: page})
}

// ChangeForm renders the form filled from a stored record.
func (s *Site) ChangeForm(c *gin.Context) {
	ma, u, err := s.begin(c)
	if err != nil {
		s.fail(c, "change_form", err)
		return
	}
	if !ma.HasChangePermission(u) {
		s.fail(c, "change_form", forbidden("change"))
		return
	}
	obj, err := s.object(c, ma)
	if err != nil {
		s.fail(c, "change_form", err)
		return
	}
	page, err := s.formPage(c.Request.Context(), ma, obj)
	if err != nil {
		s.fail(c, "change_form", err)
		return
	}
	s.write(c, "change_form", Response{Status: http.StatusOK, Body: page})
}

func (s *Site) object(c *gin.Context, ma *ModelAdmin) (any, error) {
	id, err := objectID(c)
	if err != nil {
		return nil, err
	}
	return ma.ContentType.GetObject(c.Request.Context(), s.Db, id)
}

func (s *Site) priorLookup(ma *ModelAdmin, pk any) func(string) forms.PriorFunc {
	return func(name string) forms.PriorFunc {
		return func(ctx context.Context) (any, error) {
			return store.PriorValue(ctx, s.Db, ma.ContentType.New(), pk, name)
		}
	}
}

func (s *Site) cleanInto(c *gin.Context, ma *ModelAdmin, obj any, pk any) error {
	form, err := ma.GetForm(s.Prefix)
	if err != nil {
		return err
	}
	if err := c.Request.ParseForm(); err != nil {
		return apperr.Wrap(err, apperr.ErrBadRequest, "malformed form body")
	}
	ctx := c.Request.Context()
	cleaned, err := form.Clean(ctx, c.Request.PostForm, s.priorLookup(ma, pk))
	if err != nil {
		return err
	}
	return store.SetFields(ctx, s.Db, obj, cleaned)
}

// Add validates the submitted form and creates a record.
func (s *Site) Add(c *gin.Context) {
	ma, u, err := s.begin(c)
	if err != nil {
		s.fail(c, "add", err)
		return
	}
	if !ma.HasAddPermission(u) {
		s.fail(c, "add", forbidden("add"))
		return
	}
	obj := ma.ContentType.New()
	if err := s.cleanInto(c, ma, obj, nil); err != nil {
		s.fail(c, "add", err)
		return
	}
	// The insert and every post-save handler share one transaction, so a
	// failing handler leaves no half-linked record behind.
	var resp Response
	err = s.Db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(obj).Error; err != nil {
			return apperr.Wrap(err, apperr.ErrDatabase, "")
		}
		c.Set(txKey, tx)
		defer c.Set(txKey, nil)

		var err error
		resp, err = ma.responseAdd(c, obj, redirect(ma.ChangelistURL(s.Prefix)))
		return err
	})
	if err != nil {
		s.fail(c, "add", err)
		return
	}
	pk, _, _ := store.PrimaryKey(c.Request.Context(), s.Db, obj)
	s.Logger.WithFields(logrus.Fields{
		"model": ma.ContentType.NaturalKey(),
		"pk":    pk,
		"user":  u.Username,
	}).Info("object added")

	s.write(c, "add", resp)
}

// Change validates the submitted form and updates a record.
func (s *Site) Change(c *gin.Context) {
	ma, u, err := s.begin(c)
	if err != nil {
		s.fail(c, "change", err)
		return
	}
	if !ma.HasChangePermission(u) {
		s.fail(c, "change", forbidden("change"))
		return
	}
	id, err := objectID(c)
	if err != nil {
		s.fail(c, "change", err)
		return
	}
	ctx := c.Request.Context()
	obj, err := ma.ContentType.GetObject(ctx, s.Db, id)
	if err != nil {
		s.fail(c, "change", err)
		return
	}
	if err := s.cleanInto(c, ma, obj, id); err != nil {
		s.fail(c, "change", err)
		return
	}
	if err := s.Db.WithContext(ctx).Omit(clause.Associations).Save(obj).Error; err != nil {
		s.fail(c, "change", apperr.Wrap(err, apperr.ErrDatabase, ""))
		return
	}
	s.Logger.WithFields(logrus.Fields{
		"model": ma.ContentType.NaturalKey(),
		"pk":    id,
		"user":  u.Username,
	}).Info("object changed")

	resp, err := ma.responseChange(c, obj, redirect(ma.ChangelistURL(s.Prefix)))
	if err != nil {
		s.fail(c, "change", err)
		return
	}
	s.write(c, "change", resp)
}

// DeleteConfirm shows the object about to be deleted.
func (s *Site) DeleteConfirm(c *gin.Context) {
	ma, u, err := s.begin(c)
	if err != nil {
		s.fail(c, "delete_confirm", err)
		return
	}
	if !ma.HasDeletePermission(u) {
		s.fail(c, "delete_confirm", apperr.ErrDeleteForbidden)
		return
	}
	obj, err := s.object(c, ma)
	if err != nil {
		s.fail(c, "delete_confirm", err)
		return
	}
	resp, err := ma.responseDelete(c, Response{Status: http.StatusOK, Body: gin.H{
		"model":   ma.ContentType.NaturalKey(),
		"object":  obj,
		"confirm": "Are you sure you want to delete this object?",
	}})
	if err != nil {
		s.fail(c, "delete_confirm", err)
		return
	}
	s.write(c, "delete_confirm", resp)
}

// Delete removes a record.
func (s *Site) Delete(c *gin.Context) {
	ma, u, err := s.begin(c)
	if err != nil {
		s.fail(c, "delete", err)
		return
	}
	if !ma.HasDeletePermission(u) {
		s.fail(c, "delete", apperr.ErrDeleteForbidden)
		return
	}
	obj, err := s.object(c, ma)
	if err != nil {
		s.fail(c, "delete", err)
		return
	}
	if err := s.Db.WithContext(c.Request.Context()).Delete(obj).Error; err != nil {
		s.fail(c, "delete", apperr.Wrap(err, apperr.ErrDatabase, ""))
		return
	}
	s.Logger.WithFields(logrus.Fields{
		"model": ma.ContentType.NaturalKey(),
		"pk":    c.Param("id"),
		"user":  u.Username,
	}).Info("object deleted")

	resp, err := ma.responseDelete(c, redirect(ma.ChangelistURL(s.Prefix)))
	if err != nil {
		s.fail(c, "delete", err)
		return
	}
	s.write(c, "delete", resp)
}

// RunAction runs the posted action over the rows listed in _selected_action.
func (s *Site) RunAction(c *gin.Context) {
	ma, u, err := s.begin(c)
	if err != nil {
		s.fail(c, "action", err)
		return
	}
	if !ma.HasViewPermission(u) {
		s.fail(c, "action", forbidden("view"))
		return
	}
	name := c.PostForm("action")
	var action *Action
	for _, a := range ma.GetActions(u) {
		if a.Name == name {
			a := a
			action = &a
			break
		}
	}
	if action == nil {
		s.fail(c, "action", apperr.New(apperr.ErrUnknownAction.Code, apperr.ErrUnknownAction.Status, "no action named "+name))
		return
	}
	ids := c.PostFormArray("_selected_action")
	if len(ids) == 0 {
		s.fail(c, "action", apperr.New(apperr.ErrBadRequest.Code, apperr.ErrBadRequest.Status,
			"items must be selected in order to perform actions on them"))
		return
	}

	sch, err := store.Schema(s.Db, ma.ContentType.New())
	if err != nil {
		s.fail(c, "action", apperr.Wrap(err, apperr.ErrInternal, ""))
		return
	}
	if sch.PrioritizedPrimaryField == nil {
		s.fail(c, "action", apperr.New(apperr.ErrInternal.Code, apperr.ErrInternal.Status, "model has no primary key"))
		return
	}
	selected := s.Db.WithContext(c.Request.Context()).
		Model(ma.ContentType.New()).
		Where(map[string]any{sch.PrioritizedPrimaryField.DBName: ids})

	err = action.Run(c, ma, selected)
	recordAction(ma.ContentType.NaturalKey(), action.Name, err)
	if err != nil {
		s.fail(c, "action", err)
		return
	}
	s.Logger.WithFields(logrus.Fields{
		"model":    ma.ContentType.NaturalKey(),
		"action":   action.Name,
		"selected": len(ids),
		"user":     u.Username,
	}).Info("admin action run")
	if c.Writer.Written() {
		return
	}
	s.write(c, "action", redirect(ma.ChangelistURL(s.Prefix)))
}
