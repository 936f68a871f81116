package dashboard

import (
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/adonese/adminutils/apperr"
	"github.com/adonese/adminutils/users"
	"github.com/bradfitz/iter"
	"github.com/gin-contrib/multitemplate"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// TemplateName is the name the dashboard page is registered under.
const TemplateName = "dashboard"

const baseTemplate = `<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
{{template "content" .}}
<footer>Generated {{time .Now}}</footer>
</body>
</html>`

const dashboardTemplate = `{{define "content"}}<div class="dashboard">
{{range $i, $e := N (len .Columns)}}<div class="dashboard-column">
{{range index $.Columns $i}}<div class="dashboard-module">
<h2>{{.Title}}</h2>
{{if .PreContent}}<p class="pre-content">{{.PreContent}}</p>{{end}}
<ul>{{range .Children}}
<li><a href="{{.URL}}"{{if .External}} class="external-link"{{end}}>{{.Title}}</a></li>{{end}}
</ul>
{{if .PostContent}}<p class="post-content">{{.PostContent}}</p>{{end}}
</div>
{{end}}</div>
{{end}}</div>{{end}}`

// TimeFormatter prints timestamps in templates.
func TimeFormatter(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// FuncMap holds the helpers every dashboard template can use.
func FuncMap() template.FuncMap {
	return template.FuncMap{"N": iter.N, "time": TimeFormatter}
}

// Renderer returns a gin HTML renderer with the dashboard page registered.
func Renderer() multitemplate.Render {
	r := multitemplate.New()
	r.AddFromStringsFuncs(TemplateName, FuncMap(), baseTemplate, dashboardTemplate)
	return r
}

// Dashboard is an ordered set of module prototypes laid out in columns.
type Dashboard struct {
	Title   string
	Columns int
	Modules []Module
	Logger  *logrus.Logger
	Now     func() time.Time
}

func New(title string, modules ...Module) *Dashboard {
	return &Dashboard{Title: title, Columns: 2, Modules: modules, Logger: logrus.New()}
}

// View is the render-ready dashboard.
type View struct {
	Title   string         `json:"title"`
	Now     time.Time      `json:"now"`
	Modules []ModuleView   `json:"modules"`
	Columns [][]ModuleView `json:"-"`
}

// View prepares every module for ctx and drops the ones left empty. A module
// whose init fails is logged and skipped.
func (d *Dashboard) View(ctx Context) View {
	v := View{Title: d.Title, Now: time.Now()}
	if d.Now != nil {
		v.Now = d.Now()
	}
	for _, proto := range d.Modules {
		m := proto.Clone()
		if err := m.InitWithContext(ctx); err != nil {
			d.logger().WithFields(logrus.Fields{
				"error":  err.Error(),
				"module": proto.View().Title,
			}).Warn("dashboard module init failed")
			continue
		}
		if m.IsEmpty() {
			continue
		}
		v.Modules = append(v.Modules, m.View())
	}

	cols := d.Columns
	if cols <= 0 {
		cols = 1
	}
	v.Columns = make([][]ModuleView, cols)
	for i, m := range v.Modules {
		v.Columns[i%cols] = append(v.Columns[i%cols], m)
	}
	return v
}

// Render writes the dashboard page for ctx.
func (d *Dashboard) Render(w io.Writer, ctx Context) error {
	return Renderer()[TemplateName].Execute(w, d.View(ctx))
}

// Handler serves the dashboard as HTML, or as JSON with ?format=json. The
// engine's HTMLRender must be Renderer().
func (d *Dashboard) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, _ := c.Get(users.ContextKey)
		u, _ := v.(*users.User)
		if u == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apperr.Payload(apperr.ErrUnauthorized))
			return
		}
		view := d.View(Context{Context: c.Request.Context(), User: u})
		if c.Query("format") == "json" {
			c.JSON(http.StatusOK, view)
			return
		}
		c.HTML(http.StatusOK, TemplateName, view)
	}
}

func (d *Dashboard) logger() *logrus.Logger {
	if d.Logger == nil {
		d.Logger = logrus.New()
	}
	return d.Logger
}
