package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	gateway "github.com/adonese/adminutils/apigateway"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var autocompleteURL = regexp.MustCompile(`data-autocomplete-light-url="([^"]+)"`)

func testApp(t *testing.T) (*app, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := Config{
		DatabasePath:      filepath.Join(t.TempDir(), "admin.db"),
		JWTSecret:         "test-secret",
		BootstrapUser:     "root",
		BootstrapPassword: "hunter2",
	}
	cfg.Defaults()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	a, err := newApp(context.Background(), cfg, gateway.LogSamplingConfig{}, logger)
	require.NoError(t, err)
	t.Cleanup(a.close)
	return a, a.engine()
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, r *gin.Engine) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"root","password":"hunter2"}`))
	req.Header.Set("Content-Type", "application/json")
	w := serve(r, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Authorization string `json:"authorization"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return "Bearer " + body.Authorization
}

func authed(method, target, token string, form url.Values) *http.Request {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Authorization", token)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return req
}

func TestApp_Bootstrap(t *testing.T) {
	a, _ := testApp(t)
	u, err := a.users.ByUsername(context.Background(), "root")
	require.NoError(t, err)
	assert.True(t, u.IsSuperuser)
	require.NoError(t, a.bootstrapUser(context.Background()), "second start keeps the user")
}

func TestApp_Routes(t *testing.T) {
	_, r := testApp(t)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(gateway.RequestIDHeader))

	w = serve(r, httptest.NewRequest(http.MethodGet, "/admin/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := login(t, r)

	w = serve(r, authed(http.MethodGet, "/admin/?format=json", token, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	for _, title := range []string{"Library", "Linkchecker", "Exports", "Editorial"} {
		assert.Contains(t, w.Body.String(), `"title":"`+title+`"`)
	}

	w = serve(r, authed(http.MethodGet, "/admin/", token, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<h1>Site administration</h1>")

	form := url.Values{
		"title":        {"The Dispossessed"},
		"word_count":   {"112000"},
		"published_at": {"on"},
		"tags":         {"sci-fi", "space opera"},
	}
	w = serve(r, authed(http.MethodPost, "/admin/library/book/add/?_redirect=/admin/", token, form))
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	assert.Equal(t, "/admin/", w.Header().Get("Location"))

	w = serve(r, authed(http.MethodGet, "/admin/library/book/?word_count__gte=40000", token, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var page struct {
		Count   int              `json:"count"`
		Results []map[string]any `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Count)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "sci-fi, space opera", page.Results[0]["Tags"])
	assert.NotNil(t, page.Results[0]["PublishedAt"])

	w = serve(r, authed(http.MethodGet, "/tags/autocomplete/?q=SP", token, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"results":[{"id":"space opera","text":"space opera"}]}`, w.Body.String())

	w = serve(r, authed(http.MethodGet, "/admin/library/book/add/", token, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var formPage struct {
		Fields []struct {
			Name string `json:"name"`
			HTML string `json:"html"`
		} `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &formPage))
	var widgetURL string
	for _, f := range formPage.Fields {
		if f.Name == "tags" {
			if m := autocompleteURL.FindStringSubmatch(f.HTML); m != nil {
				widgetURL = m[1]
			}
		}
	}
	require.NotEmpty(t, widgetURL, "tags widget renders its autocomplete url")
	w = serve(r, authed(http.MethodGet, widgetURL+"?q=sci", token, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"results":[{"id":"sci-fi","text":"sci-fi"}]}`, w.Body.String())

	w = serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "adminutils_request_requests_count")
	assert.Contains(t, w.Body.String(), "adminutils_admin_views_total")
}

func TestApp_RelatedObjectLink(t *testing.T) {
	a, r := testApp(t)
	token := login(t, r)

	w := serve(r, authed(http.MethodPost, "/admin/library/author/add/", token, url.Values{"name": {"Ursula"}}))
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())

	target := "/admin/library/book/add/?_related_object=" + url.QueryEscape("library author 1 featured_book")
	w = serve(r, authed(http.MethodPost, target, token, url.Values{"title": {"Lathe of Heaven"}, "published_at": {"on"}}))
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())

	var author Author
	require.NoError(t, a.db.First(&author, 1).Error)
	require.NotNil(t, author.FeaturedBookID)
	var book Book
	require.NoError(t, a.db.First(&book, *author.FeaturedBookID).Error)
	assert.Equal(t, "Lathe of Heaven", book.Title)
}
