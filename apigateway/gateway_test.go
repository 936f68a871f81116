package gateway

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/adonese/adminutils/apperr"
	"github.com/adonese/adminutils/users"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers map[string]*users.User

func (f fakeUsers) ByUsername(_ context.Context, username string) (*users.User, error) {
	if u, ok := f[username]; ok {
		return u, nil
	}
	return nil, apperr.ErrNotFound
}

func (f fakeUsers) Authenticate(ctx context.Context, username, password string) (*users.User, error) {
	u, err := f.ByUsername(ctx, username)
	if err != nil || !u.IsActive || !u.CheckPassword(password) {
		return nil, apperr.New(apperr.ErrUnauthorized.Code, http.StatusUnauthorized, "invalid credentials")
	}
	return u, nil
}

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func testAuth(t *testing.T) *Auth {
	t.Helper()
	admin := &users.User{Username: "admin", Password: "s3cret", IsActive: true}
	require.NoError(t, admin.HashPassword())
	retired := &users.User{Username: "retired", Password: "s3cret"}
	require.NoError(t, retired.HashPassword())

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &Auth{
		JWT:    &JWTAuth{Key: []byte("0123456789abcdef"), Issuer: "adminutils", Now: func() time.Time { return testNow }},
		Users:  fakeUsers{"admin": admin, "retired": retired},
		Logger: logger,
	}
}

func authRouter(a *Auth) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.POST("/login", a.Login)
	r.GET("/me", a.AuthMiddleware(), func(c *gin.Context) {
		u := c.MustGet(users.ContextKey).(*users.User)
		c.String(http.StatusOK, u.Username)
	})
	return r
}

func TestJWTAuth(t *testing.T) {
	j := &JWTAuth{Key: []byte("key"), Issuer: "adminutils", Now: func() time.Time { return testNow }}
	token, err := j.GenerateJWT("admin")
	require.NoError(t, err)

	claims, err := j.VerifyJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, testNow.Add(3*time.Hour).Unix(), claims.ExpiresAt)

	later := &JWTAuth{Key: j.Key, Now: func() time.Time { return testNow.Add(4 * time.Hour) }}
	_, err = later.VerifyJWT(token)
	assert.ErrorIs(t, err, errExpiredToken)

	other := &JWTAuth{Key: []byte("other"), Now: j.Now}
	_, err = other.VerifyJWT(token)
	assert.ErrorIs(t, err, errInvalidToken)

	_, err = j.VerifyJWT("not-a-token")
	assert.ErrorIs(t, err, errInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, TokenClaims{Username: "admin"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = j.VerifyJWT(unsigned)
	assert.ErrorIs(t, err, errInvalidToken)

	_, err = (&JWTAuth{}).GenerateJWT("admin")
	assert.ErrorIs(t, err, errEmptyKey)
}

func Test_generateClaims(t *testing.T) {
	got := generateClaims(10, 20, "adminutils")
	assert.Equal(t, jwt.StandardClaims{IssuedAt: 10, ExpiresAt: 20, Issuer: "adminutils"}, got)
}

func TestAuthMiddleware(t *testing.T) {
	a := testAuth(t)
	r := authRouter(a)
	valid, err := a.JWT.GenerateJWT("admin")
	require.NoError(t, err)
	ghost, err := a.JWT.GenerateJWT("ghost")
	require.NoError(t, err)
	inactive, err := a.JWT.GenerateJWT("retired")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		basic  []string
		want   int
	}{
		{"no header", "", nil, http.StatusUnauthorized},
		{"bearer", "Bearer " + valid, nil, http.StatusOK},
		{"lowercase scheme", "bearer " + valid, nil, http.StatusOK},
		{"garbage token", "Bearer nope", nil, http.StatusUnauthorized},
		{"unknown user", "Bearer " + ghost, nil, http.StatusUnauthorized},
		{"inactive user", "Bearer " + inactive, nil, http.StatusUnauthorized},
		{"unknown scheme", "Token abc", nil, http.StatusUnauthorized},
		{"basic", "", []string{"admin", "s3cret"}, http.StatusOK},
		{"basic wrong password", "", []string{"admin", "nope"}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.basic != nil {
				req.SetBasicAuth(tt.basic[0], tt.basic[1])
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			if tt.want == http.StatusOK {
				assert.Equal(t, "admin", w.Body.String())
			} else {
				assert.Contains(t, w.Body.String(), `"code":"unauthorized"`)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	a := testAuth(t)
	r := authRouter(a)

	login := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := login(`{"username":"admin","password":"s3cret"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Authorization string `json:"authorization"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	claims, err := a.JWT.VerifyJWT(body.Authorization)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)

	w = login(`{"username":"admin","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = login(`{"username":"admin"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation_error")
}

func TestRequestID(t *testing.T) {
	r := authRouter(testAuth(t))
	r.GET("/id", func(c *gin.Context) { c.String(http.StatusOK, RequestIDFromCtx(c)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/id", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(RequestIDHeader, " abc-123 ")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "abc-123", w.Body.String())
}

func TestLogSampler(t *testing.T) {
	now := testNow
	s := newLogSampler(LogSamplingConfig{Tick: time.Second, After: 500 * time.Millisecond})
	s.now = func() time.Time { return now }

	assert.True(t, s.Allow(time.Millisecond), "first request")
	assert.False(t, s.Allow(time.Millisecond), "same tick")
	assert.True(t, s.Allow(600*time.Millisecond), "slow request")
	now = now.Add(2 * time.Second)
	assert.True(t, s.Allow(time.Millisecond), "next tick")

	assert.True(t, newLogSampler(LogSamplingConfig{}).Allow(0))
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	r := gin.New()
	r.Use(RequestID(), RequestLogger(logger, LogSamplingConfig{Tick: time.Hour}))
	r.Use(func(c *gin.Context) {
		c.Set(users.ContextKey, &users.User{Username: "admin"})
	})
	r.GET("/admin/:app/", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for i := 0; i < 3; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/admin/library/", nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2, "sampled to one ok line plus the error")

	var first, last map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &last))
	assert.Equal(t, "/admin/:app/", first["path"])
	assert.Equal(t, "admin", first["user"])
	assert.Equal(t, "info", first["level"])
	assert.NotEmpty(t, first["request_id"])
	assert.Equal(t, "error", last["level"])
	assert.EqualValues(t, 500, last["status"])
}

func TestOptionsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(OptionsMiddleware)
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.OPTIONS("/x", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestInstrumentation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Instrumentation("/metrics"), Instrumentation("/metrics"))
	r.GET("/admin/:app/", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/library/", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
