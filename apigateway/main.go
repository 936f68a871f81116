// Package gateway holds the HTTP middleware that sits in front of the admin:
// authentication, request ids, request logging, CORS and instrumentation.
package gateway

import (
	"context"
	"net/http"
	"strings"

	"github.com/adonese/adminutils/apperr"
	"github.com/adonese/adminutils/users"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// UserSource is what the auth middleware needs from the user store.
type UserSource interface {
	Authenticate(ctx context.Context, username, password string) (*users.User, error)
	ByUsername(ctx context.Context, username string) (*users.User, error)
}

// Auth resolves the admin user from a bearer token or HTTP Basic credentials.
type Auth struct {
	JWT    *JWTAuth
	Users  UserSource
	Logger *logrus.Logger
}

type loginRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// AuthMiddleware stores the authenticated *users.User under users.ContextKey
// or aborts with 401.
func (a *Auth) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := a.resolve(c)
		if err != nil {
			a.Logger.WithFields(logrus.Fields{
				"error":      err.Error(),
				"request_id": RequestIDFromCtx(c),
				"path":       c.Request.URL.Path,
			}).Info("admin authentication failed")
			c.AbortWithStatusJSON(apperr.Status(err), apperr.Payload(err))
			return
		}
		c.Set(users.ContextKey, u)
		c.Next()
	}
}

func (a *Auth) resolve(c *gin.Context) (*users.User, error) {
	ctx := c.Request.Context()
	h := strings.TrimSpace(c.GetHeader("Authorization"))
	if h == "" {
		return nil, apperr.New(apperr.ErrUnauthorized.Code, http.StatusUnauthorized, "empty header was sent")
	}
	if username, password, ok := c.Request.BasicAuth(); ok {
		return a.Users.Authenticate(ctx, username, password)
	}
	scheme, token, _ := strings.Cut(h, " ")
	if !strings.EqualFold(scheme, "bearer") || a.JWT == nil {
		return nil, apperr.New(apperr.ErrUnauthorized.Code, http.StatusUnauthorized, "unsupported authorization scheme")
	}
	claims, err := a.JWT.VerifyJWT(strings.TrimSpace(token))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrUnauthorized, err.Error())
	}
	u, err := a.Users.ByUsername(ctx, claims.Username)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrUnauthorized, "unknown user")
	}
	if !u.IsActive {
		return nil, apperr.New(apperr.ErrUnauthorized.Code, http.StatusUnauthorized, "inactive user")
	}
	return u, nil
}

// Login exchanges username and password for a bearer token.
func (a *Auth) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, apperr.Payload(apperr.Wrap(err, apperr.ErrValidation, "username and password are required")))
		return
	}
	u, err := a.Users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.AbortWithStatusJSON(apperr.Status(err), apperr.Payload(err))
		return
	}
	token, err := a.JWT.GenerateJWT(u.Username)
	if err != nil {
		a.Logger.WithFields(logrus.Fields{"error": err.Error()}).Error("unable to sign token")
		c.AbortWithStatusJSON(http.StatusInternalServerError, apperr.Payload(apperr.Wrap(err, apperr.ErrInternal, "unable to sign token")))
		return
	}
	c.Header("Authorization", "Bearer "+token)
	c.JSON(http.StatusOK, gin.H{"authorization": token, "username": u.Username})
}

//OptionsMiddleware for cors headers
func OptionsMiddleware(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	if c.Request.Method != http.MethodOptions {
		c.Next()
		return
	}
	c.Header("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	c.Header("Access-Control-Allow-Headers", "authorization, origin, content-type, accept, X-CSRF-TOKEN, X-Request-ID")
	c.Header("Allow", "HEAD,GET,POST,PUT,PATCH,DELETE,OPTIONS")
	c.Header("Content-Type", "application/json")
	c.AbortWithStatus(http.StatusOK)
}
