package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/adonese/adminutils/admin"
	gateway "github.com/adonese/adminutils/apigateway"
	"github.com/adonese/adminutils/apperr"
	"github.com/adonese/adminutils/dashboard"
	"github.com/adonese/adminutils/store"
	"github.com/adonese/adminutils/users"
	"github.com/adonese/adminutils/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v7"
	"github.com/sirupsen/logrus"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"gorm.io/gorm"
)

// app holds everything the HTTP engine is built from.
type app struct {
	cfg      Config
	sampling gateway.LogSamplingConfig
	logger   *logrus.Logger

	db    *gorm.DB
	redis *redis.Client
	users *users.Store
	site  *admin.Site
	dash  *dashboard.Dashboard
	auth  *gateway.Auth
}

func newApp(ctx context.Context, cfg Config, sampling gateway.LogSamplingConfig, logger *logrus.Logger) (*app, error) {
	a := &app{cfg: cfg, sampling: sampling, logger: logger}

	db, err := store.Open(cfg.DatabasePath, store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.db = db

	a.site = admin.NewSite(db, nil, logger)
	a.site.Prefix = cfg.AdminPrefix
	registerLibrary(a.site)

	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	models := append(users.Models(), a.site.Registry.Models()...)
	if err := store.Migrate(migrateCtx, db, models...); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	var permCache users.PermCache
	var linkStatus dashboard.StatusSource
	if cfg.RedisAddr != "" {
		client := utils.GetRedis(cfg.RedisAddr, cfg.RedisDB)
		if err := utils.PingRedis(client); err != nil {
			logger.WithFields(logrus.Fields{
				"error": err.Error(),
				"addr":  cfg.RedisAddr,
			}).Warn("redis unavailable, running without permission cache and link status")
			_ = client.Close()
		} else {
			a.redis = client
			permCache = users.NewRedisPermCache(client, cfg.PermCacheTTL())
			linkStatus = dashboard.NewRedisLinkStatus(client)
		}
	}
	a.users = users.NewStore(db, permCache, logger)

	if err := a.bootstrapUser(ctx); err != nil {
		return nil, err
	}

	key := []byte(cfg.JWTSecret)
	if len(key) == 0 {
		logger.Warn(errNoJWTSecret.Error())
		if key, err = gateway.GenerateSecretKey(32); err != nil {
			return nil, err
		}
	}
	a.auth = &gateway.Auth{
		JWT:    &gateway.JWTAuth{Key: key, Issuer: "adminutils", TTL: cfg.TokenTTL()},
		Users:  a.users,
		Logger: logger,
	}

	a.dash = a.newDashboard(linkStatus)
	return a, nil
}

// bootstrapUser creates the configured superuser on first start.
func (a *app) bootstrapUser(ctx context.Context) error {
	if a.cfg.BootstrapUser == "" {
		return nil
	}
	_, err := a.users.ByUsername(ctx, a.cfg.BootstrapUser)
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	u := &users.User{Username: a.cfg.BootstrapUser, Password: a.cfg.BootstrapPassword, IsActive: true, IsSuperuser: true}
	if err := a.users.Create(ctx, u); err != nil {
		return fmt.Errorf("create bootstrap user: %w", err)
	}
	a.logger.WithField("username", u.Username).Info("created bootstrap superuser")
	return nil
}

func (a *app) newDashboard(linkStatus dashboard.StatusSource) *dashboard.Dashboard {
	prefix := a.cfg.AdminPrefix
	d := dashboard.New(a.cfg.DashboardTitle,
		&dashboard.LinkList{
			Title: "Library",
			Children: []dashboard.Link{
				{Title: "Authors", URL: prefix + "/library/author/"},
				{Title: "Books", URL: prefix + "/library/book/"},
			},
		},
		dashboard.Linkcheck(a.cfg.LinkcheckURL, linkStatus),
		&dashboard.PermCheckingLinkList{
			LinkList: dashboard.LinkList{
				Title:       "Exports",
				PreContent:  "Select rows in a changelist and run the Excel export action.",
				Children:    []dashboard.Link{{Title: "Books", URL: prefix + "/library/book/"}},
				PostContent: "Exports include the changelist columns only.",
			},
			RequiredPerms: []string{"library.view_book", "library.change_book"},
		},
		&dashboard.GroupCheckingLinkList{
			LinkList: dashboard.LinkList{
				Title: "Editorial",
				Children: []dashboard.Link{
					{Title: "Unpublished books", URL: prefix + "/library/book/?published_at__isnull=True"},
					{Title: "Awaiting review", URL: prefix + "/library/book/?reviewed_at__isnull=True"},
					{Title: "Style guide", URL: "https://www.chicagomanualofstyle.org/", External: true},
				},
			},
			RequiredGroup: "editors",
		},
	)
	d.Columns = a.cfg.DashboardColumns
	d.Logger = a.logger
	return d
}

// engine wires every route of the service.
func (a *app) engine() *gin.Engine {
	route := gin.New()
	route.HTMLRender = dashboard.Renderer()
	route.Use(gin.Recovery())
	route.Use(gateway.RequestID())
	route.Use(gateway.RequestLogger(a.logger, a.sampling))
	route.Use(gateway.OptionsMiddleware)
	route.Use(gateway.Instrumentation("/metrics"))

	p := ginprometheus.NewPrometheus("gin")
	p.ReqCntURLLabelMappingFn = func(c *gin.Context) string {
		if path := c.FullPath(); path != "" {
			return path
		}
		return "unmatched"
	}
	p.Use(route)

	route.GET("/healthz", a.health)
	route.POST("/login", a.auth.Login)

	authed := route.Group("", a.auth.AuthMiddleware())
	authed.GET(a.cfg.AdminPrefix+"/", a.dash.Handler())
	authed.GET(tagAutocompletePath, a.tagAutocomplete)
	a.site.Routes(authed)
	return route
}

func (a *app) health(c *gin.Context) {
	status := gin.H{"database": "ok"}
	code := http.StatusOK
	if sqlDB, err := a.db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		status["database"] = "unavailable"
		code = http.StatusServiceUnavailable
	}
	if a.redis != nil {
		status["redis"] = "ok"
		if err := utils.PingRedis(a.redis); err != nil {
			status["redis"] = "unavailable"
		}
	}
	c.JSON(code, status)
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if err := store.Close(a.db); err != nil {
		a.logger.WithField("error", err.Error()).Warn("closing database")
	}
}
