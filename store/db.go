package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const defaultPath = "adminutils.db"

// Open opens the sqlite database at path and checks it answers.
func Open(path string, opts ...Option) (*gorm.DB, error) {
	options := StoreOptions{LogLevel: logger.Warn, SlowThreshold: 200 * time.Millisecond}
	for _, opt := range opts {
		opt(&options)
	}

	path = strings.TrimSpace(path)
	if path == "" {
		path = defaultPath
	}

	cfg := &gorm.Config{Logger: newGormLogger(options)}

	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite serialises writers; one connection avoids "database is locked".
	sqlDB.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// newGormLogger routes gorm's log through logrus, the standard logger when
// none was given, at the configured level.
func newGormLogger(options StoreOptions) logger.Interface {
	out := options.Logger
	if out == nil {
		out = logrus.StandardLogger()
	}
	return logger.New(out, logger.Config{
		SlowThreshold:             options.SlowThreshold,
		LogLevel:                  options.LogLevel,
		IgnoreRecordNotFoundError: true,
	})
}
