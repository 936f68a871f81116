package store

import (
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm/logger"
)

// Option configures how the database is opened.
type Option func(*StoreOptions)

// StoreOptions carries optional configuration for Open.
type StoreOptions struct {
	Logger        *logrus.Logger
	LogLevel      logger.LogLevel
	SlowThreshold time.Duration
}

// WithLogger routes gorm's SQL log through a logrus logger.
func WithLogger(l *logrus.Logger) Option {
	return func(opts *StoreOptions) {
		opts.Logger = l
	}
}

// WithLogLevel sets gorm's log level, e.g. logger.Info to trace every query.
func WithLogLevel(level logger.LogLevel) Option {
	return func(opts *StoreOptions) {
		opts.LogLevel = level
	}
}

// WithSlowThreshold reports queries slower than d as warnings.
func WithSlowThreshold(d time.Duration) Option {
	return func(opts *StoreOptions) {
		opts.SlowThreshold = d
	}
}
