package users

import (
	"context"
	"errors"
	"sort"

	"github.com/adonese/adminutils/apperr"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store loads and persists admin users.
type Store struct {
	DB     *gorm.DB
	Cache  PermCache
	Logger *logrus.Logger
}

func NewStore(db *gorm.DB, cache PermCache, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.New()
	}
	return &Store{DB: db, Cache: cache, Logger: logger}
}

// Models lists the tables this package owns, for migration.
func Models() []any {
	return []any{&Permission{}, &Group{}, &User{}}
}

// Create hashes the password and inserts the user with its associations.
func (s *Store) Create(ctx context.Context, u *User) error {
	if err := u.HashPassword(); err != nil {
		return apperr.Wrap(err, apperr.ErrInternal, "hash password")
	}
	if err := s.DB.WithContext(ctx).Create(u).Error; err != nil {
		return apperr.Wrap(err, apperr.ErrDatabase, "")
	}
	return nil
}

// EnsurePermission returns the permission row for "app_label.codename",
// creating it when missing.
func (s *Store) EnsurePermission(ctx context.Context, perm string) (*Permission, error) {
	p, ok := ParsePermission(perm)
	if !ok {
		return nil, apperr.New(apperr.ErrBadRequest.Code, apperr.ErrBadRequest.Status, "malformed permission "+perm)
	}
	err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&p).Error
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrDatabase, "")
	}
	if err := s.DB.WithContext(ctx).Where("app_label = ? AND codename = ?", p.AppLabel, p.Codename).First(&p).Error; err != nil {
		return nil, apperr.Wrap(err, apperr.ErrDatabase, "")
	}
	return &p, nil
}

// ByUsername loads an active or inactive user with groups and resolved
// permissions.
func (s *Store) ByUsername(ctx context.Context, username string) (*User, error) {
	return s.load(ctx, s.DB.WithContext(ctx).Where("username = ?", username))
}

// ByID loads a user by primary key.
func (s *Store) ByID(ctx context.Context, id uint) (*User, error) {
	return s.load(ctx, s.DB.WithContext(ctx).Where("id = ?", id))
}

func (s *Store) load(ctx context.Context, q *gorm.DB) (*User, error) {
	var u User
	err := q.Preload("Groups").First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Wrap(err, apperr.ErrNotFound, "user not found")
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrDatabase, "")
	}
	perms, err := s.permissions(ctx, &u)
	if err != nil {
		return nil, err
	}
	u.SetPermissions(perms)
	return &u, nil
}

func (s *Store) permissions(ctx context.Context, u *User) ([]string, error) {
	if s.Cache != nil {
		if perms, ok, err := s.Cache.Get(u.ID); err != nil {
			s.Logger.WithFields(logrus.Fields{
				"error":   err.Error(),
				"user_id": u.ID,
			}).Warn("permission cache read failed")
		} else if ok {
			return perms, nil
		}
	}

	var full User
	err := s.DB.WithContext(ctx).
		Preload("Permissions").
		Preload("Groups.Permissions").
		First(&full, u.ID).Error
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrDatabase, "")
	}
	perms := permissionsOf(&full)
	sort.Strings(perms)

	if s.Cache != nil {
		if err := s.Cache.Set(u.ID, perms); err != nil {
			s.Logger.WithFields(logrus.Fields{
				"error":   err.Error(),
				"user_id": u.ID,
			}).Warn("permission cache write failed")
		}
	}
	return perms, nil
}

// Authenticate checks username/password for an active user.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*User, error) {
	u, err := s.ByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Wrap(err, apperr.ErrUnauthorized, "invalid credentials")
		}
		return nil, err
	}
	if !u.IsActive || !u.CheckPassword(password) {
		return nil, apperr.New(apperr.ErrUnauthorized.Code, apperr.ErrUnauthorized.Status, "invalid credentials")
	}
	return u, nil
}

// Invalidate drops any cached permissions of a user.
func (s *Store) Invalidate(id uint) error {
	if s.Cache == nil {
		return nil
	}
	return s.Cache.Delete(id)
}
