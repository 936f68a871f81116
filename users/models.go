// Package users holds the admin principals and the permission checks the
// dashboard and admin handlers rely on.
package users

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ContextKey is the gin context key the authenticated *User is stored under.
const ContextKey = "adminutils.user"

// Permission grants one action on one app, written "app_label.codename".
type Permission struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	AppLabel string `json:"app_label" gorm:"uniqueIndex:idx_perm_natural_key"`
	Codename string `json:"codename" gorm:"uniqueIndex:idx_perm_natural_key"`
	Name     string `json:"name"`
}

func (p Permission) String() string {
	return p.AppLabel + "." + p.Codename
}

// ParsePermission splits "app_label.codename".
func ParsePermission(s string) (Permission, bool) {
	app, code, ok := strings.Cut(s, ".")
	if !ok || app == "" || code == "" {
		return Permission{}, false
	}
	return Permission{AppLabel: app, Codename: code}, true
}

type Group struct {
	ID          uint         `json:"id" gorm:"primaryKey"`
	Name        string       `json:"name" gorm:"uniqueIndex"`
	Permissions []Permission `json:"permissions" gorm:"many2many:group_permissions"`
}

// User is an admin account.
type User struct {
	gorm.Model
	Username    string       `json:"username" gorm:"uniqueIndex"`
	Password    string       `json:"-"`
	IsActive    bool         `json:"is_active"`
	IsSuperuser bool         `json:"is_superuser"`
	Groups      []Group      `json:"groups" gorm:"many2many:user_groups"`
	Permissions []Permission `json:"permissions" gorm:"many2many:user_permissions"`

	perms map[string]struct{}
}

// HashPassword replaces the plain-text password with its bcrypt hash.
func (u *User) HashPassword() error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashed)
	return nil
}

// CheckPassword compares plain against the stored hash.
func (u *User) CheckPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(plain)) == nil
}

// SetPermissions replaces the resolved permission set.
func (u *User) SetPermissions(perms []string) {
	u.perms = make(map[string]struct{}, len(perms))
	for _, p := range perms {
		u.perms[p] = struct{}{}
	}
}

// AllPermissions returns the direct and group permissions, deduplicated.
// A set installed by SetPermissions takes precedence.
func (u *User) AllPermissions() []string {
	if u.perms == nil {
		u.SetPermissions(permissionsOf(u))
	}
	out := make([]string, 0, len(u.perms))
	for p := range u.perms {
		out = append(out, p)
	}
	return out
}

func permissionsOf(u *User) []string {
	var out []string
	for _, p := range u.Permissions {
		out = append(out, p.String())
	}
	for _, g := range u.Groups {
		for _, p := range g.Permissions {
			out = append(out, p.String())
		}
	}
	return out
}

// HasPerm reports whether an active user holds perm. Superusers hold all.
func (u *User) HasPerm(perm string) bool {
	if u == nil || !u.IsActive {
		return false
	}
	if u.IsSuperuser {
		return true
	}
	if u.perms == nil {
		u.SetPermissions(permissionsOf(u))
	}
	_, ok := u.perms[perm]
	return ok
}

// HasPerms reports whether the user holds every perm.
func (u *User) HasPerms(perms ...string) bool {
	for _, p := range perms {
		if !u.HasPerm(p) {
			return false
		}
	}
	return true
}

// InGroup reports membership by group name.
func (u *User) InGroup(name string) bool {
	if u == nil {
		return false
	}
	for _, g := range u.Groups {
		if g.Name == name {
			return true
		}
	}
	return false
}
