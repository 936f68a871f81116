package users

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/adonese/adminutils/apperr"
	"github.com/adonese/adminutils/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

type memCache struct {
	data  map[uint][]string
	reads int
}

func (m *memCache) Get(id uint) ([]string, bool, error) {
	m.reads++
	v, ok := m.data[id]
	return v, ok, nil
}

func (m *memCache) Set(id uint, perms []string) error {
	m.data[id] = perms
	return nil
}

func (m *memCache) Delete(id uint) error {
	delete(m.data, id)
	return nil
}

func TestUser_HasPerms(t *testing.T) {
	editors := Group{Name: "editors", Permissions: []Permission{{AppLabel: "library", Codename: "change_book"}}}
	tests := []struct {
		name  string
		user  *User
		perms []string
		want  bool
	}{
		{"superuser", &User{IsActive: true, IsSuperuser: true}, []string{"linkcheck.change_link"}, true},
		{"inactive superuser", &User{IsSuperuser: true}, []string{"linkcheck.change_link"}, false},
		{"direct", &User{IsActive: true, Permissions: []Permission{{AppLabel: "linkcheck", Codename: "change_link"}}}, []string{"linkcheck.change_link"}, true},
		{"via group", &User{IsActive: true, Groups: []Group{editors}}, []string{"library.change_book"}, true},
		{"missing one", &User{IsActive: true, Groups: []Group{editors}}, []string{"library.change_book", "library.delete_book"}, false},
		{"none required", &User{IsActive: true}, nil, true},
		{"nil user", nil, []string{"library.change_book"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.HasPerms(tt.perms...); got != tt.want {
				t.Errorf("HasPerms() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUser_InGroup(t *testing.T) {
	u := &User{Groups: []Group{{Name: "editors"}}}
	assert.True(t, u.InGroup("editors"))
	assert.False(t, u.InGroup("admins"))
	var nilUser *User
	assert.False(t, nilUser.InGroup("editors"))
}

func TestParsePermission(t *testing.T) {
	p, ok := ParsePermission("linkcheck.change_link")
	require.True(t, ok)
	assert.Equal(t, Permission{AppLabel: "linkcheck", Codename: "change_link"}, p)
	for _, bad := range []string{"", "linkcheck", ".x", "x."} {
		_, ok := ParsePermission(bad)
		assert.False(t, ok, bad)
	}
}

func TestStore_LoadResolvesAndCachesPermissions(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	cache := &memCache{data: map[uint][]string{}}
	s := NewStore(db, cache, nil)

	link, err := s.EnsurePermission(ctx, "linkcheck.change_link")
	require.NoError(t, err)
	again, err := s.EnsurePermission(ctx, "linkcheck.change_link")
	require.NoError(t, err)
	assert.Equal(t, link.ID, again.ID)
	book, err := s.EnsurePermission(ctx, "library.change_book")
	require.NoError(t, err)

	group := Group{Name: "editors", Permissions: []Permission{*book}}
	require.NoError(t, db.Create(&group).Error)

	u := &User{Username: "amna", Password: "s3cret-pass", IsActive: true, Groups: []Group{group}, Permissions: []Permission{*link}}
	require.NoError(t, s.Create(ctx, u))

	loaded, err := s.ByUsername(ctx, "amna")
	require.NoError(t, err)
	got := loaded.AllPermissions()
	sort.Strings(got)
	assert.Equal(t, []string{"library.change_book", "linkcheck.change_link"}, got)
	assert.True(t, loaded.InGroup("editors"))
	assert.Equal(t, []string{"library.change_book", "linkcheck.change_link"}, cache.data[loaded.ID])

	// a cached set wins over the database
	cache.data[loaded.ID] = []string{"only.this"}
	cached, err := s.ByID(ctx, loaded.ID)
	require.NoError(t, err)
	assert.True(t, cached.HasPerm("only.this"))
	assert.False(t, cached.HasPerm("linkcheck.change_link"))

	require.NoError(t, s.Invalidate(loaded.ID))
	_, ok := cache.data[loaded.ID]
	assert.False(t, ok)
}

func TestStore_Authenticate(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newTestDB(t), nil, nil)
	require.NoError(t, s.Create(ctx, &User{Username: "amna", Password: "s3cret-pass", IsActive: true}))
	require.NoError(t, s.Create(ctx, &User{Username: "gone", Password: "s3cret-pass"}))

	u, err := s.Authenticate(ctx, "amna", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, "amna", u.Username)

	tests := []struct {
		name, user, pass string
	}{
		{"wrong password", "amna", "nope"},
		{"unknown user", "nobody", "s3cret-pass"},
		{"inactive", "gone", "s3cret-pass"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Authenticate(ctx, tt.user, tt.pass)
			assert.True(t, errors.Is(err, apperr.ErrUnauthorized), "got %v", err)
		})
	}
}

func TestRedisPermCache(t *testing.T) {
	addr := os.Getenv("ADMINUTILS_TEST_REDIS")
	if addr == "" {
		t.Skip("ADMINUTILS_TEST_REDIS not set")
	}
	client := utils.GetRedis(addr, 0)
	defer client.Close()
	require.NoError(t, utils.PingRedis(client))

	c := NewRedisPermCache(client, time.Minute)
	c.Prefix = "adminutils:test:perms:"
	require.NoError(t, c.Set(7, nil))
	perms, ok, err := c.Get(7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, perms)

	require.NoError(t, c.Delete(7))
	_, ok, err = c.Get(7)
	require.NoError(t, err)
	assert.False(t, ok)
}
