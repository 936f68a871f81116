package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/adonese/adminutils/apperr"
	"gorm.io/gorm"
)

// ContentType names a registered model by its natural key (app label, model).
type ContentType struct {
	AppLabel string
	Model    string
	typ      reflect.Type
}

// NaturalKey is "app_label.model".
func (ct ContentType) NaturalKey() string {
	return ct.AppLabel + "." + ct.Model
}

// New returns a pointer to a zero value of the model.
func (ct ContentType) New() any {
	return reflect.New(ct.typ).Interface()
}

// NewSlice returns a pointer to an empty slice of the model.
func (ct ContentType) NewSlice() any {
	return reflect.New(reflect.SliceOf(ct.typ)).Interface()
}

// GetObject loads the record with primary key pk. pk is always bound as a
// value, never read as a SQL condition.
func (ct ContentType) GetObject(ctx context.Context, db *gorm.DB, pk any) (any, error) {
	obj := ct.New()
	sch, err := Schema(db, obj)
	if err != nil {
		return nil, err
	}
	if sch.PrioritizedPrimaryField == nil {
		return nil, fmt.Errorf("%s has no primary key", ct.NaturalKey())
	}
	err = db.WithContext(ctx).
		Where(map[string]any{sch.PrioritizedPrimaryField.DBName: pk}).
		Take(obj).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Wrap(err, apperr.ErrNotFound, fmt.Sprintf("%s %v not found", ct.NaturalKey(), pk))
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrDatabase, "")
	}
	return obj, nil
}

// Registry maps natural keys to model types. It is filled at startup.
type Registry struct {
	mu     sync.RWMutex
	byKey  map[string]ContentType
	byType map[reflect.Type]ContentType
}

func NewRegistry() *Registry {
	return &Registry{
		byKey:  map[string]ContentType{},
		byType: map[reflect.Type]ContentType{},
	}
}

// Register adds model under appLabel. The model name is the lower-cased Go
// type name, e.g. &Book{} registers "book".
func (r *Registry) Register(appLabel string, model any) ContentType {
	t := reflect.TypeOf(model)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	ct := ContentType{AppLabel: appLabel, Model: strings.ToLower(t.Name()), typ: t}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey[ct.NaturalKey()] = ct
	r.byType[t] = ct
	return ct
}

// GetByNaturalKey resolves a registered model.
func (r *Registry) GetByNaturalKey(appLabel, model string) (ContentType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ct, ok := r.byKey[appLabel+"."+strings.ToLower(model)]
	if !ok {
		return ContentType{}, apperr.New(apperr.ErrUnknownModel.Code, apperr.ErrUnknownModel.Status,
			fmt.Sprintf("no model registered as %s.%s", appLabel, model))
	}
	return ct, nil
}

// ForModel returns the content type of a model value.
func (r *Registry) ForModel(model any) (ContentType, bool) {
	t := reflect.TypeOf(model)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	ct, ok := r.byType[t]
	return ct, ok
}

// All returns the registered content types sorted by natural key.
func (r *Registry) All() []ContentType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ContentType, 0, len(r.byKey))
	for _, ct := range r.byKey {
		out = append(out, ct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NaturalKey() < out[j].NaturalKey() })
	return out
}

// Models returns a zero value of every registered model, for migration.
func (r *Registry) Models() []any {
	all := r.All()
	out := make([]any, 0, len(all))
	for _, ct := range all {
		out = append(out, ct.New())
	}
	return out
}
