package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/adonese/adminutils/apperr"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Schema parses the gorm schema of model.
func Schema(db *gorm.DB, model any) (*schema.Schema, error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return nil, err
	}
	return stmt.Schema, nil
}

// PrimaryKey returns obj's primary key value and whether it is zero.
func PrimaryKey(ctx context.Context, db *gorm.DB, obj any) (any, bool, error) {
	sch, err := Schema(db, obj)
	if err != nil {
		return nil, true, err
	}
	if sch.PrioritizedPrimaryField == nil {
		return nil, true, fmt.Errorf("%s has no primary key", sch.Name)
	}
	v, zero := sch.PrioritizedPrimaryField.ValueOf(ctx, reflect.ValueOf(obj))
	return v, zero, nil
}

// FieldValue reads the field of obj named by column or Go field name.
func FieldValue(ctx context.Context, db *gorm.DB, obj any, name string) (any, error) {
	sch, err := Schema(db, obj)
	if err != nil {
		return nil, err
	}
	f := sch.LookUpField(name)
	if f == nil {
		return nil, fmt.Errorf("%s has no field %q", sch.Name, name)
	}
	v, _ := f.ValueOf(ctx, reflect.ValueOf(obj))
	return v, nil
}

// SetFields assigns values, keyed by column or Go field name, onto obj.
func SetFields(ctx context.Context, db *gorm.DB, obj any, values map[string]any) error {
	sch, err := Schema(db, obj)
	if err != nil {
		return err
	}
	rv := reflect.ValueOf(obj)
	for name, v := range values {
		f := sch.LookUpField(name)
		if f == nil {
			return fmt.Errorf("%s has no field %q", sch.Name, name)
		}
		if err := f.Set(ctx, rv, v); err != nil {
			return fmt.Errorf("set %s.%s: %w", sch.Name, name, err)
		}
	}
	return nil
}

// PriorValue loads the stored value of column for the record of model with
// primary key pk. A zero pk or a missing record yields nil.
func PriorValue(ctx context.Context, db *gorm.DB, model any, pk any, column string) (any, error) {
	if pk == nil || reflect.ValueOf(pk).IsZero() {
		return nil, nil
	}
	sch, err := Schema(db, model)
	if err != nil {
		return nil, err
	}
	f := sch.LookUpField(column)
	if f == nil || sch.PrioritizedPrimaryField == nil {
		return nil, fmt.Errorf("%s has no field %q", sch.Name, column)
	}

	obj := reflect.New(sch.ModelType).Interface()
	err = db.WithContext(ctx).
		Select(sch.PrioritizedPrimaryField.DBName, f.DBName).
		Where(map[string]any{sch.PrioritizedPrimaryField.DBName: pk}).
		Take(obj).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrDatabase, "")
	}
	v, _ := f.ValueOf(ctx, reflect.ValueOf(obj))
	return v, nil
}

// AssignRelated points parent's field at child. field may name a belongs-to
// relation (Go or snake-case name) or a plain foreign key column; in both
// cases child's primary key is written to the foreign key.
func AssignRelated(ctx context.Context, db *gorm.DB, parent any, field string, child any) error {
	sch, err := Schema(db, parent)
	if err != nil {
		return err
	}
	childSch, err := Schema(db, child)
	if err != nil {
		return err
	}
	parentVal, childVal := reflect.ValueOf(parent), reflect.ValueOf(child)

	for name, rel := range sch.Relationships.Relations {
		if name != field && db.NamingStrategy.ColumnName("", name) != field {
			continue
		}
		if rel.Type != schema.BelongsTo {
			return fmt.Errorf("%s.%s is a %s relation, not a foreign key", sch.Name, name, rel.Type)
		}
		for _, ref := range rel.References {
			if ref.OwnPrimaryKey || ref.PrimaryKey == nil {
				continue
			}
			v, _ := ref.PrimaryKey.ValueOf(ctx, childVal)
			if err := ref.ForeignKey.Set(ctx, parentVal, v); err != nil {
				return err
			}
		}
		return nil
	}

	target := sch.LookUpField(field)
	if target == nil {
		target = sch.LookUpField(field + "_id")
	}
	if target == nil || childSch.PrioritizedPrimaryField == nil {
		return fmt.Errorf("%s has no field %q", sch.Name, field)
	}
	v, _ := childSch.PrioritizedPrimaryField.ValueOf(ctx, childVal)
	return target.Set(ctx, parentVal, v)
}
