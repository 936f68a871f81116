package listfilter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/adonese/adminutils/apperr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// applyLookups narrows db by the lookup params owned by a single column.
func applyLookups(db *gorm.DB, path string, used map[string]string) (*gorm.DB, error) {
	keys := make([]string, 0, len(used))
	for k := range used {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	col := clause.Column{Name: path}
	for _, k := range keys {
		v := used[k]
		switch strings.TrimPrefix(k, path) {
		case suffixGte:
			db = db.Where(clause.Gte{Column: col, Value: v})
		case suffixLt:
			db = db.Where(clause.Lt{Column: col, Value: v})
		case suffixIsNull:
			isNull, err := strconv.ParseBool(v)
			if err != nil {
				return db, apperr.Wrap(err, apperr.ErrBadRequest, fmt.Sprintf("invalid value %q for %s", v, k))
			}
			if isNull {
				db = db.Where(clause.Eq{Column: col, Value: nil})
			} else {
				db = db.Where(clause.Neq{Column: col, Value: nil})
			}
		default:
			return db, apperr.New(apperr.ErrBadRequest.Code, apperr.ErrBadRequest.Status, "unsupported lookup "+k)
		}
	}
	return db, nil
}

// ApplyAll runs every filter against db in order, stopping at the first error.
func ApplyAll(db *gorm.DB, filters []ListFilter) (*gorm.DB, error) {
	var err error
	for _, f := range filters {
		if db, err = f.Apply(db); err != nil {
			return db, err
		}
	}
	return db, nil
}
