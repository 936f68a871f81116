package admin

import (
	"fmt"
	"strings"

	"github.com/adonese/adminutils/apperr"
	"github.com/adonese/adminutils/store"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	redirectParam      = "_redirect"
	relatedObjectParam = "_related_object"
	txKey              = "adminutils.tx"
)

// DB returns the transaction the current add runs in, or fallback outside
// one. Post-save handlers that write must use it.
func DB(c *gin.Context, fallback *gorm.DB) *gorm.DB {
	if v, ok := c.Get(txKey); ok {
		if tx, ok := v.(*gorm.DB); ok && tx != nil {
			return tx
		}
	}
	return fallback
}

// Redirectable sends the browser to the URL in the _redirect query parameter
// after a successful add, change or delete. A delete whose default response
// is not a redirect (e.g. the confirmation page) is left alone.
type Redirectable struct{}

func (Redirectable) ResponseAdd(c *gin.Context, _ any, resp Response) (Response, error) {
	if to, ok := c.GetQuery(redirectParam); ok {
		return redirect(to), nil
	}
	return resp, nil
}

func (Redirectable) ResponseChange(c *gin.Context, _ any, resp Response) (Response, error) {
	if to, ok := c.GetQuery(redirectParam); ok {
		return redirect(to), nil
	}
	return resp, nil
}

func (Redirectable) ResponseDelete(c *gin.Context, resp Response) (Response, error) {
	if to, ok := c.GetQuery(redirectParam); ok && resp.IsRedirect() {
		return redirect(to), nil
	}
	return resp, nil
}

// RelatedObjectLinker points a field of an existing record at the object
// just added. The target comes from the _related_object query parameter:
// "<app_label> <model> <pk> <field>". Change responses pass through.
//
// Place it before Redirectable in PostSave so _redirect still applies.
type RelatedObjectLinker struct {
	DB       *gorm.DB
	Registry *store.Registry
}

// RelatedObject is a parsed _related_object descriptor.
type RelatedObject struct {
	AppLabel string
	Model    string
	PK       string
	Field    string
}

// ParseRelatedObject splits a descriptor into its four space separated parts.
func ParseRelatedObject(s string) (RelatedObject, error) {
	parts := strings.Split(s, " ")
	if len(parts) != 4 {
		return RelatedObject{}, fmt.Errorf("related object %q: want 4 space separated values, got %d", s, len(parts))
	}
	return RelatedObject{AppLabel: parts[0], Model: parts[1], PK: parts[2], Field: parts[3]}, nil
}

func (l RelatedObjectLinker) ResponseAdd(c *gin.Context, obj any, resp Response) (Response, error) {
	raw, ok := c.GetQuery(relatedObjectParam)
	if !ok {
		return resp, nil
	}
	if err := l.Link(c, raw, obj); err != nil {
		return resp, apperr.Wrap(err, apperr.ErrRelatedObject, err.Error())
	}
	return resp, nil
}

func (RelatedObjectLinker) ResponseChange(_ *gin.Context, _ any, resp Response) (Response, error) {
	return resp, nil
}

// Link resolves the descriptor, assigns obj to the named field and saves the
// related record.
func (l RelatedObjectLinker) Link(c *gin.Context, descriptor string, obj any) error {
	ro, err := ParseRelatedObject(descriptor)
	if err != nil {
		return err
	}
	ct, err := l.Registry.GetByNaturalKey(ro.AppLabel, ro.Model)
	if err != nil {
		return err
	}
	ctx := c.Request.Context()
	db := DB(c, l.DB)
	related, err := ct.GetObject(ctx, db, ro.PK)
	if err != nil {
		return err
	}
	if err := store.AssignRelated(ctx, db, related, ro.Field, obj); err != nil {
		return err
	}
	return db.WithContext(ctx).Omit(clause.Associations).Save(related).Error
}
