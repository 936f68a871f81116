package admin

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"reflect"
	"time"

	"github.com/adonese/adminutils/apperr"
	"github.com/adonese/adminutils/store"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	exportSheet     = "Sheet1"
)

func deleteSelectedAction() Action {
	return Action{
		Name:        "delete_selected",
		Description: "Delete selected rows",
		Run: func(c *gin.Context, ma *ModelAdmin, selected *gorm.DB) error {
			res := selected.Delete(ma.ContentType.New())
			if res.Error != nil {
				return apperr.Wrap(res.Error, apperr.ErrDatabase, "")
			}
			return nil
		},
	}
}

// XLSXExportAction downloads the selected rows as an Excel workbook.
func XLSXExportAction() Action {
	return Action{
		Name:        "xlsx_export",
		Description: "Export selected rows to Excel",
		Run:         exportXLSX,
	}
}

// ExportFilename is "<model>-<YYYY-MM-DD>.xlsx".
func (ma *ModelAdmin) ExportFilename() string {
	return fmt.Sprintf("%s-%s.xlsx", ma.ContentType.Model, ma.now().Format("2006-01-02"))
}

func exportXLSX(c *gin.Context, ma *ModelAdmin, selected *gorm.DB) error {
	rows := ma.ContentType.NewSlice()
	if err := selected.Find(rows).Error; err != nil {
		return apperr.Wrap(err, apperr.ErrDatabase, "")
	}
	data, err := ma.ExportXLSX(c.Request.Context(), selected, rows)
	if err != nil {
		return apperr.Wrap(err, apperr.ErrExport, "")
	}
	c.Header("Content-Disposition", "attachment; filename="+ma.ExportFilename())
	c.Data(http.StatusOK, xlsxContentType, data)
	return nil
}

// ExportXLSX renders rows, a pointer to a slice of the model, as a workbook
// with a header row of column names followed by one row per record.
func (ma *ModelAdmin) ExportXLSX(ctx context.Context, db *gorm.DB, rows any) ([]byte, error) {
	sch, err := store.Schema(db, ma.ContentType.New())
	if err != nil {
		return nil, err
	}
	columns, err := exportColumns(sch, ma.ListDisplay)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	header := make([]any, len(columns))
	for i, col := range columns {
		header[i] = col.DBName
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return nil, err
	}

	list := reflect.Indirect(reflect.ValueOf(rows))
	for i := 0; i < list.Len(); i++ {
		item := list.Index(i)
		if item.Kind() != reflect.Ptr {
			item = item.Addr()
		}
		row := make([]any, len(columns))
		for j, col := range columns {
			v, _ := col.ValueOf(ctx, item)
			row[j] = cellValue(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}

func exportColumns(sch *schema.Schema, names []string) ([]*schema.Field, error) {
	if len(names) == 0 {
		out := make([]*schema.Field, 0, len(sch.DBNames))
		for _, name := range sch.DBNames {
			out = append(out, sch.FieldsByDBName[name])
		}
		return out, nil
	}
	out := make([]*schema.Field, 0, len(names))
	for _, name := range names {
		f := sch.LookUpField(name)
		if f == nil || f.DBName == "" {
			return nil, fmt.Errorf("%s has no column %q", sch.Name, name)
		}
		out = append(out, f)
	}
	return out, nil
}

func cellValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC().Format(time.RFC3339)
	case time.Time:
		if t.IsZero() {
			return nil
		}
		return t.UTC().Format(time.RFC3339)
	case gorm.DeletedAt:
		if !t.Valid {
			return nil
		}
		return t.Time.UTC().Format(time.RFC3339)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		return rv.Elem().Interface()
	}
	return v
}
