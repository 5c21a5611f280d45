package dbtypes

import (
	"database/sql/driver"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// TextArray is a Postgres text[] column that degrades to TEXT on SQLite.
type TextArray []string

func (a *TextArray) Scan(src any) error {
	var inner pq.StringArray
	if err := inner.Scan(src); err != nil {
		return err
	}
	if inner == nil {
		inner = pq.StringArray{}
	}
	*a = TextArray(inner)
	return nil
}

func (a TextArray) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	return pq.StringArray(a).Value()
}

// GormDBDataType picks the column type per dialect for AutoMigrate.
func (TextArray) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "sqlite" {
		return "text"
	}
	return "text[]"
}
