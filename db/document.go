package db

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Document is a schema-less record
type Document map[string]interface{}

// ID returns the identifier of d, or "" if it has none
func (d Document) ID() string {
	id, _ := d[IDField].(string)
	return id
}

// Clone returns a shallow copy of d
func (d Document) Clone() Document {
	clone := make(Document, len(d))
	for k, v := range d {
		clone[k] = v
	}
	return clone
}

// WithoutID returns a copy of d without IDField
func (d Document) WithoutID() Document {
	clone := d.Clone()
	delete(clone, IDField)
	return clone
}

// apply sets every field of patch on a copy of d and reports whether
// anything changed
func (d Document) apply(patch Document) (Document, bool) {
	merged := d.Clone()
	for k, v := range patch {
		merged[k] = v
	}
	return merged, !sameJSON(d, merged)
}

func sameJSON(a, b Document) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

func (d *Document) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case nil:
		*d = make(Document)
		return nil
	default:
		return fmt.Errorf("Failed to unmarshal jsonb value: %v", value)
	}
	if len(raw) == 0 {
		*d = make(Document)
		return nil
	}
	return json.Unmarshal(raw, d)
}

func (d Document) Value() (driver.Value, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

func (Document) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "mysql", "sqlite":
		return "JSON"
	case "postgres":
		return "JSONB"
	}
	return ""
}
