// Package document models a generic business record loaded from storage.
package document

import (
	"fmt"
	"strconv"
	"time"
)

// Document is one row of a target record type, with its field values keyed by
// column name.
type Document struct {
	Doctype string
	Name    string
	Fields  map[string]interface{}
}

// Get returns the raw field value, or nil when the field is absent.
func (d *Document) Get(field string) interface{} {
	if d.Fields == nil {
		return nil
	}
	return d.Fields[field]
}

// GetString returns the field value as a plain string, empty for nil.
func (d *Document) GetString(field string) string {
	v := d.Get(field)
	if v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return fmt.Sprintf("%v", v)
}

// GetFormatted renders the field value the way the record would display it:
// dates as 2006-01-02, timestamps with the time part, floats without
// exponent noise, nil as empty.
func (d *Document) GetFormatted(field string) string {
	v := d.Get(field)
	switch val := v.(type) {
	case nil:
		return ""
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 {
			return val.Format("2006-01-02")
		}
		return val.Format("2006-01-02 15:04:05")
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case bool:
		if val {
			return "1"
		}
		return "0"
	case []byte:
		return string(val)
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}
