package passes

import (
	"encoding/json"
	"fmt"
	"time"
)

var dateLayouts = []string{"2006-01-02", time.RFC3339}
var timeLayouts = []string{"15:04:05.999999", "15:04:05", "15:04:05.999999Z07:00"}
var timestampLayouts = []string{"2006-01-02 15:04:05.999999", "2006-01-02 15:04:05", time.RFC3339}

func parseAnyDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("pgsqlite: cannot parse %q as a date literal", s)
}

func parseAnyTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("pgsqlite: cannot parse %q as a time literal", s)
}

func parseAnyTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("pgsqlite: cannot parse %q as a timestamp literal", s)
}

func marshalJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}
