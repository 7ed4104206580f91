// Package postgres implements the reporting repositories on PostgreSQL.
package postgres

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// defaultDBAttributes defines standard OpenTelemetry attributes for database operations.
var defaultDBAttributes = []attribute.KeyValue{
	attribute.String("db.system", "postgresql"),
}

const queryTimeout = 3 * time.Second

// dbAttrs returns a fresh attribute slice so callers never share the backing
// array of defaultDBAttributes.
func dbAttrs(extra ...attribute.KeyValue) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(defaultDBAttributes)+len(extra))
	attrs = append(attrs, defaultDBAttributes...)
	return append(attrs, extra...)
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
