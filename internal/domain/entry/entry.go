// Package entry defines the flat field-name-to-value record exchanged with search backends.
package entry

import (
	"fmt"
	"sort"
	"strings"
)

// Entry is one searchable unit: field name -> value. Field order is irrelevant.
type Entry map[string]any

// Clone returns a shallow copy. Values are shared.
func (e Entry) Clone() Entry {
	if e == nil {
		return nil
	}
	out := make(Entry, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Keys returns field names in sorted order.
func (e Entry) Keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String returns the field value as text; missing and nil values are "".
func (e Entry) String(field string) string {
	v, ok := e[field]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// HasText reports whether field holds a non-blank value.
func (e Entry) HasText(field string) bool {
	return strings.TrimSpace(e.String(field)) != ""
}
