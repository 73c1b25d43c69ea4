// Package mapping converts tagged structs into index entries and back.
//
// A struct field takes part in indexing when it carries a `search` tag:
//
//	type Product struct {
//		ID    string  `search:"id"`
//		Name  string  `search:""`      // stored under "Name"
//		Price float64 `search:"price"`
//		Notes string                    // ignored
//	}
//
// Unexported fields are never indexed, even when tagged: Encode skips them and
// Decode leaves them untouched. A type with only unexported tagged fields
// fails to encode.
//
// Field descriptors are derived once per type and cached.
package mapping

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// TagName is the struct tag marking indexed fields.
const TagName = "search"

var errNotStruct = errors.New("not a struct type")

// FieldDescriptor describes one indexed struct field.
type FieldDescriptor struct {
	Name     string // Go field name
	Key      string // entry field name
	Type     reflect.Type
	Index    []int
	Exported bool
}

// Mapper builds entries from structs and structs from entries. Safe for concurrent use.
type Mapper struct {
	cache     sync.Map // reflect.Type -> []FieldDescriptor
	coercions *Coercions
	logger    *zap.Logger
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithCoercions replaces the default coercion registry.
func WithCoercions(c *Coercions) Option {
	return func(m *Mapper) { m.coercions = c }
}

// WithLogger sets the logger used for skipped fields.
func WithLogger(l *zap.Logger) Option {
	return func(m *Mapper) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a Mapper with the default coercions.
func New(opts ...Option) *Mapper {
	m := &Mapper{logger: zap.NewNop()}
	for _, o := range opts {
		o(m)
	}
	if m.coercions == nil {
		m.coercions = NewCoercions()
	}
	return m
}

// Describe returns the indexed fields of t (a struct or pointer to struct).
func (m *Mapper) Describe(t reflect.Type) ([]FieldDescriptor, error) {
	t = indirectType(t)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %v", errNotStruct, t)
	}
	if cached, ok := m.cache.Load(t); ok {
		return cached.([]FieldDescriptor), nil
	}
	actual, _ := m.cache.LoadOrStore(t, describe(t))
	return actual.([]FieldDescriptor), nil
}

// Register declares the indexed fields of t explicitly, replacing tag discovery.
// Each descriptor needs Name; Key defaults to Name.
func (m *Mapper) Register(t reflect.Type, fields ...FieldDescriptor) error {
	t = indirectType(t)
	if t == nil || t.Kind() != reflect.Struct {
		return fmt.Errorf("register %v: %w", t, errNotStruct)
	}
	out := make([]FieldDescriptor, 0, len(fields))
	for _, f := range fields {
		sf, ok := t.FieldByName(f.Name)
		if !ok {
			return fmt.Errorf("register %s: no field %q", t, f.Name)
		}
		key := f.Key
		if key == "" {
			key = sf.Name
		}
		out = append(out, FieldDescriptor{
			Name:     sf.Name,
			Key:      key,
			Type:     sf.Type,
			Index:    sf.Index,
			Exported: sf.IsExported(),
		})
	}
	m.cache.Store(t, out)
	return nil
}

func describe(t reflect.Type) []FieldDescriptor {
	out := make([]FieldDescriptor, 0, t.NumField())
	for i := range t.NumField() {
		sf := t.Field(i)
		tag, ok := sf.Tag.Lookup(TagName)
		if !ok {
			continue
		}
		key, _, _ := strings.Cut(tag, ",")
		key = strings.TrimSpace(key)
		if key == "-" {
			continue
		}
		if key == "" {
			key = sf.Name
		}
		out = append(out, FieldDescriptor{
			Name:     sf.Name,
			Key:      key,
			Type:     sf.Type,
			Index:    sf.Index,
			Exported: sf.IsExported(),
		})
	}
	return out
}

func indirectType(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
