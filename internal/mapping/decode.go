package mapping

import (
	"fmt"
	"reflect"

	"github.com/kailas-cloud/searchdex/internal/domain"
	"github.com/kailas-cloud/searchdex/internal/domain/entry"
)

// MappingError reports a stored value that cannot be set on its target field.
type MappingError struct {
	Field  string
	Key    string
	Target reflect.Type
	Value  any
	Err    error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("%s: unable to set field %s of type %s with value %v of type %s: %v",
		domain.ErrIndexEntryMapping.Error(), e.Field, e.Target, e.Value, e.ValueType(), e.Err)
}

// ValueType returns the dynamic type name of the offending value.
func (e *MappingError) ValueType() string {
	return fmt.Sprintf("%T", e.Value)
}

func (e *MappingError) Unwrap() []error {
	return []error{domain.ErrIndexEntryMapping, e.Err}
}

// Decode fills target (a non-nil pointer) from e. Missing or nil entry values keep the
// zero value; values that neither assign nor coerce fail with *MappingError.
// target is only written when every field decodes.
func (m *Mapper) Decode(e entry.Entry, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: target must be a non-nil pointer, got %T", domain.ErrIndexEntryMapping, target)
	}
	rv = rv.Elem()

	if rv.Kind() == reflect.Pointer {
		inner := reflect.New(rv.Type().Elem())
		if err := m.Decode(e, inner.Interface()); err != nil {
			return err
		}
		rv.Set(inner)
		return nil
	}

	t := rv.Type()
	fields, err := m.Describe(t)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIndexEntryMapping, err)
	}

	out := reflect.New(t).Elem()
	for _, f := range fields {
		if !f.Exported {
			continue
		}
		raw, ok := e[f.Key]
		if !ok || raw == nil {
			continue
		}
		if err := m.assign(out.FieldByIndex(f.Index), raw); err != nil {
			return &MappingError{Field: f.Name, Key: f.Key, Target: f.Type, Value: raw, Err: err}
		}
	}

	rv.Set(out)
	return nil
}

// DecodeAs decodes e into a new T.
func DecodeAs[T any](m *Mapper, e entry.Entry) (T, error) {
	var out T
	if err := m.Decode(e, &out); err != nil {
		return out, err
	}
	return out, nil
}

func (m *Mapper) assign(dst reflect.Value, raw any) error {
	src := reflect.ValueOf(raw)
	if src.Type().AssignableTo(dst.Type()) {
		dst.Set(src)
		return nil
	}

	if src.Kind() == reflect.Pointer {
		if src.IsNil() {
			return nil
		}
		return m.assign(dst, src.Elem().Interface())
	}

	if dst.Kind() == reflect.Pointer {
		elem := reflect.New(dst.Type().Elem())
		if err := m.assign(elem.Elem(), raw); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}

	cv, err := m.coercions.Convert(raw, dst.Type())
	if err != nil {
		return err
	}
	dst.Set(cv)
	return nil
}
