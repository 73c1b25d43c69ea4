package mapping

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchdex/internal/domain"
	"github.com/kailas-cloud/searchdex/internal/domain/entry"
)

// Encode builds an entry from the indexed fields of obj (a struct or pointer to struct).
// Unreadable fields (unexported, or nil with nothing to index) are skipped.
// An object yielding no field fails with domain.ErrInvalidIndexEntry.
func (m *Mapper) Encode(obj any) (entry.Entry, error) {
	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, fmt.Errorf("%w: nil %s", domain.ErrInvalidIndexEntry, rv.Type())
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil, fmt.Errorf("%w: nil object", domain.ErrInvalidIndexEntry)
	}

	fields, err := m.Describe(rv.Type())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidIndexEntry, err)
	}

	e := make(entry.Entry, len(fields))
	for _, f := range fields {
		v, ok := m.read(rv, f)
		if !ok {
			continue
		}
		e[f.Key] = v
	}

	if len(e) == 0 {
		return nil, fmt.Errorf("%w: %s has no indexed field", domain.ErrInvalidIndexEntry, rv.Type())
	}
	return e, nil
}

func (m *Mapper) read(rv reflect.Value, f FieldDescriptor) (any, bool) {
	if !f.Exported {
		m.logger.Debug("skipping unexported indexed field",
			zap.String("type", rv.Type().String()),
			zap.String("field", f.Name),
		)
		return nil, false
	}

	fv, err := rv.FieldByIndexErr(f.Index)
	if err != nil {
		m.logger.Debug("skipping unreachable indexed field",
			zap.String("type", rv.Type().String()),
			zap.String("field", f.Name),
			zap.Error(err),
		)
		return nil, false
	}

	for fv.Kind() == reflect.Pointer || fv.Kind() == reflect.Interface {
		if fv.IsNil() {
			m.logger.Debug("skipping nil indexed field",
				zap.String("type", rv.Type().String()),
				zap.String("field", f.Name),
			)
			return nil, false
		}
		fv = fv.Elem()
	}
	return fv.Interface(), true
}
