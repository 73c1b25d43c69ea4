package mapping

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cast"
)

// ErrNoCoercion is returned when no conversion exists between two types.
var ErrNoCoercion = errors.New("no coercion registered")

// ConvertFunc converts v into the registered target type.
type ConvertFunc func(v any) (any, error)

type typePair struct {
	from, to reflect.Type
}

// Coercions is a registry of conversions keyed by (source type, target type).
//
// Lookup order: the exact pair, then the source reduced to its primitive kind
// (so json.Number converts like a string), then the target reduced to its
// primitive kind with the result converted back to the named target type.
type Coercions struct {
	mu    sync.RWMutex
	funcs map[typePair]ConvertFunc
}

var (
	typeString   = reflect.TypeFor[string]()
	typeBool     = reflect.TypeFor[bool]()
	typeInt      = reflect.TypeFor[int]()
	typeInt8     = reflect.TypeFor[int8]()
	typeInt16    = reflect.TypeFor[int16]()
	typeInt32    = reflect.TypeFor[int32]()
	typeInt64    = reflect.TypeFor[int64]()
	typeUint     = reflect.TypeFor[uint]()
	typeUint8    = reflect.TypeFor[uint8]()
	typeUint16   = reflect.TypeFor[uint16]()
	typeUint32   = reflect.TypeFor[uint32]()
	typeUint64   = reflect.TypeFor[uint64]()
	typeFloat32  = reflect.TypeFor[float32]()
	typeFloat64  = reflect.TypeFor[float64]()
	typeTime     = reflect.TypeFor[time.Time]()
	typeDuration = reflect.TypeFor[time.Duration]()
	typeBytes    = reflect.TypeFor[[]byte]()
)

var primitives = map[reflect.Kind]reflect.Type{
	reflect.String:  typeString,
	reflect.Bool:    typeBool,
	reflect.Int:     typeInt,
	reflect.Int8:    typeInt8,
	reflect.Int16:   typeInt16,
	reflect.Int32:   typeInt32,
	reflect.Int64:   typeInt64,
	reflect.Uint:    typeUint,
	reflect.Uint8:   typeUint8,
	reflect.Uint16:  typeUint16,
	reflect.Uint32:  typeUint32,
	reflect.Uint64:  typeUint64,
	reflect.Float32: typeFloat32,
	reflect.Float64: typeFloat64,
}

// NewCoercions returns a registry holding the default scalar conversions.
func NewCoercions() *Coercions {
	c := &Coercions{funcs: make(map[typePair]ConvertFunc)}

	targets := map[reflect.Type]ConvertFunc{
		typeString:   func(v any) (any, error) { return cast.ToStringE(v) },
		typeBool:     func(v any) (any, error) { return cast.ToBoolE(v) },
		typeInt:      integral(signed(strconv.IntSize), func(v any) (any, error) { return cast.ToIntE(v) }),
		typeInt8:     integral(signed(8), func(v any) (any, error) { return cast.ToInt8E(v) }),
		typeInt16:    integral(signed(16), func(v any) (any, error) { return cast.ToInt16E(v) }),
		typeInt32:    integral(signed(32), func(v any) (any, error) { return cast.ToInt32E(v) }),
		typeInt64:    integral(signed(64), func(v any) (any, error) { return cast.ToInt64E(v) }),
		typeUint:     integral(unsigned(strconv.IntSize), func(v any) (any, error) { return cast.ToUintE(v) }),
		typeUint8:    integral(unsigned(8), func(v any) (any, error) { return cast.ToUint8E(v) }),
		typeUint16:   integral(unsigned(16), func(v any) (any, error) { return cast.ToUint16E(v) }),
		typeUint32:   integral(unsigned(32), func(v any) (any, error) { return cast.ToUint32E(v) }),
		typeUint64:   integral(unsigned(64), func(v any) (any, error) { return cast.ToUint64E(v) }),
		typeFloat32:  func(v any) (any, error) { return cast.ToFloat32E(v) },
		typeFloat64:  func(v any) (any, error) { return cast.ToFloat64E(v) },
		typeTime:     func(v any) (any, error) { return cast.ToTimeE(v) },
		typeDuration: func(v any) (any, error) { return cast.ToDurationE(v) },
	}
	for _, from := range primitives {
		for to, fn := range targets {
			if from != to {
				c.funcs[typePair{from, to}] = fn
			}
		}
	}

	c.funcs[typePair{typeTime, typeString}] = func(v any) (any, error) {
		return v.(time.Time).Format(time.RFC3339Nano), nil
	}
	c.funcs[typePair{typeBytes, typeString}] = func(v any) (any, error) {
		return string(v.([]byte)), nil
	}
	c.funcs[typePair{typeString, typeBytes}] = func(v any) (any, error) {
		return []byte(v.(string)), nil
	}
	return c
}

// Register adds or replaces the conversion from -> to.
func (c *Coercions) Register(from, to reflect.Type, fn ConvertFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.funcs[typePair{from, to}] = fn
}

// Has reports whether a conversion from -> to is resolvable.
func (c *Coercions) Has(from, to reflect.Type) bool {
	if _, ok := c.lookup(from, to); ok {
		return true
	}
	pf := primitiveOf(from)
	if pf != nil {
		if pf == to {
			return true
		}
		if _, ok := c.lookup(pf, to); ok {
			return true
		}
		from = pf
	}
	if pt := primitiveOf(to); pt != nil {
		if from == pt {
			return true
		}
		_, ok := c.lookup(from, pt)
		return ok
	}
	return false
}

// Convert converts v into a value of type to.
func (c *Coercions) Convert(v any, to reflect.Type) (reflect.Value, error) {
	orig := reflect.TypeOf(v)
	if orig == nil {
		return reflect.Value{}, fmt.Errorf("%w: nil value to %s", ErrNoCoercion, to)
	}

	if fn, ok := c.lookup(orig, to); ok {
		return apply(fn, v, to)
	}

	from := orig
	if pf := primitiveOf(from); pf != nil && pf != from {
		pv := reflect.ValueOf(v).Convert(pf).Interface()
		if pf == to {
			return reflect.ValueOf(pv), nil
		}
		if fn, ok := c.lookup(pf, to); ok {
			return apply(fn, pv, to)
		}
		from, v = pf, pv
	}

	if pt := primitiveOf(to); pt != nil && pt != to {
		if from == pt {
			return reflect.ValueOf(v).Convert(to), nil
		}
		if fn, ok := c.lookup(from, pt); ok {
			return apply(fn, v, to)
		}
	}

	return reflect.Value{}, fmt.Errorf("%w from %s to %s", ErrNoCoercion, orig, to)
}

func (c *Coercions) lookup(from, to reflect.Type) (ConvertFunc, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn, ok := c.funcs[typePair{from, to}]
	return fn, ok
}

func apply(fn ConvertFunc, v any, to reflect.Type) (reflect.Value, error) {
	out, err := fn(v)
	if err != nil {
		return reflect.Value{}, err
	}
	ov := reflect.ValueOf(out)
	if !ov.IsValid() {
		return reflect.Zero(to), nil
	}
	switch {
	case ov.Type().AssignableTo(to):
		return ov, nil
	case ov.Type().ConvertibleTo(to):
		return ov.Convert(to), nil
	default:
		return reflect.Value{}, fmt.Errorf("%w: converter produced %s, want %s", ErrNoCoercion, ov.Type(), to)
	}
}

func primitiveOf(t reflect.Type) reflect.Type {
	if t == nil {
		return nil
	}
	return primitives[t.Kind()]
}

// bounds describes the value range of an integer kind.
type bounds struct {
	bits   int
	signed bool
}

func signed(bits int) bounds   { return bounds{bits: bits, signed: true} }
func unsigned(bits int) bounds { return bounds{bits: bits} }

func (b bounds) min() int64 {
	if !b.signed {
		return 0
	}
	return -1 << (b.bits - 1)
}

func (b bounds) max() uint64 {
	if b.signed {
		return 1<<(b.bits-1) - 1
	}
	return math.MaxUint64 >> (64 - b.bits)
}

func (b bounds) fitsInt(i int64) bool {
	return i >= b.min() && (i < 0 || uint64(i) <= b.max())
}

func (b bounds) fitsUint(u uint64) bool {
	return u <= b.max()
}

// fitsFloat compares against the exclusive upper limit 2^bits (or 2^(bits-1))
// since the maximum itself is not representable as a float64 for 64-bit kinds.
func (b bounds) fitsFloat(f float64) bool {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}
	if b.signed {
		limit := math.Ldexp(1, b.bits-1)
		return f >= -limit && f < limit
	}
	return f >= 0 && f < math.Ldexp(1, b.bits)
}

func (b bounds) overflow(v any) error {
	kind := "int"
	if !b.signed {
		kind = "uint"
	}
	return fmt.Errorf("unable to convert %v to %s%d: value out of range", v, kind, b.bits)
}

// integral rejects values with a fractional part or outside b before an
// integer conversion.
func integral(b bounds, fn ConvertFunc) ConvertFunc {
	return func(v any) (any, error) {
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if !b.fitsInt(rv.Int()) {
				return nil, b.overflow(v)
			}
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			if !b.fitsUint(rv.Uint()) {
				return nil, b.overflow(v)
			}
		case reflect.Float32, reflect.Float64:
			if err := b.checkFloat(v, rv.Float()); err != nil {
				return nil, err
			}
		case reflect.String:
			if err := b.checkString(v, strings.TrimSpace(rv.String())); err != nil {
				return nil, err
			}
		}
		return fn(v)
	}
}

func (b bounds) checkFloat(v any, f float64) error {
	if f != math.Trunc(f) {
		return fmt.Errorf("unable to convert %v to an integer without losing precision", v)
	}
	if !b.fitsFloat(f) {
		return b.overflow(v)
	}
	return nil
}

// checkString leaves malformed strings to the cast function so its error is
// the one reported.
func (b bounds) checkString(v any, s string) error {
	if strings.ContainsAny(s, ".eE") && !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return b.checkFloat(v, f)
	}
	if i, err := strconv.ParseInt(s, 0, 64); err == nil {
		if !b.fitsInt(i) {
			return b.overflow(v)
		}
		return nil
	}
	u, err := strconv.ParseUint(s, 0, 64)
	if err == nil {
		if !b.fitsUint(u) {
			return b.overflow(v)
		}
		return nil
	}
	if errors.Is(err, strconv.ErrRange) {
		return b.overflow(v)
	}
	return nil
}
