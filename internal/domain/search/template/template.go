// Package template resolves positional {name} tokens in query strings.
package template

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/kailas-cloud/searchdex/internal/domain"
)

// tokenRegex matches a substitution token. Any other brace shape is literal text.
var tokenRegex = regexp.MustCompile(`\{\w+\}`)

// ParamsError reports a mismatch between template tokens and supplied parameters.
type ParamsError struct {
	Reason string
	Params []any
}

func (e *ParamsError) Error() string {
	return fmt.Sprintf("%s: %s: %v", domain.ErrInvalidParams.Error(), e.Reason, e.Params)
}

func (e *ParamsError) Unwrap() error { return domain.ErrInvalidParams }

// Resolve replaces each {name} token, left to right, with the next parameter.
// Token names are ignored: matching is purely positional.
// Without params the query is returned unchanged.
func Resolve(query string, params ...any) (string, error) {
	if len(params) == 0 {
		return query, nil
	}

	var b strings.Builder
	b.Grow(len(query))

	last, used := 0, 0
	for _, loc := range tokenRegex.FindAllStringIndex(query, -1) {
		if used >= len(params) {
			return "", &ParamsError{Reason: "some parameters are missing", Params: params}
		}
		b.WriteString(query[last:loc[0]])
		b.WriteString(Format(params[used]))
		used++
		last = loc[1]
	}
	b.WriteString(query[last:])

	if used < len(params) {
		return "", &ParamsError{Reason: "too many parameters for this query", Params: params}
	}
	return b.String(), nil
}

// Tokens returns the number of substitution tokens in query.
func Tokens(query string) int {
	return len(tokenRegex.FindAllStringIndex(query, -1))
}

// Format converts a parameter to its literal query text. nil becomes "".
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case *time.Time:
		if x == nil {
			return ""
		}
		return x.Format(time.RFC3339Nano)
	case fmt.Stringer:
		if isNilPointer(v) {
			return ""
		}
		return x.String()
	}
	if isNilPointer(v) {
		return ""
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		return fmt.Sprint(rv.Elem().Interface())
	}
	return fmt.Sprint(v)
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
