// Package translate reclassifies backend failures into the domain error taxonomy.
package translate

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/sony/gobreaker/v2"

	"github.com/kailas-cloud/searchdex/internal/domain"
)

// Func classifies err into a *domain.SearchError, or returns nil when it does not recognize it.
type Func func(err error) error

// Chain is an ordered list of classifiers; the first match wins.
type Chain []Func

// New builds a Chain from funcs in evaluation order.
func New(funcs ...Func) Chain {
	return Chain(funcs)
}

// Translate returns the first classification of err, or nil when no classifier matches.
// An error that already carries a *domain.SearchError is returned as is.
func (c Chain) Translate(err error) error {
	if err == nil {
		return nil
	}
	var se *domain.SearchError
	if errors.As(err, &se) {
		return err
	}
	for _, fn := range c {
		if fn == nil {
			continue
		}
		if out := fn(err); out != nil {
			return out
		}
	}
	return nil
}

// Resolve returns the classification of err, or err itself when nothing matches.
func (c Chain) Resolve(err error) error {
	if out := c.Translate(err); out != nil {
		return out
	}
	return err
}

// Transport classifies failures common to every networked backend:
// deadlines, refused or dropped connections and an open circuit breaker.
func Transport(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.NewServerUnavailable("deadline exceeded", err)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return domain.NewServerUnavailable("circuit breaker open", err)
	case errors.Is(err, syscall.ECONNREFUSED):
		return domain.NewServerUnavailable("connection refused", err)
	case errors.Is(err, syscall.ECONNRESET):
		return domain.NewServerUnavailable("connection reset", err)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return domain.NewServerUnavailable("connection closed", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.NewServerUnavailable("network failure", err)
	}
	return nil
}
