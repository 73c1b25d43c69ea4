package db

import "errors"

// Sentinel errors for backend operations.
var (
	ErrIndexNotFound = errors.New("db: index not found")
	ErrIndexExists   = errors.New("db: index already exists")
	ErrClosed        = errors.New("db: backend closed")
)

// Op names the backend operation for error context.
const (
	OpWrite         = "write"
	OpWriteMany     = "write_many"
	OpDelete        = "delete"
	OpDeleteByQuery = "delete_by_query"
	OpDeleteAll     = "delete_all"
	OpQuery         = "query"
	OpCommit        = "commit"
	OpOptimize      = "optimize"
	OpPing          = "ping"
	OpCreateIndex   = "create_index"
	OpIndexInfo     = "index_info"
	OpDropIndex     = "drop_index"
	OpOpen          = "open"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
