package tabula

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownFormat means a codec tag has no registered loader at all.
	ErrUnknownFormat = errors.New("unknown codec format")
	// ErrPluginUnavailable means a loader exists for the tag but failed to
	// initialize the codec.
	ErrPluginUnavailable = errors.New("codec plugin unavailable")
	// ErrInvalidDatabase means the file has no metadata record, the record
	// does not decode, or its name/version disagrees with the caller.
	ErrInvalidDatabase = errors.New("invalid database")
	// ErrSchemaMismatch means the requested codec configuration for a table
	// disagrees with the configuration stored in the metadata.
	ErrSchemaMismatch = errors.New("table schema mismatch")
	// ErrDuplicateTable means a create collides with an already-open table.
	ErrDuplicateTable = errors.New("duplicate table")
	// ErrTableNotFound means no table with the given name is known.
	ErrTableNotFound = errors.New("table not found")
	// ErrKeyNotFound means Get found no entry and no default was supplied.
	ErrKeyNotFound = errors.New("key not found")
	// ErrInvalidKey means an empty key was supplied as a store key or range
	// bound, or a key of the wrong type for the table's key codec.
	ErrInvalidKey = errors.New("invalid key")
	// ErrReadOnly means a mutating call was made on a read-only database.
	ErrReadOnly = errors.New("database is read-only")
	// ErrInvalidState means the operation requires a prior lifecycle step.
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidConfig means an option value is outside its recognized set.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrClosed means the database has been closed.
	ErrClosed = errors.New("database is closed")
)

// TableError carries the table name and encoded key for a failure inside a
// table operation, typically a codec failure during a scan.
type TableError struct {
	Table string
	Key   []byte
	Msg   string
	Err   error
}

func tableErrf(table string, key []byte, err error, format string, args ...any) error {
	return &TableError{table, key, fmt.Sprintf(format, args...), err}
}

func (e *TableError) Unwrap() error {
	return e.Err
}

func (e *TableError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Table)
	if e.Key != nil {
		buf.WriteByte('/')
		fmt.Fprintf(&buf, "%q", e.Key)
	}
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}
