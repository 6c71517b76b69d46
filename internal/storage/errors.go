package storage

import (
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Error kinds carried by StorageError. Match them with errors.Is.
var (
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrTransactionAborted = errors.New("transaction aborted")
	ErrDuplicateKey       = errors.New("duplicate key")
)

// StorageError reports a failed storage operation. A failed operation never
// leaves partial writes behind.
type StorageError struct {
	Op   string
	Kind error
	Err  error
}

func newError(op string, kind, err error) *StorageError {
	return &StorageError{Op: op, Kind: kind, Err: err}
}

func (e *StorageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// isDuplicateKey reports whether err is a primary key or unique violation.
func isDuplicateKey(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}
