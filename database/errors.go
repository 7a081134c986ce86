package database

import (
	"fmt"
)

// DBError wraps an archive database failure with the operation and table involved
type DBError struct {
	Operation string
	Table     string
	Err       error
}

func (e *DBError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("archive %s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("archive %s on %s: %v", e.Operation, e.Table, e.Err)
}

// Unwrap returns the underlying error
func (e *DBError) Unwrap() error {
	return e.Err
}
