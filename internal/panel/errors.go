package panel

import (
	"errors"
	"fmt"
)

// ErrMissingSource indicates a required upstream panel file or column is
// unavailable. It aborts the signal that needed it, not the whole batch.
var ErrMissingSource = errors.New("missing source")

// ErrMissingField indicates a requested field is absent from a table.
// Merges and operators fail loudly on this rather than producing an
// all-missing column.
var ErrMissingField = errors.New("missing field")

// KeyViolationError reports a duplicate (entity, period) key in a source
// where uniqueness was assumed and no dedup policy was chosen.
type KeyViolationError struct {
	Entity EntityID
	Period Period
	Source string
}

func (e *KeyViolationError) Error() string {
	return fmt.Sprintf("duplicate key (%s, %s) in %s: choose an explicit dedup policy", e.Entity, e.Period, e.Source)
}

// fieldError wraps ErrMissingField with the table and field names.
func fieldError(table, field string) error {
	return fmt.Errorf("table %q has no field %q: %w", table, field, ErrMissingField)
}
