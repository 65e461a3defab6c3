package storage

import "fmt"

// CorruptionError reports a slot whose contents could not be read or
// decoded. The store falls back to an empty collection list.
type CorruptionError struct {
	Key string
	Err error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("storage corruption in slot %s: %v", e.Key, e.Err)
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}
