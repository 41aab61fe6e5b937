package history

import "errors"

var (
	ErrInvalidKey    = errors.New("invalid_key")
	ErrEntryNotFound = errors.New("entry_not_found")
)
