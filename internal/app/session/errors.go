package session

import "errors"

var (
	ErrNoSession = errors.New("no_session")
)
