package store

import "errors"

// ErrNotFound is returned when a requested record does not exist in the
// store. Revocation of a key owned by a different user returns the same
// error, so callers cannot distinguish "missing" from "not yours".
var ErrNotFound = errors.New("not found")
