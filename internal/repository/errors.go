package repository

import "errors"

// ErrConcurrencyConflict indicates the offering row changed between read and write.
var ErrConcurrencyConflict = errors.New("offering modified concurrently")
