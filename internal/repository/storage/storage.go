package storage

import "errors"

var ErrKeyNotFound = errors.New("key not found in session")

// UpdateFunc receives the current value of a session key and returns the value to store.
type UpdateFunc func(current []byte) ([]byte, error)
