package nvstore

import "errors"

// ErrEmptyKey is returned when a key is empty.
var ErrEmptyKey = errors.New("nvstore: empty key")
