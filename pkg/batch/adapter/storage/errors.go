package storage

import "github.com/cockroachdb/errors"

// ErrObjectNotFound is matched by Download errors for missing objects.
var ErrObjectNotFound = errors.New("object not found")
