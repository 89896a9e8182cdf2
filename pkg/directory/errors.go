package directory

import "errors"

// ErrNotFound indicates the remote service has no record for the requested id.
var ErrNotFound = errors.New("directory record not found")
