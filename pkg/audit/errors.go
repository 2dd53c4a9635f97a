package audit

import "errors"

var (
	ErrInvalidEntry        = errors.New("audit: invalid entry")
	ErrStorageNotAvailable = errors.New("audit: storage is unavailable")
)
