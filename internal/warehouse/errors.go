package warehouse

import "errors"

var (
	ErrNotFound          = errors.New("package not found")
	ErrDuplicate         = errors.New("package already exists")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNoCapacity        = errors.New("no zone capacity available")
	ErrInvalidPackage    = errors.New("invalid package")
	ErrInvalidZones      = errors.New("invalid zone layout")
)
