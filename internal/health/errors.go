package health

import "errors"

// Catalogue errors.
var (
	ErrServiceNotFound = errors.New("service not found")
	ErrSlugExists      = errors.New("service with this slug already exists")
)

// Event errors.
var (
	ErrEventNotFound  = errors.New("event not found")
	ErrInvalidStatus  = errors.New("invalid status level")
	ErrNoServices     = errors.New("event must affect at least one service")
	ErrRollupConflict = errors.New("service status changed concurrently, retry the request")
)
