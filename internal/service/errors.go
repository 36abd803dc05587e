package service

import "errors"

// =============================================================================
// Service Errors
// =============================================================================

// Services surface domain errors (see internal/domain/errors.go) so that
// handlers can map them to transport status codes. The sentinels below cover
// failures that originate inside the service layer itself.

var (
	// ErrImportInProgress indicates another dataset import holds the
	// import lock.
	ErrImportInProgress = errors.New("dataset import already in progress")
)
