package services

import "errors"

// Sentinel errors of the session engine. Handlers translate them with
// errors.Is: ErrNotFound to 404, ErrInvalidState to 409,
// ErrPermissionDenied to 403 and ErrValidation to 400. Each is wrapped with
// the detail that caused it.
var (
	// ErrNotFound means the referenced tasting, flight, wine, participant or guess does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidState means the operation violates the tasting or flight lifecycle
	ErrInvalidState = errors.New("invalid state")

	// ErrPermissionDenied means the caller is not allowed to perform the action
	ErrPermissionDenied = errors.New("permission denied")

	// ErrValidation means the request payload is malformed
	ErrValidation = errors.New("validation failed")
)

// isDomainError reports whether err is terminal for the request. Domain
// errors are never retried.
func isDomainError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrPermissionDenied) ||
		errors.Is(err, ErrValidation)
}
