package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrInvalidArgument  = fmt.Errorf("invalid argument")
	ErrNotJoined        = fmt.Errorf("connection has not joined a session")
	ErrStoreUnavailable = fmt.Errorf("message store unavailable")
	ErrDeadConnection   = fmt.Errorf("dead connection")
	ErrInvalidToken     = fmt.Errorf("invalid token")
)

// MapToHTTPStatus translates internal errors into client-facing status codes.
// Only InvalidArgument is actionable by a caller; everything else stays a 500
// and the details are kept in the server logs.
func MapToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
