package errors

import (
	"errors"
	"fmt"
	"net/http"
)

type Exception struct {
	Message    string
	StatusCode int
	kind       *Exception
}

func (e *Exception) Error() string {
	return e.Message
}

// Unwrap exposes the category an exception was raised under, so callers can
// match with errors.Is(err, ErrConflict) regardless of the detail message.
func (e *Exception) Unwrap() error {
	if e.kind == nil {
		return nil
	}
	return e.kind
}

func Newf(kind *Exception, format string, args ...any) *Exception {
	return &Exception{
		Message:    fmt.Sprintf(format, args...),
		StatusCode: kind.StatusCode,
		kind:       kind,
	}
}

func StatusCode(err error) int {
	var appErr *Exception
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
