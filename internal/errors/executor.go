package errors

import "net/http"

var ErrExecutor = &Exception{
	Message:    "executor failed",
	StatusCode: http.StatusBadGateway,
}
