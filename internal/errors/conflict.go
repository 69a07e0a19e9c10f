package errors

import "net/http"

var ErrConflict = &Exception{
	Message:    "task status conflict",
	StatusCode: http.StatusConflict,
}
