package errors

import "net/http"

var ErrApprovalRequired = &Exception{
	Message:    "task requires approval before execution",
	StatusCode: http.StatusForbidden,
}
