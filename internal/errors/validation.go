package errors

import "net/http"

var ErrValidation = &Exception{
	Message:    "validation failed",
	StatusCode: http.StatusBadRequest,
}

var ErrNameRequired = Newf(ErrValidation, "name is required")

var ErrTypeRequired = Newf(ErrValidation, "type is required")
