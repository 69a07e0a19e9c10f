package errors

var ErrInvalidLimit = Newf(ErrValidation, "limit must be positive")
