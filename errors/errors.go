package errors

import "fmt"

// Chat session taxonomy. Callers wrap these with fmt.Errorf("%w: ...") and
// match them with errors.Is.
var (
	ErrNotFound         = fmt.Errorf("not found")
	ErrForbidden        = fmt.Errorf("forbidden")
	ErrInvalidOperation = fmt.Errorf("invalid operation")
	ErrConflict         = fmt.Errorf("conflict")
	ErrUnavailable      = fmt.Errorf("unavailable")
)

var (
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrUserAlreadyExists  = fmt.Errorf("username already exists")
	ErrInvalidToken       = fmt.Errorf("invalid token")
)
