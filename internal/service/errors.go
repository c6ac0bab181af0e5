package service

// Closed set of error variants crossing the service boundary. The HTTP layer
// maps these to status codes in exactly one place (handlers/respond.go);
// everything else is treated as an internal failure.

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

type AuthError struct {
	Message string
}

func (e *AuthError) Error() string { return e.Message }

type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// Canonical messages. Login failures share one message so callers cannot
// distinguish "no such user" from "wrong password".
const (
	msgInvalidCredentials = "invalid credentials"
	msgAccountDisabled    = "account is disabled"
	msgPasswordTooShort   = "password must be at least 8 characters long"
	msgInvalidToken       = "invalid or expired token"
	msgInvalidOldPassword = "invalid old password"
	msgUserNotFound       = "user not found"
	msgDuplicateUser      = "email or username already exists"
)
