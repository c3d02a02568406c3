package handlers

const (
	ErrInvalidRequestBody  = "Invalid request body"
	ErrInvalidID           = "Invalid ID"
	ErrInvalidOutcome      = "Outcome must be correct or incorrect"
	ErrValidationFailed    = "Validation failed"
	ErrUnauthorized        = "Unauthorized"
	ErrForbidden           = "Invalid CSRF token"
	ErrDeckNotFound        = "Deck not found"
	ErrTooManyRequests     = "Too many requests"
	ErrInternalServerError = "Internal server error"

	maxBodyBytes = 1 << 20
)
