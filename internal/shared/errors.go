package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden indicates the actor is not allowed to perform the action.
	ErrForbidden = errors.New("forbidden")
	// ErrQuotaExceeded indicates a subscription quota would be exceeded.
	ErrQuotaExceeded = errors.New("quota exceeded")
)

// UserSafeMessage returns a message that can be shown to end users without
// leaking internals. Known domain errors pass through, everything else is
// collapsed.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrQuotaExceeded):
		return err.Error()
	}
	return "something went wrong, please try again"
}
