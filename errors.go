package auth

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeUnauthenticated         = "AUTH_UNAUTHENTICATED"
	TextCodeSessionExpired          = "AUTH_SESSION_EXPIRED"
	TextCodeIdentityInactive        = "AUTH_IDENTITY_INACTIVE"
	TextCodeForbidden               = "AUTH_FORBIDDEN"
	TextCodeUserNotFound            = "USER_NOT_FOUND"
	TextCodePendingNotFound         = "PENDING_REGISTRATION_NOT_FOUND"
	TextCodeRoleConflict            = "ROLE_CONFLICT"
	TextCodeIdentityConflict        = "IDENTITY_CONFLICT"
	TextCodeOwnerProtected          = "OWNER_PROTECTED"
	TextCodeCodeMismatch            = "VERIFICATION_CODE_MISMATCH"
	TextCodeUnprocessableInput      = "UNPROCESSABLE_INPUT"
	TextCodeTooManyAttempts         = "TOO_MANY_ATTEMPTS"
	TextCodeBackingStoreUnavailable = "BACKING_STORE_UNAVAILABLE"
	TextCodeTokenExpired            = "TOKEN_EXPIRED"
	TextCodeTokenMalformed          = "TOKEN_MALFORMED"
	TextCodeTokenSignatureInvalid   = "TOKEN_SIGNATURE_INVALID"
	TextCodeTokenTypeMismatch       = "TOKEN_TYPE_MISMATCH"
)

// ErrUnauthenticated is returned when a request carries no usable credentials
var ErrUnauthenticated = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionExpired is returned when both access and refresh tokens expired
var ErrSessionExpired = goerrors.New("session expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrIdentityInactive is returned when a token names a deactivated user
var ErrIdentityInactive = goerrors.New("identity is inactive", goerrors.CategoryAuth).
	WithTextCode(TextCodeIdentityInactive).
	WithCode(goerrors.CodeUnauthorized)

// ErrForbidden is returned when the actor may not perform the action
var ErrForbidden = goerrors.New("forbidden", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrUserNotFound is returned when an identity lookup misses
var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrPendingNotFound is returned for unknown, expired or retired pending registrations
var ErrPendingNotFound = goerrors.New("pending registration not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodePendingNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrRoleConflict is returned when a grant is already held or a revoke is not held
var ErrRoleConflict = goerrors.New("role assignment conflict", goerrors.CategoryConflict).
	WithTextCode(TextCodeRoleConflict).
	WithCode(goerrors.CodeConflict)

// ErrIdentityConflict is returned when a unique identity attribute is taken
var ErrIdentityConflict = goerrors.New("identity already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeIdentityConflict).
	WithCode(goerrors.CodeConflict)

// ErrOwnerProtected is returned when deactivating an owner
var ErrOwnerProtected = goerrors.New("owner account cannot be deactivated", goerrors.CategoryConflict).
	WithTextCode(TextCodeOwnerProtected).
	WithCode(http.StatusNotAcceptable)

// ErrCodeMismatch is returned when a verification code does not match
var ErrCodeMismatch = goerrors.New("verification code mismatch", goerrors.CategoryValidation).
	WithTextCode(TextCodeCodeMismatch).
	WithCode(http.StatusUnprocessableEntity)

// ErrUnprocessableInput is returned for structurally valid but unusable payloads
var ErrUnprocessableInput = goerrors.New("unprocessable input", goerrors.CategoryBadInput).
	WithTextCode(TextCodeUnprocessableInput).
	WithCode(http.StatusUnprocessableEntity)

// ErrTooManyAttempts is returned when a phone or pending record is rate limited
var ErrTooManyAttempts = goerrors.New("too many attempts", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts).
	WithCode(http.StatusTooManyRequests)

// ErrBackingStoreUnavailable is returned when a store cannot be reached
var ErrBackingStoreUnavailable = goerrors.New("backing store unavailable", goerrors.CategoryOperation).
	WithTextCode(TextCodeBackingStoreUnavailable).
	WithCode(http.StatusServiceUnavailable)

// ErrTokenExpired token signature is valid but exp is in the past
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed token could not be parsed
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenSignatureInvalid token was not signed with our key or algorithm
var ErrTokenSignatureInvalid = goerrors.New("token signature is invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenSignatureInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenTypeMismatch access token used as refresh or vice versa
var ErrTokenTypeMismatch = goerrors.New("token type mismatch", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenTypeMismatch).
	WithCode(goerrors.CodeUnauthorized)

// IsUnauthenticated reports authentication failures, including inactive identities
func IsUnauthenticated(err error) bool {
	return hasTextCode(err, TextCodeUnauthenticated) || hasTextCode(err, TextCodeIdentityInactive)
}

// IsSessionExpired reports whether the session must be restarted
func IsSessionExpired(err error) bool {
	return hasTextCode(err, TextCodeSessionExpired)
}

// IsForbidden reports authorization failures
func IsForbidden(err error) bool {
	return hasTextCode(err, TextCodeForbidden)
}

// IsNotFound reports missing users or pending registrations
func IsNotFound(err error) bool {
	return hasTextCode(err, TextCodeUserNotFound) || hasTextCode(err, TextCodePendingNotFound)
}

// IsConflict reports role or identity conflicts
func IsConflict(err error) bool {
	return hasTextCode(err, TextCodeRoleConflict) || hasTextCode(err, TextCodeIdentityConflict)
}

// IsCodeMismatch reports a wrong verification code
func IsCodeMismatch(err error) bool {
	return hasTextCode(err, TextCodeCodeMismatch)
}

// IsUnprocessable reports payloads that were rejected as unusable
func IsUnprocessable(err error) bool {
	return hasTextCode(err, TextCodeUnprocessableInput)
}

// IsBackingStoreUnavailable reports store outages
func IsBackingStoreUnavailable(err error) bool {
	return hasTextCode(err, TextCodeBackingStoreUnavailable)
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	return hasTextCode(err, TextCodeTokenExpired)
}

// IsMalformedError will check for tokens we could not parse
func IsMalformedError(err error) bool {
	return hasTextCode(err, TextCodeTokenMalformed)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}

func withMeta(base *goerrors.Error, meta map[string]any) error {
	return base.Clone().WithMetadata(meta)
}
