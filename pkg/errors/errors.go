package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors, one per error kind. Every AppError wraps exactly one of
// them so callers can branch with errors.Is.
var (
	ErrNotFound            = errors.New("resource not found")
	ErrAlreadyExists       = errors.New("resource already exists")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrForbidden           = errors.New("forbidden")
	ErrPendingApproval     = errors.New("pending approval")
	ErrNotFoundOrForbidden = errors.New("not found or forbidden")
	ErrValidation          = errors.New("validation error")
	ErrDuplicateEmail      = errors.New("duplicate email")
	ErrDuplicateCategory   = errors.New("duplicate category")
	ErrDuplicateReview     = errors.New("duplicate review")
	ErrPurchaseRequired    = errors.New("purchase required")
	ErrCannotBanAdmin      = errors.New("cannot ban admin")
	ErrCannotDeleteAdmin   = errors.New("cannot delete admin")
	ErrCategoryInUse       = errors.New("category in use")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountBanned       = errors.New("account banned")
	ErrUpstream            = errors.New("upstream failure")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrTooManyAttempts     = errors.New("too many attempts")
	ErrInternal            = errors.New("internal error")
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`

	// Cause is an underlying error kept for logging only. It is never
	// rendered to clients.
	Cause error `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is/As.
func (e *AppError) Unwrap() []error {
	var errs []error
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

func newError(kind error, code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: kind}
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return newError(ErrNotFound, "NOT_FOUND",
		fmt.Sprintf("%s with id %s not found", resource, id), http.StatusNotFound)
}

// AlreadyExists creates a 409 error. Repositories return it on unique
// violations; services translate it into a domain-specific duplicate kind.
func AlreadyExists(resource, field, value string) *AppError {
	return newError(ErrAlreadyExists, "ALREADY_EXISTS",
		fmt.Sprintf("%s with %s %q already exists", resource, field, value), http.StatusConflict)
}

// Unauthenticated creates a 401 error.
func Unauthenticated(message string) *AppError {
	return newError(ErrUnauthenticated, "UNAUTHENTICATED", message, http.StatusUnauthorized)
}

// Forbidden creates a 403 error.
func Forbidden(message string) *AppError {
	return newError(ErrForbidden, "FORBIDDEN", message, http.StatusForbidden)
}

// PendingApproval creates a 403 error for sellers awaiting approval.
func PendingApproval() *AppError {
	return newError(ErrPendingApproval, "PENDING_APPROVAL",
		"account is pending admin approval", http.StatusForbidden)
}

// NotFoundOrForbidden merges absence and lack of ownership so the response
// does not reveal whether the resource exists.
func NotFoundOrForbidden(resource, id string) *AppError {
	return newError(ErrNotFoundOrForbidden, "NOT_FOUND_OR_FORBIDDEN",
		fmt.Sprintf("%s with id %s not found or not owned by caller", resource, id), http.StatusNotFound)
}

// Validation creates a 400 error.
func Validation(message string) *AppError {
	return newError(ErrValidation, "VALIDATION_ERROR", message, http.StatusBadRequest)
}

// DuplicateEmail creates a 409 error.
func DuplicateEmail(email string) *AppError {
	return newError(ErrDuplicateEmail, "DUPLICATE_EMAIL",
		fmt.Sprintf("email %q is already registered", email), http.StatusConflict)
}

// DuplicateCategory creates a 409 error.
func DuplicateCategory(name string) *AppError {
	return newError(ErrDuplicateCategory, "DUPLICATE_CATEGORY",
		fmt.Sprintf("category %q already exists", name), http.StatusConflict)
}

// DuplicateReview creates a 409 error.
func DuplicateReview() *AppError {
	return newError(ErrDuplicateReview, "DUPLICATE_REVIEW",
		"you have already reviewed this product", http.StatusConflict)
}

// PurchaseRequired creates a 403 error.
func PurchaseRequired() *AppError {
	return newError(ErrPurchaseRequired, "PURCHASE_REQUIRED",
		"a paid order containing this product is required to review it", http.StatusForbidden)
}

// CannotBanAdmin creates a 403 error.
func CannotBanAdmin() *AppError {
	return newError(ErrCannotBanAdmin, "CANNOT_BAN_ADMIN", "admin accounts cannot be banned", http.StatusForbidden)
}

// CannotDeleteAdmin creates a 403 error.
func CannotDeleteAdmin() *AppError {
	return newError(ErrCannotDeleteAdmin, "CANNOT_DELETE_ADMIN", "admin accounts cannot be deleted", http.StatusForbidden)
}

// CategoryInUse creates a 409 error.
func CategoryInUse(id string) *AppError {
	return newError(ErrCategoryInUse, "CATEGORY_IN_USE",
		fmt.Sprintf("category %s is referenced by existing products", id), http.StatusConflict)
}

// InvalidCredentials creates a 401 error.
func InvalidCredentials() *AppError {
	return newError(ErrInvalidCredentials, "INVALID_CREDENTIALS", "invalid email or password", http.StatusUnauthorized)
}

// AccountBanned creates a 403 error.
func AccountBanned() *AppError {
	return newError(ErrAccountBanned, "ACCOUNT_BANNED", "account has been banned", http.StatusForbidden)
}

// Upstream creates a 502 error for a failing collaborator (payment, media).
// The cause is attached for logging.
func Upstream(collaborator string, cause error) *AppError {
	e := newError(ErrUpstream, "UPSTREAM_FAILURE",
		fmt.Sprintf("%s is currently unavailable", collaborator), http.StatusBadGateway)
	e.Cause = cause
	return e
}

// InvalidTransition creates a 409 error for a rejected state change.
func InvalidTransition(from, to string) *AppError {
	return newError(ErrInvalidTransition, "INVALID_TRANSITION",
		fmt.Sprintf("cannot transition from %s to %s", from, to), http.StatusConflict)
}

// TooManyAttempts creates a 429 error.
func TooManyAttempts(message string) *AppError {
	return newError(ErrTooManyAttempts, "TOO_MANY_ATTEMPTS", message, http.StatusTooManyRequests)
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	e := newError(ErrInternal, "INTERNAL_ERROR", "an internal error occurred", http.StatusInternalServerError)
	e.Cause = err
	return e
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNotFoundOrForbidden):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
