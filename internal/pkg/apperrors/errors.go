package apperrors

import "errors"

// Common errors
var (
	ErrResourceNotFound      = errors.New("resource not found")
	ErrResourceAlreadyExists = errors.New("resource already exists")
	ErrConflict              = errors.New("conflict")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrAccountDisabled    = errors.New("account is disabled")

	ErrPermissionDenied = errors.New("permission denied")
	ErrNoSchoolAssigned = errors.New("no school assigned to this account")

	ErrValidationFailed = errors.New("validation failed")
	ErrBadRequest       = errors.New("bad request")

	// ErrImportFormat marks an uploaded file that could not be parsed at all,
	// as opposed to individual rows that failed validation.
	ErrImportFormat = errors.New("import file could not be read")
)

// School directory errors
var (
	ErrSchoolNotFound      = errors.New("school not found")
	ErrSchoolAlreadyExists = errors.New("school with this name or short code already exists")
	ErrSchoolHasRelations  = errors.New("school has students, classes or books and cannot be deleted")
	ErrUserNotFound        = errors.New("user not found")
	ErrProfileNotFound     = errors.New("user school profile not found")
)

// Catalog errors
var (
	ErrCategoryNotFound      = errors.New("category not found")
	ErrCategoryAlreadyExists = errors.New("category with this name already exists")
	ErrBookNotFound          = errors.New("book not found")
	ErrBookHasActiveBorrows  = errors.New("book has borrow records and cannot be deleted")
)

// Student directory errors
var (
	ErrClassGroupNotFound      = errors.New("class group not found")
	ErrClassGroupAlreadyExists = errors.New("class group with this name already exists in the school")
	ErrStudentNotFound         = errors.New("student not found")
	ErrStudentIDAlreadyExists  = errors.New("student ID already exists")
	ErrStudentHasBorrows       = errors.New("student has borrow records and cannot be deleted")
)

// Ledger errors
var (
	ErrTransactionNotFound = errors.New("borrow transaction not found")
	ErrNoCopiesAvailable   = errors.New("no copies available to issue")
	ErrInvalidDueDate      = errors.New("due date must be after issued date")
	ErrTransactionFinal    = errors.New("borrow transaction is already finalized")
	ErrCannotRenew         = errors.New("cannot renew this borrow (max renewals reached or not issued)")
	ErrNoFineDue           = errors.New("no unpaid fine on this borrow")
)

// NewResourceNotFoundError creates a new custom error for resource not found with a message
func NewResourceNotFoundError(message string) error {
	return &CustomError{Err: ErrResourceNotFound, Message: message}
}

// NewConflictError creates a new custom error for conflict situations with a message
func NewConflictError(message string) error {
	return &CustomError{Err: ErrConflict, Message: message}
}

// NewForbiddenError creates a new custom error for permission denied with a message
func NewForbiddenError(message string) error {
	return &CustomError{Err: ErrPermissionDenied, Message: message}
}

// NewValidationError creates a validation error carrying a user-facing message
func NewValidationError(message string) error {
	return &CustomError{Err: ErrValidationFailed, Message: message}
}

// Is returns whether err matches target or any of errList
func Is(err, target error, errList ...error) bool {
	if errors.Is(err, target) {
		return true
	}
	for _, e := range errList {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// CustomError represents application-specific errors with additional context
type CustomError struct {
	Err     error
	Message string
	Details interface{}
}

// Error implements error interface
func (e *CustomError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements errors.Unwrap interface
func (e *CustomError) Unwrap() error {
	return e.Err
}

// NewCustomError creates a CustomError with underlying error
func NewCustomError(err error, message string) *CustomError {
	return &CustomError{Err: err, Message: message}
}

// WithDetails attaches structured context (for example a list of row errors)
func (e *CustomError) WithDetails(details interface{}) *CustomError {
	e.Details = details
	return e
}

// kinds groups every specific sentinel under the generic kind used for HTTP mapping.
var kinds = map[error][]error{
	ErrResourceNotFound: {
		ErrSchoolNotFound, ErrUserNotFound, ErrProfileNotFound, ErrCategoryNotFound,
		ErrBookNotFound, ErrClassGroupNotFound, ErrStudentNotFound, ErrTransactionNotFound,
	},
	ErrConflict: {
		ErrResourceAlreadyExists, ErrSchoolAlreadyExists, ErrSchoolHasRelations, ErrCategoryAlreadyExists,
		ErrBookHasActiveBorrows, ErrClassGroupAlreadyExists, ErrStudentIDAlreadyExists, ErrStudentHasBorrows,
	},
	ErrValidationFailed: {
		ErrBadRequest, ErrNoCopiesAvailable, ErrInvalidDueDate, ErrTransactionFinal,
		ErrCannotRenew, ErrNoFineDue, ErrImportFormat,
	},
	ErrPermissionDenied: {ErrNoSchoolAssigned},
}

// KindOf reports the generic kind of err: one of ErrResourceNotFound, ErrConflict,
// ErrValidationFailed, ErrPermissionDenied, or nil when err is none of them.
func KindOf(err error) error {
	for kind, members := range kinds {
		if Is(err, kind, members...) {
			return kind
		}
	}
	return nil
}
