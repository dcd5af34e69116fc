package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/go-sql-driver/mysql"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	// ErrorTypeArtifact represents a dump that produced no usable output
	ErrorTypeArtifact ErrorType = "artifact"
	// ErrorTypeRestore represents a validation database that could not be rebuilt
	ErrorTypeRestore ErrorType = "restore"
	// ErrorTypeMismatch represents a structural row-count disagreement
	ErrorTypeMismatch ErrorType = "mismatch"
	// ErrorTypeDrift represents drift beyond the warn ceiling
	ErrorTypeDrift ErrorType = "drift"
	// ErrorTypeEnvironment represents best-effort steps failing (never fatal)
	ErrorTypeEnvironment ErrorType = "environment"
	// ErrorTypeExhaustion represents all retry attempts being consumed
	ErrorTypeExhaustion ErrorType = "exhaustion"
	// ErrorTypeConnection represents database connection errors
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeSQL represents SQL execution errors
	ErrorTypeSQL ErrorType = "sql"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypePermission represents permission/access errors
	ErrorTypePermission ErrorType = "permission"
	// ErrorTypeTimeout represents timeout errors
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeInterruption represents user interruption
	ErrorTypeInterruption ErrorType = "interruption"
	// ErrorTypeUnknown represents unknown errors
	ErrorTypeUnknown ErrorType = "unknown"
)

// AppError represents an application-specific error with context
type AppError struct {
	Type        ErrorType
	Message     string
	Cause       error
	Context     map[string]interface{}
	Recoverable bool
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsRecoverable returns whether the error is recoverable
func (e *AppError) IsRecoverable() bool {
	return e.Recoverable
}

// WithContext adds context information to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errorType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:        errorType,
		Message:     message,
		Cause:       cause,
		Context:     make(map[string]interface{}),
		Recoverable: false,
	}
}

// NewRecoverableError creates a new recoverable error
func NewRecoverableError(errorType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:        errorType,
		Message:     message,
		Cause:       cause,
		Context:     make(map[string]interface{}),
		Recoverable: true,
	}
}

// Attempt failure constructors. All four categories are treated identically
// by the orchestrator (fail the attempt, delete the set, retry); the type is
// carried for logging and diagnosis only, which is why they are recoverable.

// NewArtifactError reports a dump that is missing or empty
func NewArtifactError(message string, cause error) *AppError {
	return NewRecoverableError(ErrorTypeArtifact, message, cause)
}

// NewRestoreError reports a validation database rebuild failure
func NewRestoreError(message string, cause error) *AppError {
	return NewRecoverableError(ErrorTypeRestore, message, cause)
}

// NewMismatchError reports a structural row-count disagreement
func NewMismatchError(message string, cause error) *AppError {
	return NewRecoverableError(ErrorTypeMismatch, message, cause)
}

// NewDriftError reports drift beyond the warn ceiling
func NewDriftError(message string, cause error) *AppError {
	return NewRecoverableError(ErrorTypeDrift, message, cause)
}

// NewExhaustionError reports that all retry attempts were consumed
func NewExhaustionError(message string, cause error) *AppError {
	return NewAppError(ErrorTypeExhaustion, message, cause)
}

// IsAttemptFailure reports whether err belongs to one of the four categories
// that fail a single verification attempt.
func IsAttemptFailure(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	switch appErr.Type {
	case ErrorTypeArtifact, ErrorTypeRestore, ErrorTypeMismatch, ErrorTypeDrift:
		return true
	}
	return false
}

// ErrorClassifier provides methods to classify and handle different types of errors
type ErrorClassifier struct{}

// NewErrorClassifier creates a new error classifier
func NewErrorClassifier() *ErrorClassifier {
	return &ErrorClassifier{}
}

// ClassifyError analyzes an error and returns an AppError with appropriate classification
func (ec *ErrorClassifier) ClassifyError(err error) *AppError {
	if err == nil {
		return nil
	}

	// Check if it's already an AppError
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	// Classify MySQL errors
	if mysqlErr := ec.classifyMySQLError(err); mysqlErr != nil {
		return mysqlErr
	}

	// Classify network errors
	if netErr := ec.classifyNetworkError(err); netErr != nil {
		return netErr
	}

	// Classify context errors
	if ctxErr := ec.classifyContextError(err); ctxErr != nil {
		return ctxErr
	}

	// Classify file system errors
	if fsErr := ec.classifyFileSystemError(err); fsErr != nil {
		return fsErr
	}

	// Default to unknown error
	return NewAppError(ErrorTypeUnknown, "An unexpected error occurred", err)
}

// classifyMySQLError classifies MySQL-specific errors
func (ec *ErrorClassifier) classifyMySQLError(err error) *AppError {
	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) {
		return nil
	}

	switch mysqlErr.Number {
	case 1044, 1045: // Access denied
		return NewAppError(ErrorTypePermission,
			"Access denied - check username and password", err)
	case 1049: // Unknown database
		return NewAppError(ErrorTypeConnection,
			fmt.Sprintf("Unknown database: %s", mysqlErr.Message), err)
	case 1146: // Table doesn't exist
		return NewAppError(ErrorTypeSQL,
			fmt.Sprintf("Table does not exist: %s", mysqlErr.Message), err)
	case 2002, 2003, 2005: // Connection failures
		return NewRecoverableError(ErrorTypeConnection,
			"Cannot connect to MySQL server", err)
	case 1205: // Lock wait timeout
		return NewRecoverableError(ErrorTypeTimeout,
			"Lock wait timeout exceeded", err)
	default:
		return NewAppError(ErrorTypeSQL,
			fmt.Sprintf("MySQL error %d: %s", mysqlErr.Number, mysqlErr.Message), err)
	}
}

// classifyNetworkError classifies network-related errors
func (ec *ErrorClassifier) classifyNetworkError(err error) *AppError {
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewRecoverableError(ErrorTypeTimeout,
				"Network operation timed out", err)
		}
		return NewRecoverableError(ErrorTypeConnection,
			"Network error occurred", err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return NewRecoverableError(ErrorTypeConnection,
			fmt.Sprintf("Network operation failed: %s", opErr.Op), err)
	}

	return nil
}

// classifyContextError classifies context cancellation and deadline errors
func (ec *ErrorClassifier) classifyContextError(err error) *AppError {
	if errors.Is(err, context.Canceled) {
		return NewAppError(ErrorTypeInterruption, "Operation was canceled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewRecoverableError(ErrorTypeTimeout, "Operation deadline exceeded", err)
	}
	return nil
}

// classifyFileSystemError classifies file system errors
func (ec *ErrorClassifier) classifyFileSystemError(err error) *AppError {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		switch pathErr.Err {
		case syscall.ENOENT:
			return NewAppError(ErrorTypeValidation,
				fmt.Sprintf("File or directory not found: %s", pathErr.Path), err)
		case syscall.EACCES:
			return NewAppError(ErrorTypePermission,
				fmt.Sprintf("Permission denied: %s", pathErr.Path), err)
		case syscall.ENOSPC:
			return NewAppError(ErrorTypeValidation,
				"No space left on device", err)
		}
	}

	return nil
}

// WrapError wraps an existing error with additional context
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Type:        appErr.Type,
			Message:     fmt.Sprintf("%s: %s", message, appErr.Message),
			Cause:       appErr.Cause,
			Context:     appErr.Context,
			Recoverable: appErr.Recoverable,
		}
	}

	classified := NewErrorClassifier().ClassifyError(err)
	classified.Message = fmt.Sprintf("%s: %s", message, classified.Message)
	return classified
}

// CreateContextWithTimeout creates a context with timeout and cancellation support
func CreateContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}
