// Package exception provides the error taxonomy of the congresso batch engine.
// Every failure raised by the engine is a *BatchError carrying a Kind, the module where it
// happened and the retry/skip classification consumed by the retry and skip policies.
package exception

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"runtime"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
)

// Kind classifies a BatchError.
type Kind string

const (
	KindGeneric         Kind = "BatchError"
	KindValidation      Kind = "ValidationError"
	KindNotFound        Kind = "NotFoundError"
	KindAPI             Kind = "ApiError"
	KindInvalidPath     Kind = "InvalidPathError"
	KindOversized       Kind = "OversizedDocumentError"
	KindBatchCommit     Kind = "BatchCommitError"
	KindOperationFailed Kind = "OperationFailed"
	KindShape           Kind = "UnrecognizedShapeError"
)

// Sentinels matched by errors.Is against a BatchError of the same Kind.
var (
	ErrValidation      = errors.New(string(KindValidation))
	ErrNotFound        = errors.New(string(KindNotFound))
	ErrAPI             = errors.New(string(KindAPI))
	ErrInvalidPath     = errors.New(string(KindInvalidPath))
	ErrOversized       = errors.New(string(KindOversized))
	ErrBatchCommit     = errors.New(string(KindBatchCommit))
	ErrOperationFailed = errors.New(string(KindOperationFailed))
	ErrShape           = errors.New(string(KindShape))
)

var sentinels = map[Kind]error{
	KindValidation:      ErrValidation,
	KindNotFound:        ErrNotFound,
	KindAPI:             ErrAPI,
	KindInvalidPath:     ErrInvalidPath,
	KindOversized:       ErrOversized,
	KindBatchCommit:     ErrBatchCommit,
	KindOperationFailed: ErrOperationFailed,
	KindShape:           ErrShape,
}

// errorRegistry maps error names referenced in configuration (skip/retry lists) to sentinels.
var errorRegistry = make(map[string]error)

var registryMutex sync.RWMutex

// RegisterErrorType registers an error type in the registry.
// If prototype is nil or name is empty, this function will panic.
func RegisterErrorType(name string, prototype error) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if name == "" {
		panic("Error type name cannot be empty")
	}
	if prototype == nil {
		panic(fmt.Sprintf("Cannot register nil prototype for name: %s", name))
	}
	errorRegistry[name] = prototype
}

// IsErrorTypeRegistered checks if the specified error type name is registered in the registry.
func IsErrorTypeRegistered(name string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	_, ok := errorRegistry[name]
	return ok
}

// BatchError is the error type raised by the engine.
type BatchError struct {
	// Kind is the taxonomy entry of the error.
	Kind Kind
	// Module indicates where the error occurred (e.g., "api", "reader", "writer", "config").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error.
	OriginalErr error
	// Status is the upstream HTTP status for API and not-found errors, 0 otherwise.
	Status int
	// Path is the requested API path or the offending document path.
	Path string
	// Label names the retried operation of an OperationFailed error.
	Label string
	// Attempts is the number of attempts made before an OperationFailed error.
	Attempts int

	isRetryable bool
	isSkippable bool
	// StackTrace is the stack trace at the time of the error (for debugging).
	StackTrace string
}

func captureStack() string {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// NewBatchError creates a new generic BatchError instance.
func NewBatchError(module, message string, originalErr error, isSkippable, isRetryable bool) *BatchError {
	return &BatchError{
		Kind:        KindGeneric,
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
		StackTrace:  captureStack(),
	}
}

// NewBatchErrorf creates a new BatchError using a format string.
// Optional trailing arguments are extracted in the order [isSkippable bool], [isRetryable bool], [originalErr error].
//
// NewBatchErrorf("writer", "DB error", false, sql.ErrNoRows)
// -> message: "DB error", isSkippable: false, isRetryable: false, originalErr: sql.ErrNoRows
func NewBatchErrorf(module, format string, a ...interface{}) *BatchError {
	var originalErr error
	isRetryable := false
	isSkippable := false
	args := a

	if len(args) > 0 {
		if err, ok := args[len(args)-1].(error); ok {
			originalErr = err
			args = args[:len(args)-1]
		}
	}
	if len(args) > 0 {
		if b, ok := args[len(args)-1].(bool); ok {
			isRetryable = b
			args = args[:len(args)-1]
		}
	}
	if len(args) > 0 {
		if b, ok := args[len(args)-1].(bool); ok {
			isSkippable = b
			args = args[:len(args)-1]
		}
	}

	return &BatchError{
		Kind:        KindGeneric,
		Module:      module,
		Message:     fmt.Sprintf(format, args...),
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
		StackTrace:  captureStack(),
	}
}

// NewValidationError reports bad user input. The hint is shown to the CLI user.
func NewValidationError(module, message, hint string) error {
	be := &BatchError{Kind: KindValidation, Module: module, Message: message, StackTrace: captureStack()}
	if hint == "" {
		return be
	}
	return errors.WithHint(be, hint)
}

// NewNotFoundError reports an upstream 404. It is skippable and never retried.
func NewNotFoundError(module, path string, originalErr error) *BatchError {
	return &BatchError{
		Kind:        KindNotFound,
		Module:      module,
		Message:     fmt.Sprintf("resource not found: %s", path),
		OriginalErr: originalErr,
		Status:      http.StatusNotFound,
		Path:        path,
		isSkippable: true,
		StackTrace:  captureStack(),
	}
}

// NewAPIError reports a non-2xx response or a transport failure (status 0).
// 5xx, 429 and transport failures are retryable.
func NewAPIError(module, path string, status int, originalErr error) *BatchError {
	msg := fmt.Sprintf("request to %s failed", path)
	if status != 0 {
		msg = fmt.Sprintf("request to %s failed with status %d", path, status)
	}
	return &BatchError{
		Kind:        KindAPI,
		Module:      module,
		Message:     msg,
		OriginalErr: originalErr,
		Status:      status,
		Path:        path,
		isRetryable: status == 0 || status >= 500 || status == http.StatusTooManyRequests,
		isSkippable: true,
		StackTrace:  captureStack(),
	}
}

// NewShapeError reports a response none of the known shapes matches.
func NewShapeError(module, source, what string) *BatchError {
	return &BatchError{
		Kind:       KindShape,
		Module:     module,
		Message:    fmt.Sprintf("unrecognized %s from %s", what, source),
		Path:       source,
		StackTrace: captureStack(),
	}
}

// NewInvalidPathError reports a malformed store path or document id.
func NewInvalidPathError(module, path, reason string) *BatchError {
	return &BatchError{
		Kind:       KindInvalidPath,
		Module:     module,
		Message:    fmt.Sprintf("invalid document path %q: %s", path, reason),
		Path:       path,
		StackTrace: captureStack(),
	}
}

// NewOversizedDocumentError reports a document above the store size ceiling.
func NewOversizedDocumentError(module, path string, size, limit int) *BatchError {
	return &BatchError{
		Kind:        KindOversized,
		Module:      module,
		Message:     fmt.Sprintf("document %s is %d bytes, limit is %d", path, size, limit),
		Path:        path,
		isSkippable: true,
		StackTrace:  captureStack(),
	}
}

// NewBatchCommitError reports a failed or timed out batch commit of n operations.
func NewBatchCommitError(module string, n int, originalErr error) *BatchError {
	return &BatchError{
		Kind:        KindBatchCommit,
		Module:      module,
		Message:     fmt.Sprintf("batch commit of %d operations failed", n),
		OriginalErr: originalErr,
		isSkippable: true,
		StackTrace:  captureStack(),
	}
}

// NewOperationFailedError reports retry exhaustion of the labelled operation.
func NewOperationFailedError(label string, attempts int, lastErr error) *BatchError {
	be := &BatchError{
		Kind:        KindOperationFailed,
		Module:      "retry",
		Message:     fmt.Sprintf("%s failed after %d attempts", label, attempts),
		OriginalErr: lastErr,
		Label:       label,
		Attempts:    attempts,
		StackTrace:  captureStack(),
	}
	var inner *BatchError
	if errors.As(lastErr, &inner) {
		be.isSkippable = inner.isSkippable
	}
	return be
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Unwrap.
func (e *BatchError) Unwrap() error {
	return e.OriginalErr
}

// Is matches the sentinel of the error's Kind.
func (e *BatchError) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// IsRetryable returns whether this error is retryable.
func (e *BatchError) IsRetryable() bool {
	return e.isRetryable
}

// IsSkippable returns whether this error is skippable.
func (e *BatchError) IsSkippable() bool {
	return e.isSkippable
}

// IsBatchError determines if the error chain contains a BatchError.
func IsBatchError(err error) bool {
	var be *BatchError
	return errors.As(err, &be)
}

// KindOf returns the Kind of the outermost BatchError in the chain, or KindGeneric.
func KindOf(err error) Kind {
	var be *BatchError
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindGeneric
}

// IsNotFound reports whether err is an upstream not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsPermanent reports errors that no amount of retrying can fix, including ApiErrors not
// flagged retryable (4xx other than 429).
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var be *BatchError
	if !errors.As(err, &be) {
		return false
	}
	switch be.Kind {
	case KindValidation, KindNotFound, KindInvalidPath, KindOversized, KindShape:
		return true
	case KindAPI:
		return !be.IsRetryable()
	}
	return false
}

// IsTemporary determines if an error is temporary (e.g., network error, 5xx response).
// A BatchError's retryable flag takes precedence.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	var be *BatchError
	if errors.As(err, &be) {
		return be.IsRetryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "EOF")
}

// IsFatal determines if an error can be neither retried nor skipped.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var be *BatchError
	if errors.As(err, &be) {
		return !be.IsRetryable() && !be.IsSkippable()
	}
	errStr := err.Error()
	return strings.Contains(errStr, "invalid argument") ||
		strings.Contains(errStr, "permission denied") ||
		strings.Contains(errStr, "data corruption")
}

// IsErrorOfType checks if an error matches a registered name, a message substring or a Go type name.
func IsErrorOfType(err error, errorTypeName string) bool {
	if err == nil {
		return false
	}

	registryMutex.RLock()
	targetError, ok := errorRegistry[errorTypeName]
	registryMutex.RUnlock()
	if ok && errors.Is(err, targetError) {
		return true
	}

	for currentErr := err; currentErr != nil; currentErr = errors.UnwrapOnce(currentErr) {
		if strings.Contains(currentErr.Error(), errorTypeName) {
			return true
		}
		errType := reflect.TypeOf(currentErr)
		if errType != nil {
			if errType.String() == errorTypeName || (errType.Kind() == reflect.Ptr && errType.Elem().String() == errorTypeName) {
				return true
			}
		}
	}
	return false
}

// ExtractErrorMessage returns the BatchError message or the plain Error() string.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var be *BatchError
	if errors.As(err, &be) {
		return be.Message
	}
	return err.Error()
}

// Hints returns the user-facing hints attached anywhere in the chain.
func Hints(err error) string {
	return errors.FlattenHints(err)
}

func init() {
	for kind, sentinel := range sentinels {
		RegisterErrorType(string(kind), sentinel)
	}
	RegisterErrorType("context.DeadlineExceeded", context.DeadlineExceeded)
	RegisterErrorType("context.Canceled", context.Canceled)
}
