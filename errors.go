package cryptic

import (
	"errors"
	"fmt"
)

// Error types represent the categories callers can act on. A wrong
// password and a tampered or corrupted container both produce a
// *DecryptionError.

// PasswordError reports a password rejected before any cryptographic work
type PasswordError struct {
	Reason string
}

func (e *PasswordError) Error() string {
	return fmt.Sprintf("invalid password: %s", e.Reason)
}

func (e *PasswordError) Unwrap() error {
	return ErrInvalidPassword
}

// MalformedContainerError reports container bytes that are structurally
// invalid: truncated, an unknown version, or out-of-range header fields
type MalformedContainerError struct {
	Field   string // Header field that failed, if any
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *MalformedContainerError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("malformed container: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("malformed container: %s", e.Message)
}

func (e *MalformedContainerError) Unwrap() error {
	return e.Err
}

// Is makes every MalformedContainerError match ErrMalformedContainer
func (e *MalformedContainerError) Is(target error) bool {
	return target == ErrMalformedContainer
}

// DecryptionError is the only error Decrypt returns once a container has
// been decoded. It carries no detail about the cause.
type DecryptionError struct{}

func (e *DecryptionError) Error() string {
	return ErrDecryption.Error()
}

func (e *DecryptionError) Unwrap() error {
	return ErrDecryption
}

// ValidationError represents a configuration or parameter validation error
type ValidationError struct {
	Field   string // The field or parameter that failed validation
	Value   any    // The invalid value
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// EncryptionError represents a failure on the encrypt path after the
// inputs were accepted (random source, cipher setup)
type EncryptionError struct {
	Operation string // "salt", "iv", "key", "seal", "encode"
	Message   string // Human-readable error message
	Err       error  // Underlying error
}

func (e *EncryptionError) Error() string {
	return fmt.Sprintf("encrypt error: %s: %s", e.Operation, e.Message)
}

func (e *EncryptionError) Unwrap() error {
	return e.Err
}

// IOError represents a file system I/O error
type IOError struct {
	Operation string // "read", "write", "stat", "rename", etc.
	Path      string // File path
	Message   string // Human-readable error message
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("io error: %s %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("io error: %s: %s", e.Operation, e.Message)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Sentinel errors. Callers should compare with errors.Is.
var (
	ErrInvalidPassword    = errors.New("invalid password")
	ErrMalformedContainer = errors.New("malformed container")
	ErrDecryption         = errors.New("invalid password or corrupted file")

	// Internal causes, collapsed into ErrDecryption by Decrypt
	ErrAuthFailed       = errors.New("authentication failed - data may be corrupted or tampered")
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrSerialization    = errors.New("payload serialization failed")

	ErrUnsupportedVersion = errors.New("unsupported container format version")

	ErrInvalidKey        = errors.New("invalid encryption key")
	ErrInvalidIV         = errors.New("invalid iv")
	ErrUnsupportedKDF    = errors.New("unsupported key derivation function")
	ErrUnsupportedCipher = errors.New("unsupported cipher for format version")
	ErrNilConfig         = errors.New("config cannot be nil")
	ErrNilPayload        = errors.New("payload cannot be nil")
	ErrNilFileSystem     = errors.New("filesystem cannot be nil")
)

// NewValidationError creates a new validation error
func NewValidationError(field string, value any, message string) error {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NewEncryptionError creates a new encryption error
func NewEncryptionError(operation string, err error) error {
	return &EncryptionError{
		Operation: operation,
		Message:   err.Error(),
		Err:       err,
	}
}

// NewIOError creates a new I/O error
func NewIOError(operation, path string, err error) error {
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   err.Error(),
		Err:       err,
	}
}

func newMalformedError(field, message string) error {
	return &MalformedContainerError{
		Field:   field,
		Message: message,
	}
}

// IsPasswordError checks if an error is a password policy error
func IsPasswordError(err error) bool {
	return errors.Is(err, ErrInvalidPassword)
}

// IsMalformedContainer checks if an error is a structural container error
func IsMalformedContainer(err error) bool {
	return errors.Is(err, ErrMalformedContainer)
}

// IsDecryptionError checks if an error is the generic decryption failure
func IsDecryptionError(err error) bool {
	return errors.Is(err, ErrDecryption)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsEncryptionError checks if an error is an encryption error
func IsEncryptionError(err error) bool {
	var ee *EncryptionError
	return errors.As(err, &ee)
}

// IsIOError checks if an error is an I/O error
func IsIOError(err error) bool {
	var ie *IOError
	return errors.As(err, &ie)
}
