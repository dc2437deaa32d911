package errors

import (
	"errors"
	"fmt"
)

// Common error types for categorization and handling

var (
	// ErrNoJSONObject indicates oracle output contained no parseable JSON object
	ErrNoJSONObject = errors.New("no json object in oracle output")

	// ErrOracleCommunication indicates the oracle request itself failed
	ErrOracleCommunication = errors.New("oracle communication failed")

	// ErrUnsupportedFile indicates an input document format without a reader
	ErrUnsupportedFile = errors.New("unsupported file type")

	// ErrInvalidExtraction indicates the oracle object lacked required fields
	ErrInvalidExtraction = errors.New("invalid extraction object")

	// ErrDatabaseOperation indicates a database operation failed
	ErrDatabaseOperation = errors.New("database operation failed")
)

// WrapError wraps an error with context message and stack
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// WrapErrorf wraps an error with formatted context message
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// IsNoJSONObject checks if error means the oracle produced no object at all
func IsNoJSONObject(err error) bool {
	return errors.Is(err, ErrNoJSONObject)
}

// IsUnsupportedFile checks if error is an unsupported input format error
func IsUnsupportedFile(err error) bool {
	return errors.Is(err, ErrUnsupportedFile)
}

// IsOracleCommunication checks if error is an oracle transport error
func IsOracleCommunication(err error) bool {
	return errors.Is(err, ErrOracleCommunication)
}
