package store

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/dss/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() db.KVDB

// IStore is the generic interface for interacting with a string key–value store.
// All write operations return only an error (nil on success), read operations
// return the requested data along with an error (nil on success).
// Errors returned by implementations are *Error values carrying a RetCode.
type IStore interface {
	// Put inserts or updates a key–value pair.
	Put(key, value string) (err error)
	// PutBatch inserts or updates all pairs in one atomic write.
	PutBatch(keyValues map[string]string) (err error)
	// PutSwap sets key to newValue if the stored value equals *oldValue.
	// A nil oldValue means the key must not exist. applied reports whether the swap happened.
	PutSwap(key string, oldValue *string, newValue string) (applied bool, err error)
	// PutSwapWithOthers behaves like PutSwap and, only if the swap is applied,
	// writes all pairs in others within the same atomic write.
	PutSwapWithOthers(key string, oldValue *string, newValue string, others map[string]string) (applied bool, err error)
	// Get return the value for a key. The boolean return value indicates whether a value for the key was found.
	Get(key string) (value string, found bool, err error)
	// GetPrefix returns all pairs whose key starts with keyPrefix.
	GetPrefix(keyPrefix string) (keyValues map[string]string, err error)
	// Delete deletes a key–value pair. Deleting a missing key is not an error.
	Delete(key string) (err error)
	// DeleteBatch deletes all keys in one atomic write.
	DeleteBatch(keys []string) (err error)
	// DeletePrefix deletes every key starting with keyPrefix.
	DeletePrefix(keyPrefix string) (err error)
	// GetDBInfo returns metadata about the database underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCInvalidArgument                     // 4: A required argument is missing or empty.
	RetCIntegrityViolation                  // 5: The store returned data the caller does not own.
	RetCUnavailable                         // 6: The store could not be reached.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCInvalidArgument:
		return "InvalidArgument"
	case RetCIntegrityViolation:
		return "IntegrityViolation"
	case RetCUnavailable:
		return "Unavailable"
	default:
		return fmt.Sprintf("Unknown(%d)", uint64(c))
	}
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode),
// an error message and optionally the underlying cause.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
	Err  error   // The cause (optional)
}

// Sentinels for errors.Is. Two *Error values match if their codes are equal.
var (
	ErrInternal             = &Error{Code: RetCInternalError}
	ErrUnsupportedOperation = &Error{Code: RetCUnsupportedOperation}
	ErrInvalidOperation     = &Error{Code: RetCInvalidOperation}
	ErrInvalidArgument      = &Error{Code: RetCInvalidArgument}
	ErrIntegrityViolation   = &Error{Code: RetCIntegrityViolation}
	ErrUnavailable          = &Error{Code: RetCUnavailable}
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("StoreError (code %s): %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new store error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// WrapError creates a new store error with the given code and message that wraps err.
func WrapError(code RetCode, msg string, err error) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
		Err:  err,
	}
}

// CodeOf returns the code of the first *Error in err's chain.
// nil maps to RetCSuccess, any other error to RetCInternalError.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return RetCInternalError
}
