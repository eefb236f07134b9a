package store

import "fmt"

// --------------------------------------------------------------------------
// Argument Validation
// --------------------------------------------------------------------------

// CheckKey fails with RetCInvalidArgument if key is empty.
func CheckKey(op, key string) error {
	if key == "" {
		return NewError(RetCInvalidArgument, fmt.Sprintf("%s: key must not be empty", op))
	}
	return nil
}

// CheckKeyValues fails with RetCInvalidArgument if any key of keyValues is empty.
// A nil map passes, implementations treat it like an empty one.
func CheckKeyValues(op string, keyValues map[string]string) error {
	for k := range keyValues {
		if k == "" {
			return NewError(RetCInvalidArgument, fmt.Sprintf("%s: key must not be empty", op))
		}
	}
	return nil
}

// CheckKeys fails with RetCInvalidArgument if any element of keys is empty.
func CheckKeys(op string, keys []string) error {
	for i, k := range keys {
		if k == "" {
			return NewError(RetCInvalidArgument, fmt.Sprintf("%s: key at index %d must not be empty", op, i))
		}
	}
	return nil
}
