package store

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIs(t *testing.T) {
	err := NewError(RetCInvalidArgument, "key must not be empty")

	if !errors.Is(err, ErrInvalidArgument) {
		t.Error("expected match on the same code")
	}
	if errors.Is(err, ErrIntegrityViolation) {
		t.Error("expected no match on a different code")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if !errors.Is(wrapped, ErrInvalidArgument) {
		t.Error("expected match through fmt wrapping")
	}
}

func TestWrapError(t *testing.T) {
	cause := errors.New("disk on fire")
	err := WrapError(RetCInternalError, "Put failed", cause)

	if !errors.Is(err, cause) {
		t.Error("expected the cause to be reachable")
	}
	if !errors.Is(err, ErrInternal) {
		t.Error("expected match on the code")
	}
	if got := err.Error(); got != "StoreError (code InternalError): Put failed: disk on fire" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want RetCode
	}{
		{"nil", nil, RetCSuccess},
		{"plain", errors.New("x"), RetCInternalError},
		{"store error", NewError(RetCUnavailable, "down"), RetCUnavailable},
		{"wrapped", fmt.Errorf("ctx: %w", NewError(RetCIntegrityViolation, "leak")), RetCIntegrityViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetCodeString(t *testing.T) {
	if RetCIntegrityViolation.String() != "IntegrityViolation" {
		t.Errorf("unexpected name %q", RetCIntegrityViolation.String())
	}
	if RetCode(99).String() != "Unknown(99)" {
		t.Errorf("unexpected name %q", RetCode(99).String())
	}
}

func TestCheckHelpers(t *testing.T) {
	if err := CheckKey("Put", ""); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected InvalidArgument, got %v", err)
	}
	if err := CheckKey("Put", "k"); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if err := CheckKeyValues("PutBatch", nil); err != nil {
		t.Errorf("nil map must pass, got %v", err)
	}
	if err := CheckKeyValues("PutBatch", map[string]string{"": "v"}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected InvalidArgument, got %v", err)
	}
	if err := CheckKeys("DeleteBatch", []string{"a", ""}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected InvalidArgument, got %v", err)
	}
}
