package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestNew_DerivesCategoryFromCode(t *testing.T) {
	tests := []struct {
		code string
		want Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeStateCorrupt, CategoryIO},
		{ErrCodeQueryEmpty, CategoryValidation},
		{ErrCodeInternal, CategoryInternal},
	}

	for _, tt := range tests {
		e := New(tt.code, "msg", nil)
		if e.Category != tt.want {
			t.Errorf("New(%s): category = %s, want %s", tt.code, e.Category, tt.want)
		}
	}
}

func TestStateCorrupt_IsWarningSeverity(t *testing.T) {
	e := StateCorrupt("arms file unreadable", fmt.Errorf("unexpected EOF"))
	if e.Severity != SeverityWarning {
		t.Errorf("severity = %s, want %s", e.Severity, SeverityWarning)
	}
	if IsFatal(e) {
		t.Error("corrupt state must never be fatal")
	}
}

func TestError_UnwrapChain(t *testing.T) {
	cause := fmt.Errorf("disk says no")
	e := Wrap(ErrCodePersistFailed, fmt.Errorf("saving arms: %w", cause))

	if !stderrors.Is(e, cause) {
		t.Error("expected errors.Is to find wrapped cause")
	}
}

func TestError_IsMatchesByCode(t *testing.T) {
	a := New(ErrCodeInvalidK, "k out of range", nil)
	b := New(ErrCodeInvalidK, "different message", nil)
	c := New(ErrCodeQueryEmpty, "empty", nil)

	if !stderrors.Is(a, b) {
		t.Error("errors with same code should match")
	}
	if stderrors.Is(a, c) {
		t.Error("errors with different codes should not match")
	}
}

func TestIsValidation(t *testing.T) {
	if !IsValidation(New(ErrCodeQueryTooLong, "too long", nil)) {
		t.Error("query-too-long should be a validation error")
	}
	if IsValidation(New(ErrCodeStateCorrupt, "corrupt", nil)) {
		t.Error("corrupt state is not a validation error")
	}
	if IsValidation(fmt.Errorf("plain")) {
		t.Error("plain errors are not validation errors")
	}
}

func TestWithDetail(t *testing.T) {
	e := ValidationError("bad input").WithDetail("field", "k").WithDetail("value", "0")
	if e.Details["field"] != "k" || e.Details["value"] != "0" {
		t.Errorf("details not recorded: %v", e.Details)
	}
}

func TestWrap_NilReturnsNil(t *testing.T) {
	if Wrap(ErrCodeInternal, nil) != nil {
		t.Error("wrapping nil should return nil")
	}
}
