package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormatsWithAndWithoutField(t *testing.T) {
	err := New(CodeRequired, "name is required")
	if got, want := err.Error(), "[REQUIRED] name is required"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	withField := NewWithField(CodeInvalidRange, "must be >= 10s", "settings.check_interval")
	if got, want := withField.Error(), "[INVALID_RANGE] must be >= 10s (field: settings.check_interval)"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestNewDefaultsToSeverityError(t *testing.T) {
	err := New(CodeDuplicate, "duplicate service name")
	if err.Code != CodeDuplicate {
		t.Errorf("Code = %v, want %v", err.Code, CodeDuplicate)
	}
	if err.Severity != SeverityError {
		t.Errorf("Severity = %v, want %v", err.Severity, SeverityError)
	}
}

func TestNewWarningSetsSeverityWarning(t *testing.T) {
	err := NewWarning(CodeUnknownKey, "unrecognized key ignored")
	if err.Severity != SeverityWarning {
		t.Errorf("Severity = %v, want %v", err.Severity, SeverityWarning)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(cause, CodeInternal, "failed to write snapshot")

	if !errors.Is(err, cause) {
		t.Error("Wrap() should preserve the cause for errors.Is/errors.As unwrapping")
	}
	if err.Unwrap() != cause {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), cause)
	}
}

func TestWithDetailsFieldSeverityChaining(t *testing.T) {
	err := New(CodeCrossField, "warning_threshold must be less than timeout").
		WithField("pings[2].warning_threshold").
		WithDetails("service", "checkout-api").
		WithSeverity(SeverityCritical)

	if err.Field != "pings[2].warning_threshold" {
		t.Errorf("Field = %q", err.Field)
	}
	if err.Details["service"] != "checkout-api" {
		t.Errorf("Details[service] = %v", err.Details["service"])
	}
	if err.Severity != SeverityCritical {
		t.Errorf("Severity = %v, want %v", err.Severity, SeverityCritical)
	}
}

func TestIsMatchesCodeThroughWrapping(t *testing.T) {
	err := New(CodeDuplicate, "duplicate service name")

	if !Is(err, CodeDuplicate) {
		t.Error("Is() should match the same code")
	}
	if Is(err, CodeRequired) {
		t.Error("Is() should not match a different code")
	}
	if !Is(fmt.Errorf("loading config: %w", err), CodeDuplicate) {
		t.Error("Is() should match the code through a wrapping error")
	}
	if Is(errors.New("plain error"), CodeDuplicate) {
		t.Error("Is() should return false for a non-apperror error")
	}
}

func TestCodeExtractsOrFallsBackToInternal(t *testing.T) {
	err := New(CodeInvalidEnum, "bad protocol")
	if Code(err) != CodeInvalidEnum {
		t.Errorf("Code() = %v, want %v", Code(err), CodeInvalidEnum)
	}
	if Code(errors.New("plain error")) != CodeInternal {
		t.Errorf("Code() = %v, want %v", Code(errors.New("x")), CodeInternal)
	}
}

func TestIsWarningAndIsCritical(t *testing.T) {
	warning := NewWarning(CodeUnknownKey, "ignored")
	critical := New(CodeInternal, "fatal").WithSeverity(SeverityCritical)
	plain := New(CodeRequired, "required")

	if !IsWarning(warning) {
		t.Error("IsWarning() should be true for a warning-severity error")
	}
	if IsWarning(plain) {
		t.Error("IsWarning() should be false for an error-severity error")
	}
	if !IsCritical(critical) {
		t.Error("IsCritical() should be true for a critical-severity error")
	}
	if IsCritical(plain) {
		t.Error("IsCritical() should be false for an error-severity error")
	}
}

func TestValidationErrorsAddRoutesBySeverity(t *testing.T) {
	ve := NewValidationErrors()
	if ve.HasErrors() || !ve.IsValid() {
		t.Error("a fresh ValidationErrors should be valid")
	}

	ve.Add(New(CodeRequired, "name required"))
	ve.Add(NewWarning(CodeUnknownKey, "unknown key ignored"))

	if len(ve.Errors) != 1 {
		t.Errorf("len(Errors) = %d, want 1", len(ve.Errors))
	}
	if len(ve.Warnings) != 1 {
		t.Errorf("len(Warnings) = %d, want 1", len(ve.Warnings))
	}
	if ve.IsValid() {
		t.Error("ValidationErrors with an error should not be valid")
	}
}

func TestValidationErrorsAddErrorWithField(t *testing.T) {
	ve := NewValidationErrors()
	ve.AddErrorWithField(CodeDuplicate, "duplicate name", "pings[3].name")

	if len(ve.Errors) != 1 {
		t.Fatalf("len(Errors) = %d, want 1", len(ve.Errors))
	}
	if ve.Errors[0].Field != "pings[3].name" {
		t.Errorf("Field = %q", ve.Errors[0].Field)
	}
}

func TestValidationErrorsMerge(t *testing.T) {
	ve1 := NewValidationErrors()
	ve1.AddError(CodeRequired, "error1")

	ve2 := NewValidationErrors()
	ve2.Add(NewWarning(CodeUnknownKey, "warning1"))

	ve1.Merge(ve2)

	if len(ve1.Errors) != 1 || len(ve1.Warnings) != 1 {
		t.Errorf("Merge() produced Errors=%d Warnings=%d, want 1/1", len(ve1.Errors), len(ve1.Warnings))
	}

	ve1.Merge(nil)
	if len(ve1.Errors) != 1 {
		t.Error("Merge(nil) should be a no-op")
	}
}

func TestValidationErrorsErrorMessagesAndError(t *testing.T) {
	ve := NewValidationErrors()
	if ve.Error() != "" {
		t.Errorf("Error() on an empty collection = %q, want empty string", ve.Error())
	}

	ve.AddError(CodeRequired, "name required")
	ve.AddErrorWithField(CodeDuplicate, "duplicate name", "pings[1].name")

	messages := ve.ErrorMessages()
	if len(messages) != 2 {
		t.Fatalf("len(ErrorMessages()) = %d, want 2", len(messages))
	}

	combined := ve.Error()
	if combined == "" {
		t.Error("Error() should be non-empty once errors are present")
	}
}
