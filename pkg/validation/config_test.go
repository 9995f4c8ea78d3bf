package validation

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestConfigValidator_Required(t *testing.T) {
	if err := NewConfigValidator("store").Required("backend", "").Validate(); err == nil {
		t.Error("Expected error for empty required field")
	}
	if err := NewConfigValidator("store").Required("backend", "memory").Validate(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestConfigValidator_Positive(t *testing.T) {
	tests := []struct {
		value       int
		expectError bool
	}{
		{-1, true},
		{0, true},
		{1, false},
	}
	for _, tt := range tests {
		err := NewConfigValidator("store").Positive("max_document_bytes", tt.value).Validate()
		if (err != nil) != tt.expectError {
			t.Errorf("Positive(%d): error = %v, expectError %v", tt.value, err, tt.expectError)
		}
	}
}

func TestConfigValidator_NonNegative(t *testing.T) {
	if err := NewConfigValidator("executor").NonNegative("spill", -1).Validate(); err == nil {
		t.Error("Expected error for negative value")
	}
	if err := NewConfigValidator("executor").NonNegative("spill", 0).Validate(); err != nil {
		t.Errorf("Expected no error for zero, got %v", err)
	}
}

func TestConfigValidator_PositiveDuration(t *testing.T) {
	if err := NewConfigValidator("transport").PositiveDuration("timeout", 0).Validate(); err == nil {
		t.Error("Expected error for zero duration")
	}
	if err := NewConfigValidator("transport").PositiveDuration("timeout", time.Second).Validate(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestConfigValidator_OneOf(t *testing.T) {
	err := NewConfigValidator("store").OneOf("backend", "mysql", "memory", "postgres").Validate()
	if err == nil {
		t.Fatal("Expected error for value outside the allowed set")
	}
	if !strings.Contains(err.Error(), "store.backend") {
		t.Errorf("Expected error to name the field, got %v", err)
	}
	if err := NewConfigValidator("store").OneOf("backend", "memory", "memory", "postgres").Validate(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestConfigValidator_Custom(t *testing.T) {
	sentinel := errors.New("boom")
	err := NewConfigValidator("client").Custom("retries", func() error { return sentinel }).Validate()
	if !errors.Is(err, sentinel) {
		t.Errorf("Expected wrapped sentinel, got %v", err)
	}
}

func TestConfigValidator_When(t *testing.T) {
	cv := NewConfigValidator("store")
	cv.When(false, func(cv *ConfigValidator) { cv.Required("postgres_url", "") })
	if err := cv.Validate(); err != nil {
		t.Errorf("Expected skipped validation, got %v", err)
	}
	cv.When(true, func(cv *ConfigValidator) { cv.Required("postgres_url", "") })
	if err := cv.Validate(); err == nil {
		t.Error("Expected error from applied validation")
	}
}

func TestConfigValidator_MultipleErrors(t *testing.T) {
	sentinel := errors.New("bad")
	cv := NewConfigValidator("cfg").
		Required("a", "").
		Positive("b", 0).
		Custom("c", func() error { return sentinel })

	if len(cv.Errors()) != 3 {
		t.Fatalf("Expected 3 errors, got %d", len(cv.Errors()))
	}
	if err := cv.Validate(); !errors.Is(err, sentinel) {
		t.Errorf("Expected joined error to contain sentinel, got %v", err)
	}
}

func TestDefaultOrInt(t *testing.T) {
	if got := DefaultOrInt(0, 3); got != 3 {
		t.Errorf("DefaultOrInt(0, 3) = %d", got)
	}
	if got := DefaultOrInt(5, 3); got != 5 {
		t.Errorf("DefaultOrInt(5, 3) = %d", got)
	}
}

func TestDefaultOrDuration(t *testing.T) {
	if got := DefaultOrDuration(-time.Second, time.Minute); got != time.Minute {
		t.Errorf("DefaultOrDuration(-1s, 1m) = %v", got)
	}
	if got := DefaultOrDuration(time.Second, time.Minute); got != time.Second {
		t.Errorf("DefaultOrDuration(1s, 1m) = %v", got)
	}
}
