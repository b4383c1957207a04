package xerrors

import (
	"errors"
	"testing"
)

func TestIsClassifiesByKind(t *testing.T) {
	err := Fatal(errors.New("boom"), "patch failed")
	if !Is(err, KindFatal) {
		t.Errorf("expected KindFatal, got %v", err)
	}
	if Is(err, KindTransient) {
		t.Errorf("did not expect KindTransient for %v", err)
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Transient(cause, "get namespace %s", "openshift-adp")
	if !errors.Is(err, cause) {
		t.Errorf("expected Unwrap() to expose cause, got %v", errors.Unwrap(err))
	}
	if err.Kind != KindTransient {
		t.Errorf("expected KindTransient, got %s", err.Kind)
	}
}

func TestErrorStringIncludesKindAndMessage(t *testing.T) {
	err := Validation("context %q must be non-empty", "")
	msg := err.Error()
	if msg == "" {
		t.Fatal("expected non-empty error string")
	}
}
