package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataFor(t *testing.T) {
	cases := []struct {
		code   Code
		status int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeOutOfStock, http.StatusConflict},
		{CodeSignatureInvalid, http.StatusBadRequest},
		{CodeStateConflict, http.StatusUnprocessableEntity},
		{CodeDependency, http.StatusServiceUnavailable},
		{Code("SOMETHING_NEW"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := MetadataFor(tc.code).HTTPStatus; got != tc.status {
			t.Errorf("MetadataFor(%s).HTTPStatus = %d, want %d", tc.code, got, tc.status)
		}
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("row locked")
	err := Wrap(CodeDependency, cause, "reserve inventory")
	if err.Unwrap() != cause {
		t.Fatalf("expected cause preserved, got %v", err.Unwrap())
	}
	if err.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", err.Code())
	}
}

func TestAs(t *testing.T) {
	typed := New(CodeOutOfStock, "variant sold out").WithDetails(map[string]any{"variant_id": "v1"})
	wrapped := fmt.Errorf("checkout: %w", typed)

	got := As(wrapped)
	if got == nil {
		t.Fatal("expected typed error from chain")
	}
	if got.Code() != CodeOutOfStock {
		t.Fatalf("unexpected code %s", got.Code())
	}
	if As(fmt.Errorf("plain")) != nil {
		t.Fatal("expected nil for untyped error")
	}
}

func TestNilErrorAccessors(t *testing.T) {
	var err *Error
	if err.Code() != CodeInternal {
		t.Fatalf("nil error should report internal code, got %s", err.Code())
	}
	if err.Message() != "" || err.Details() != nil {
		t.Fatal("nil error should have empty message and details")
	}
}
