package errors

import (
	"errors"
	"testing"
)

func TestErrorMessageIncludesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Backend("write failed", cause)

	if got := err.Error(); got == "" {
		t.Fatal("expected non-empty error message")
	}
	if !errors.Is(err, cause) {
		t.Errorf("Unwrap chain should reach cause")
	}
}

func TestIsMatchesKind(t *testing.T) {
	err := Unauthorized("bearer mismatch")
	if !Is(err, KindUnauthorized) {
		t.Error("Is should report true for matching kind")
	}
	if Is(err, KindClient) {
		t.Error("Is should report false for non-matching kind")
	}
}

func TestHTTPStatusHints(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{Backend("x", nil), 503},
		{Frontend("x", nil), 503},
		{Unauthorized("x"), 401},
		{Client("x", nil), 422},
		{Timeout("x"), 504},
	}
	for _, c := range cases {
		if c.err.HTTPStatus != c.want {
			t.Errorf("%s: HTTPStatus = %d, want %d", c.err.Kind, c.err.HTTPStatus, c.want)
		}
	}
}
