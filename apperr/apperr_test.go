package apperr_test

import (
	"errors"
	"testing"

	"goa.design/responses-bridge/apperr"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		kind apperr.Kind
		want int
	}{
		{apperr.InvalidRequest, 400},
		{apperr.NotFound, 404},
		{apperr.NotImplemented, 501},
		{apperr.BadGateway, 502},
		{apperr.Timeout, 504},
		{apperr.Internal, 500},
	}
	for _, c := range cases {
		err := apperr.New(c.kind, "", "boom", nil)
		if got := apperr.HTTPStatus(err); got != c.want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", c.kind, got, c.want)
		}
	}
}

func TestHTTPStatusNonAppErr(t *testing.T) {
	if got := apperr.HTTPStatus(errors.New("plain")); got != 500 {
		t.Errorf("HTTPStatus(plain) = %d, want 500", got)
	}
}

func TestAsUnwraps(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	wrapped := apperr.Wrap(apperr.Timeout, cause)
	ae, ok := apperr.As(wrapped)
	if !ok {
		t.Fatal("expected *Error")
	}
	if !errors.Is(wrapped, cause) {
		t.Error("expected Unwrap to reach cause")
	}
	if ae.Kind() != apperr.Timeout {
		t.Errorf("Kind() = %s, want timeout", ae.Kind())
	}
}

func TestWithRequestID(t *testing.T) {
	err := apperr.New(apperr.Internal, "boom_code", "boom", nil).WithRequestID("req_1")
	if err.RequestID() != "req_1" {
		t.Errorf("RequestID() = %q, want req_1", err.RequestID())
	}
}
