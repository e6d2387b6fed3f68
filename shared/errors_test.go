package shared

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestErrorTaxonomyCodes(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{NewIllegalTransition("approve", "DRAFT"), CodeIllegalTransition},
		{NewNotFound("request", int64(42)), CodeNotFound},
		{NewRemoteUnavailable("fetch", errors.New("connection refused")), CodeRemoteUnavailable},
		{NewDecodeFailure("decode request", errors.New("unexpected end of JSON input")), CodeDecodeFailure},
		{NewTimeout("await_ready", 30*time.Second), CodeTimeout},
	}

	for _, tc := range cases {
		if !IsCode(tc.err, tc.code) {
			t.Errorf("%v: code %q not detectable", tc.err, tc.code)
		}
		for _, other := range cases {
			if other.code != tc.code && IsCode(tc.err, other.code) {
				t.Errorf("%v: matched foreign code %q", tc.err, other.code)
			}
		}
	}
}

func TestIsCodeSeesThroughWrapping(t *testing.T) {
	inner := NewIllegalTransition("deny", "FINAL_APPROVED")
	wrapped := fmt.Errorf("applying workflow action: %w", inner)

	if !IsIllegalTransition(wrapped) {
		t.Fatal("wrapped illegal transition not detected")
	}
	if IsNotFound(wrapped) {
		t.Fatal("wrapped error matched the wrong predicate")
	}
}

func TestIsCodeOnNilAndForeignErrors(t *testing.T) {
	if IsIllegalTransition(nil) {
		t.Error("nil error matched a code")
	}
	if IsNotFound(errors.New("plain error")) {
		t.Error("plain error matched a code")
	}
}

func TestIllegalTransitionMessageNamesActionAndStatus(t *testing.T) {
	se := NewIllegalTransition("withdraw", "DENIED")
	if se.Message == "" {
		t.Fatal("empty message")
	}
	for _, fragment := range []string{"withdraw", "DENIED"} {
		if !strings.Contains(se.Message, fragment) {
			t.Errorf("message %q does not mention %q", se.Message, fragment)
		}
	}
}

func TestRetryabilityByConstructor(t *testing.T) {
	if IsRetryableError(NewIllegalTransition("submit", "SUBMITTED")) {
		t.Error("illegal transition should not be retryable")
	}
	if IsRetryableError(NewNotFound("request", int64(1))) {
		t.Error("not found should not be retryable")
	}
	if !IsRetryableError(NewRemoteUnavailable("create", nil)) {
		t.Error("remote unavailability should be retryable")
	}
	if !IsRetryableError(NewTimeout("await_ready", time.Second)) {
		t.Error("await timeout should be retryable")
	}
}
