package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("send request: %w", Conflict("request_pending"))
	if KindOf(wrapped) != KindConflict {
		t.Fatalf("expected conflict kind through wrapping")
	}
	if CodeOf(wrapped) != "request_pending" {
		t.Fatalf("expected code through wrapping, got %s", CodeOf(wrapped))
	}
	if KindOf(fmt.Errorf("query: %w", context.DeadlineExceeded)) != KindUnavailable {
		t.Fatalf("expected deadline to be unavailable")
	}
	if KindOf(errors.New("boom")) != KindInternal {
		t.Fatalf("expected unclassified error to be internal")
	}
	if CodeOf(errors.New("pq: relation does not exist")) != "server_error" {
		t.Fatalf("driver text must not leak into the code")
	}
}

func TestSentinelMatching(t *testing.T) {
	notFound := NotFound("request_not_found")
	err := fmt.Errorf("update: %w", NotFound("request_not_found"))
	if !errors.Is(err, notFound) {
		t.Fatalf("expected errors.Is to match kind and code")
	}
	if errors.Is(err, NotFound("user_not_found")) {
		t.Fatalf("different codes must not match")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindInvalidArgument: http.StatusBadRequest,
		KindUnauthenticated: http.StatusUnauthorized,
		KindForbidden:       http.StatusForbidden,
		KindConflict:        http.StatusConflict,
		KindNotFound:        http.StatusNotFound,
		KindUnavailable:     http.StatusServiceUnavailable,
		KindInternal:        http.StatusInternalServerError,
	}
	for kind, expect := range cases {
		if got := HTTPStatus(kind); got != expect {
			t.Fatalf("%s: expected %d, got %d", kind, expect, got)
		}
	}
}
