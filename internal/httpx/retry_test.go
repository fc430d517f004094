package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

type statusErr int

func (s statusErr) Error() string       { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) HTTPStatusCode() int { return int(s) }

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), true},
		{statusErr(429), true},
		{statusErr(503), true},
		{statusErr(400), false},
		{statusErr(401), false},
		{errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := IsRetryableError(tc.err); got != tc.want {
			t.Fatalf("IsRetryableError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestRetryAfterDuration(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	if d := RetryAfterDuration(resp, time.Second, 10*time.Second); d != time.Second {
		t.Fatalf("expected fallback, got %v", d)
	}
	resp.Header.Set("Retry-After", "3")
	if d := RetryAfterDuration(resp, time.Second, 10*time.Second); d != 3*time.Second {
		t.Fatalf("expected 3s, got %v", d)
	}
	resp.Header.Set("Retry-After", "120")
	if d := RetryAfterDuration(resp, time.Second, 10*time.Second); d != 10*time.Second {
		t.Fatalf("expected cap at 10s, got %v", d)
	}
	if d := RetryAfterDuration(nil, 2*time.Second, 0); d != 2*time.Second {
		t.Fatalf("expected fallback for nil response, got %v", d)
	}
}

func TestJitterSleepBounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := JitterSleep(time.Second)
		if d < 800*time.Millisecond || d > 1200*time.Millisecond {
			t.Fatalf("jitter out of bounds: %v", d)
		}
	}
	if JitterSleep(0) != 0 {
		t.Fatalf("zero base must not sleep")
	}
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
