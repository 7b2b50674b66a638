package httpclient

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"syscall"
	"testing"
	"time"
)

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	boom := errors.New("bad status")
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("expected one call and the original error, got %d calls, %v", calls, err)
	}
}

func TestRetryRetriesNetworkErrors(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return &net.OpError{Op: "dial", Err: errors.New("connection refused")}
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("expected success on third attempt, got %d calls, %v", calls, err)
	}
}

func TestRetryHonoursAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 2, time.Millisecond, func() error {
		calls++
		return &url.Error{Op: "Post", URL: "http://llm/chat/completions", Err: io.EOF}
	})
	if err == nil || calls != 2 {
		t.Fatalf("expected two attempts and an error, got %d calls, %v", calls, err)
	}
}

func TestRetryRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Retry(ctx, 5, time.Millisecond, func() error {
		calls++
		return nil
	})
	if err == nil || calls != 0 {
		t.Fatalf("expected no attempt on a cancelled context, got %d calls, %v", calls, err)
	}
}

func TestIsRetriable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"dial", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"transport eof", &url.Error{Op: "Post", URL: "http://x", Err: io.EOF}, true},
		{"reset", syscall.ECONNRESET, true},
		{"truncated body", io.ErrUnexpectedEOF, false},
		{"bare eof", io.EOF, false},
		{"cancelled", &url.Error{Op: "Post", URL: "http://x", Err: context.Canceled}, false},
		{"other", errors.New("bad status"), false},
	}
	for _, tc := range cases {
		if got := IsRetriable(tc.err); got != tc.want {
			t.Errorf("%s: IsRetriable = %v, want %v", tc.name, got, tc.want)
		}
	}
}
