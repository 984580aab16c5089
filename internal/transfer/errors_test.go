package transfer

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMatchesSentinelByKind(t *testing.T) {
	cause := errors.New("550 no such file")
	err := fmt.Errorf("wrapped: %w", &Error{Kind: KindRetrieval, Entity: "order", Path: "/userfile/order/order-1.csv", Err: cause})

	if !errors.Is(err, ErrRetrieval) {
		t.Fatalf("expected errors.Is to match ErrRetrieval")
	}
	if errors.Is(err, ErrPublish) {
		t.Fatalf("did not expect a retrieval error to match ErrPublish")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected the cause to stay reachable")
	}

	var transferErr *Error
	if !errors.As(err, &transferErr) {
		t.Fatalf("expected errors.As to find *Error")
	}
	if transferErr.Path != "/userfile/order/order-1.csv" {
		t.Fatalf("unexpected path %q", transferErr.Path)
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "path preferred over entity",
			err:  &Error{Kind: KindPublish, Entity: "order", Path: "/tmp/order-cleaned.csv", Err: errors.New("403")},
			want: "publish failed for /tmp/order-cleaned.csv: 403",
		},
		{
			name: "entity only",
			err:  &Error{Kind: KindDiscovery, Entity: "order", Err: errors.New("timeout")},
			want: "discovery failed for order: timeout",
		},
		{
			name: "sentinel",
			err:  ErrAudit,
			want: "audit error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestErrorFatal(t *testing.T) {
	for _, kind := range []Kind{KindDiscovery, KindRetrieval, KindMalformedInput, KindPublish} {
		if !(&Error{Kind: kind}).Fatal() {
			t.Fatalf("expected %s to be fatal", kind)
		}
	}
	if (&Error{Kind: KindSourceDelete}).Fatal() {
		t.Fatalf("source delete failures must not be fatal")
	}
	auditErr := NewAuditError("order-1.csv", errors.New("offline"))
	if auditErr.Fatal() || !errors.Is(auditErr, ErrAudit) {
		t.Fatalf("unexpected audit error classification: %v", auditErr)
	}
}
