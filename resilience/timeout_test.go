package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewTimeout_Default(t *testing.T) {
	if got := NewTimeout(0).Duration(); got != DefaultFetchTimeout {
		t.Errorf("Duration() = %v, want %v", got, DefaultFetchTimeout)
	}
	if got := NewTimeout(time.Second).Duration(); got != time.Second {
		t.Errorf("Duration() = %v, want 1s", got)
	}
}

func TestTimeout_Execute(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name    string
		op      func(context.Context) error
		wantErr error
	}{
		{
			name: "completes",
			op:   func(context.Context) error { return nil },
		},
		{
			name:    "returns op error",
			op:      func(context.Context) error { return errBoom },
			wantErr: errBoom,
		},
		{
			name: "honours context",
			op: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
			wantErr: ErrTimeout,
		},
		{
			name: "ignores context",
			op: func(context.Context) error {
				time.Sleep(200 * time.Millisecond)
				return nil
			},
			wantErr: ErrTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewTimeout(20*time.Millisecond).Execute(context.Background(), tt.op)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Execute() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTimeout_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewTimeout(time.Second).Execute(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
}
