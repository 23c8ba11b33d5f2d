package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingExpirer struct {
	calls atomic.Int32
	err   error
}

func (e *countingExpirer) Execute(ctx context.Context) (int64, error) {
	e.calls.Add(1)
	return 0, e.err
}

func TestExpirySweeperRunsUntilCancelled(t *testing.T) {
	for _, expErr := range []error{nil, errors.New("db down")} {
		exp := &countingExpirer{err: expErr}
		s, err := NewExpirySweeper(exp, 10*time.Millisecond, testLogger())
		if err != nil {
			t.Fatalf("NewExpirySweeper: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- s.Run(ctx) }()

		deadline := time.After(2 * time.Second)
		for exp.calls.Load() < 2 {
			select {
			case <-deadline:
				t.Fatalf("sweeps = %d, want at least 2", exp.calls.Load())
			case <-time.After(5 * time.Millisecond):
			}
		}

		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
	}
}
