package llm

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_Do(t *testing.T) {
	ctx := context.Background()

	t.Run("passes successful calls through", func(t *testing.T) {
		guard := NewGuard(GuardConfig{MaxInFlight: 1})
		called := false
		err := guard.Do(ctx, func(ctx context.Context) error {
			called = true
			return nil
		})
		require.NoError(t, err)
		assert.True(t, called)
		assert.Equal(t, "closed", guard.State())
	})

	t.Run("propagates call errors", func(t *testing.T) {
		guard := NewGuard(GuardConfig{MaxInFlight: 1})
		wantErr := errors.New("model overloaded")
		err := guard.Do(ctx, func(ctx context.Context) error { return wantErr })
		assert.ErrorIs(t, err, wantErr)
	})

	t.Run("enforces the per-call timeout", func(t *testing.T) {
		guard := NewGuard(GuardConfig{MaxInFlight: 1, Timeout: 20 * time.Millisecond})
		err := guard.Do(ctx, func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("caps in-flight calls", func(t *testing.T) {
		guard := NewGuard(GuardConfig{MaxInFlight: 2})

		var inFlight, peak atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = guard.Do(ctx, func(ctx context.Context) error {
					n := inFlight.Add(1)
					for {
						p := peak.Load()
						if n <= p || peak.CompareAndSwap(p, n) {
							break
						}
					}
					time.Sleep(10 * time.Millisecond)
					inFlight.Add(-1)
					return nil
				})
			}()
		}
		wg.Wait()
		assert.LessOrEqual(t, peak.Load(), int32(2))
	})

	t.Run("trips the breaker after consecutive failures", func(t *testing.T) {
		guard := NewGuard(GuardConfig{MaxInFlight: 1, MaxFailures: 3, CooldownPeriod: time.Minute})
		wantErr := errors.New("model down")

		for i := 0; i < 3; i++ {
			err := guard.Do(ctx, func(ctx context.Context) error { return wantErr })
			assert.ErrorIs(t, err, wantErr)
		}
		assert.Equal(t, "open", guard.State())

		calls := 0
		err := guard.Do(ctx, func(ctx context.Context) error {
			calls++
			return nil
		})
		assert.ErrorIs(t, err, ErrCircuitOpen)
		assert.Equal(t, 0, calls)
	})

	t.Run("success resets the failure streak", func(t *testing.T) {
		guard := NewGuard(GuardConfig{MaxInFlight: 1, MaxFailures: 3})
		wantErr := errors.New("flaky")

		for i := 0; i < 2; i++ {
			_ = guard.Do(ctx, func(ctx context.Context) error { return wantErr })
		}
		require.NoError(t, guard.Do(ctx, func(ctx context.Context) error { return nil }))
		for i := 0; i < 2; i++ {
			_ = guard.Do(ctx, func(ctx context.Context) error { return wantErr })
		}
		assert.Equal(t, "closed", guard.State())
	})

	t.Run("cancelled context is returned before the call runs", func(t *testing.T) {
		guard := NewGuard(GuardConfig{MaxInFlight: 1})
		release := make(chan struct{})
		go func() {
			_ = guard.Do(ctx, func(ctx context.Context) error {
				<-release
				return nil
			})
		}()
		time.Sleep(10 * time.Millisecond)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		err := guard.Do(cancelled, func(ctx context.Context) error {
			t.Fatal("should not run")
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		close(release)
	})
}
