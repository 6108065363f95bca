package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUntil_DoneOnFirstAttempt(t *testing.T) {
	calls := 0
	p := Poller{Interval: time.Millisecond, MaxAttempts: 5}

	err := p.Until(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		return true, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestUntil_RetriesUntilDone(t *testing.T) {
	calls := 0
	p := Poller{Interval: time.Millisecond, MaxAttempts: 10}

	err := p.Until(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestUntil_ExhaustsAttempts(t *testing.T) {
	calls := 0
	p := Poller{Interval: time.Millisecond, MaxAttempts: 4}

	err := p.Until(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		return false, nil
	})

	assert.ErrorIs(t, err, ErrAttemptsExhausted)
	assert.Equal(t, 4, calls)
}

func TestUntil_StopsOnCheckError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	p := Poller{Interval: time.Millisecond, MaxAttempts: 5}

	err := p.Until(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		return false, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestUntil_HonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Poller{Interval: time.Hour, MaxAttempts: 5}

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := p.Until(ctx, func(ctx context.Context) (bool, error) {
		return false, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestUntil_ZeroValuesGetDefaults(t *testing.T) {
	calls := 0
	p := Poller{}

	err := p.Until(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		return false, nil
	})

	assert.ErrorIs(t, err, ErrAttemptsExhausted)
	assert.Equal(t, 1, calls)
}
