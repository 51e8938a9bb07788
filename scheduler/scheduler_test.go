package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func immediate(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func TestValidateExpr(t *testing.T) {
	assert.NoError(t, ValidateExpr("*/5 * * * *"))
	assert.NoError(t, ValidateExpr("@hourly"))
	assert.Error(t, ValidateExpr(""))
	assert.Error(t, ValidateExpr("every minute"))
}

func TestNew_Invalid(t *testing.T) {
	_, err := New("nope", func(context.Context) error { return nil })
	assert.Error(t, err)

	_, err = New("* * * * *", nil)
	assert.Error(t, err)
}

func TestNext(t *testing.T) {
	s, err := New("0 9 * * *", func(context.Context) error { return nil })
	require.NoError(t, err)

	ref := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	next, err := s.Next(ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC), next.UTC())
}

func TestStart_RunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	job := func(context.Context) error {
		if runs.Add(1) == 3 {
			cancel()
		}
		return errors.New("failures are logged, not fatal")
	}

	s, err := New("* * * * *", job, func(o *Options) {
		o.RunOnStart = true
		o.after = immediate
	})
	require.NoError(t, err)

	err = s.Start(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(3), runs.Load())
}

func TestStart_WaitsOnInjectedClock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := time.Date(2024, 5, 1, 10, 0, 30, 0, time.UTC)

	var waits []time.Duration
	after := func(d time.Duration) <-chan time.Time {
		waits = append(waits, d)
		if len(waits) == 2 {
			cancel()
		}
		clock = clock.Add(d)
		return immediate(d)
	}

	s, err := New("* * * * *", func(context.Context) error { return nil }, func(o *Options) {
		o.after = after
		o.now = func() time.Time { return clock }
	})
	require.NoError(t, err)

	err = s.Start(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []time.Duration{30 * time.Second, time.Minute}, waits)
}
