package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResync struct {
	n   int64
	err error
	dl  bool
}

func (f *fakeResync) ResyncAllHours(ctx context.Context) (int64, error) {
	_, f.dl = ctx.Deadline()
	return f.n, f.err
}

func TestRunOnceCountsErrorsAndPanics(t *testing.T) {
	r := New(context.Background(), nil)
	before := testutil.ToFloat64(jobErrors.WithLabelValues("t-fail"))

	err := r.RunOnce("t-fail", func(context.Context) error { return errors.New("boom") })
	assert.EqualError(t, err, "boom")

	err = r.RunOnce("t-fail", func(context.Context) error { panic("oops") })
	assert.ErrorContains(t, err, "panicked")

	assert.Equal(t, before+2, testutil.ToFloat64(jobErrors.WithLabelValues("t-fail")))
}

func TestEveryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := New(ctx, nil)
	var calls atomic.Int32
	r.Every(5*time.Millisecond, "t-tick", func(context.Context) error {
		calls.Add(1)
		return nil
	})

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	r.Wait()
	n := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, calls.Load())
}

func TestEveryDisabled(t *testing.T) {
	r := New(context.Background(), nil)
	r.Every(0, "t-off", func(context.Context) error { return nil })
	r.Wait()
}

func TestHoursResync(t *testing.T) {
	svc := &fakeResync{n: 3}
	require.NoError(t, HoursResync(svc, nil)(context.Background()))
	assert.True(t, svc.dl)

	svc.err = errors.New("db down")
	assert.ErrorContains(t, HoursResync(svc, nil)(context.Background()), "resync hours")
}
