package app_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cboard-org/cboard-billing/app"
)

func TestSchedulerAdd(t *testing.T) {
	t.Parallel()

	s := app.NewScheduler(nil)
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.Add("refresh", "0 */6 * * *", noop))
	require.NoError(t, s.Add("disabled", "", noop))
	assert.Equal(t, 1, s.Len())

	err := s.Add("broken", "not a cron spec", noop)
	require.Error(t, err)
	assert.ErrorIs(t, err, app.ErrInvalidSpec)
	assert.Equal(t, 1, s.Len())
}

func TestSchedulerStopCancelsJobs(t *testing.T) {
	t.Parallel()

	s := app.NewScheduler(nil)
	started := make(chan struct{})
	stopped := make(chan error, 1)
	require.NoError(t, s.Add("blocking", "@every 1s", func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		stopped <- ctx.Err()
		return ctx.Err()
	}))

	s.Start()
	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(ctx)

	select {
	case err := <-stopped:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("job context was not cancelled")
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
