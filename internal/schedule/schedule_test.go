package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartRunsJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs int32
	fired := make(chan struct{}, 8)
	s, err := Start(ctx, "tick", "@every 1s", time.UTC, func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		fired <- struct{}{}
		return errors.New("failures are logged, not fatal")
	})
	require.NoError(t, err)
	defer s.Stop()

	for i := 0; i < 2; i++ {
		select {
		case <-fired:
		case <-time.After(5 * time.Second):
			t.Fatalf("job did not run %d times", i+1)
		}
	}
	assert.GreaterOrEqual(t, atomic.LoadInt32(&runs), int32(2))
}

func TestStartRejectsBadSpec(t *testing.T) {
	_, err := Start(context.Background(), "bad", "every day", nil, func(context.Context) error { return nil })
	assert.Error(t, err)
}

func TestNextFollowsLocation(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := Start(ctx, "daily", "1 0 * * *", loc, func(context.Context) error { return nil })
	require.NoError(t, err)
	defer s.Stop()

	next := s.Next().In(loc)
	assert.Equal(t, 0, next.Hour())
	assert.Equal(t, 1, next.Minute())
	assert.True(t, next.After(time.Now()))
}

func TestStopOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var runs int32
	_, err := Start(ctx, "tick", "@every 1s", nil, func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})
	require.NoError(t, err)
	cancel()

	time.Sleep(1500 * time.Millisecond)
	assert.Zero(t, atomic.LoadInt32(&runs))
}
