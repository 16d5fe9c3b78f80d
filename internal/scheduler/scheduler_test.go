package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_ValidateCron(t *testing.T) {
	s := NewScheduler()

	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"0 3 * * *", false},
		{"*/15 * * * *", false},
		{"@daily", false},
		{"@every 1h", false},
		{"0 0 3 * * *", true},
		{"not a cron", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			err := s.ValidateCron(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestScheduler_ParseCron(t *testing.T) {
	s := NewScheduler()
	from := time.Date(2024, 6, 10, 8, 0, 0, 0, time.Local)

	next, err := s.ParseCron("0 3 * * *", from)
	require.NoError(t, err)
	assert.Equal(t, 3, next.Hour())
	assert.Equal(t, 11, next.Day())

	_, err = s.ParseCron("bogus", from)
	assert.Error(t, err)
}

func TestScheduler_ParseCronInLocation(t *testing.T) {
	tokyo := time.FixedZone("UTC+9", 9*60*60)
	s := NewScheduler().WithLocation(tokyo)

	// 20:00 UTC is 05:00 the next day in UTC+9, so 03:00 local has passed.
	from := time.Date(2024, 6, 10, 20, 0, 0, 0, time.UTC)
	next, err := s.ParseCron("0 3 * * *", from)
	require.NoError(t, err)
	assert.Equal(t, tokyo, next.Location())
	assert.Equal(t, 3, next.Hour())
	assert.Equal(t, 12, next.Day())
}

func TestScheduler_AddRejectsInvalid(t *testing.T) {
	s := NewScheduler()
	err := s.Add("epg", "every day", func(context.Context) {})
	assert.Error(t, err)
	assert.Empty(t, s.Jobs())
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := NewScheduler()
	var runs atomic.Int32
	require.NoError(t, s.Add("tick", "@every 1s", func(ctx context.Context) {
		assert.NoError(t, ctx.Err())
		runs.Add(1)
	}))

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	next, ok := s.NextRun("tick")
	assert.True(t, ok)
	assert.False(t, next.IsZero())

	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestScheduler_RecoversPanics(t *testing.T) {
	s := NewScheduler()
	var runs atomic.Int32
	require.NoError(t, s.Add("panics", "@every 1s", func(context.Context) {
		runs.Add(1)
		panic("boom")
	}))

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 4*time.Second, 50*time.Millisecond)
}

func TestScheduler_RunsAgainAfterPanic(t *testing.T) {
	s := NewScheduler()
	var runs atomic.Int32
	require.NoError(t, s.Add("flaky", "@every 1s", func(context.Context) {
		if runs.Add(1) == 1 {
			panic("first run fails")
		}
	}))

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, 5*time.Second, 50*time.Millisecond)
}

func TestScheduler_AddAfterStartAndReplace(t *testing.T) {
	s := NewScheduler()
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.NoError(t, s.Add("epg", "0 3 * * *", func(context.Context) {}))
	require.NoError(t, s.Add("epg", "0 4 * * *", func(context.Context) {}))
	assert.Equal(t, []string{"epg"}, s.Jobs())

	next, ok := s.NextRun("epg")
	require.True(t, ok)
	assert.Equal(t, 4, next.Hour())

	s.Remove("epg")
	assert.Empty(t, s.Jobs())
	_, ok = s.NextRun("epg")
	assert.False(t, ok)
}

func TestScheduler_StartTwice(t *testing.T) {
	s := NewScheduler()
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	assert.Error(t, s.Start(context.Background()))
}

func TestScheduler_StopCancelsJobContext(t *testing.T) {
	s := NewScheduler()
	started := make(chan struct{})
	done := make(chan struct{})
	require.NoError(t, s.Add("long", "@every 1s", func(ctx context.Context) {
		select {
		case started <- struct{}{}:
		default:
			return
		}
		<-ctx.Done()
		close(done)
	}))
	require.NoError(t, s.Start(context.Background()))

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not start")
	}

	s.Stop()
	select {
	case <-done:
	default:
		t.Fatal("Stop returned before the running job finished")
	}

	// Stopping again is a no-op.
	s.Stop()
}
