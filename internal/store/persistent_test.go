package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmylchreest/epgnow/internal/config"
	"github.com/jmylchreest/epgnow/internal/database"
	"github.com/jmylchreest/epgnow/internal/ingestor"
	"github.com/jmylchreest/epgnow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *PersistentStore {
	t.Helper()
	db, err := database.New(config.DatabaseConfig{
		Driver:   database.DriverSQLite,
		DSN:      filepath.Join(t.TempDir(), "epg.db"),
		LogLevel: "silent",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := NewPersistentStore(db.DB).WithBatchSize(2)
	require.NoError(t, s.Initialize(context.Background()))
	return s
}

func entry(channel, title string, start, stop time.Duration) ingestor.Entry {
	return ingestor.Entry{
		ChannelRef: channel,
		Title:      title,
		Start:      base.Add(start),
		Stop:       base.Add(stop),
	}
}

func seed(t *testing.T, s *PersistentStore) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.UpsertChannel(ctx, "rai1.it", "Rai 1", "http://logo/rai1.png"))
	require.NoError(t, s.UpsertChannel(ctx, "bare.tv", "Bare", ""))
	n, err := s.BulkInsertPrograms(ctx, []ingestor.Entry{
		entry("RAI1.it", "Morning Show", 0, time.Hour),
		entry("rai1.it", "News", time.Hour, 2*time.Hour),
		entry("rai1.it", "Film", 2*time.Hour, 4*time.Hour),
		entry("ghost.tv", "Orphan", 0, time.Hour),
	})
	require.NoError(t, err)
	require.Equal(t, 4, n)
}

func TestPersistentStore_NotInitialized(t *testing.T) {
	s := NewPersistentStore(nil)
	ctx := context.Background()

	_, err := s.CurrentProgram(ctx, "x", base)
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = s.UpcomingPrograms(ctx, "x", base, 2)
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = s.ChannelIcon(ctx, "x")
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, s.Clear(ctx), ErrNotInitialized)
	assert.False(t, s.Initialized())
}

func TestPersistentStore_CurrentProgram(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	t.Run("mixed case id", func(t *testing.T) {
		p, err := s.CurrentProgram(ctx, "RAI1.it", base.Add(30*time.Minute))
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "Morning Show", p.Title)
		assert.Equal(t, "Rai 1", p.ChannelName)
		assert.Equal(t, "http://logo/rai1.png", p.ChannelIcon)
		assert.True(t, p.Start.Equal(base))
	})

	t.Run("boundary prefers earliest start", func(t *testing.T) {
		p, err := s.CurrentProgram(ctx, "rai1.it", base.Add(time.Hour))
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "Morning Show", p.Title)
	})

	t.Run("gap returns nil", func(t *testing.T) {
		p, err := s.CurrentProgram(ctx, "rai1.it", base.Add(5*time.Hour))
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("unknown channel returns nil", func(t *testing.T) {
		p, err := s.CurrentProgram(ctx, "nobody", base)
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("undeclared channel still queryable", func(t *testing.T) {
		p, err := s.CurrentProgram(ctx, "ghost.tv", base.Add(time.Minute))
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "Orphan", p.Title)
		assert.Empty(t, p.ChannelName)
	})
}

func TestPersistentStore_UpcomingPrograms(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	programs, err := s.UpcomingPrograms(ctx, "rai1.it", base.Add(30*time.Minute), 2)
	require.NoError(t, err)
	require.Len(t, programs, 2)
	assert.Equal(t, "News", programs[0].Title)
	assert.Equal(t, "Film", programs[1].Title)

	programs, err = s.UpcomingPrograms(ctx, "rai1.it", base, 1)
	require.NoError(t, err)
	require.Len(t, programs, 1)
	assert.Equal(t, "Morning Show", programs[0].Title, "start equal to now counts as upcoming")

	programs, err = s.UpcomingPrograms(ctx, "rai1.it", base, 0)
	require.NoError(t, err)
	assert.Len(t, programs, DefaultUpcomingLimit)

	programs, err = s.UpcomingPrograms(ctx, "nobody", base, 2)
	require.NoError(t, err)
	assert.Empty(t, programs)
}

func TestPersistentStore_ChannelIcon(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	icon, err := s.ChannelIcon(ctx, "Rai1.IT")
	require.NoError(t, err)
	assert.Equal(t, "http://logo/rai1.png", icon)

	_, err = s.ChannelIcon(ctx, "bare.tv")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.ChannelIcon(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPersistentStore_UpsertReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertChannel(ctx, "a.tv", "Old", "http://old"))
	require.NoError(t, s.UpsertChannel(ctx, "A.tv", "New", "http://new"))

	icon, err := s.ChannelIcon(ctx, "a.tv")
	require.NoError(t, err)
	assert.Equal(t, "http://new", icon)

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Channels)
}

func TestPersistentStore_Clear(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Channels: 2, Icons: 1, Programs: 4}, counts)

	require.NoError(t, s.Clear(ctx))

	counts, err = s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{}, counts)
}

func TestPersistentStore_Metadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.LastUpdate(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	stamp := base.Add(90 * time.Minute)
	require.NoError(t, s.SetLastUpdate(ctx, stamp))
	require.NoError(t, s.SetLastUpdate(ctx, stamp.Add(time.Minute)))

	got, ok, err := s.LastUpdate(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, got.Equal(stamp.Add(time.Minute)))

	_, err = s.GetMetadata(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPersistentStore_Runs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &models.UpdateRun{StartedAt: base, FinishedAt: base.Add(time.Second), Status: models.UpdateRunSucceeded}
	second := &models.UpdateRun{StartedAt: base.Add(time.Hour), FinishedAt: base.Add(time.Hour), Status: models.UpdateRunDegraded}
	require.NoError(t, s.RecordRun(ctx, first))
	require.NoError(t, s.RecordRun(ctx, second))
	assert.False(t, first.ID.IsZero())

	runs, err := s.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, models.UpdateRunSucceeded, runs[1].Status)
}

func TestPersistentStore_ChannelIDs(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	ids, err := s.ChannelIDs(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"rai1.it", "bare.tv"}, ids)
}

func TestPersistentStore_BulkInsertLargeBatch(t *testing.T) {
	s := newTestStore(t).WithBatchSize(10000)
	ctx := context.Background()

	entries := make([]ingestor.Entry, 12000)
	for i := range entries {
		offset := time.Duration(i) * time.Minute
		entries[i] = entry("rai1.it", "Slot", offset, offset+time.Minute)
	}

	n, err := s.BulkInsertPrograms(ctx, entries)
	require.NoError(t, err)
	assert.Equal(t, len(entries), n)

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, len(entries), counts.Programs)
}
