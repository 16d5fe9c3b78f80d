package store

import (
	"context"
	"testing"
	"time"

	"github.com/jmylchreest/epgnow/internal/ingestor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMirror() *MirrorStore {
	m := NewMirrorStore()
	m.SetChannel("rai1.it", "Rai 1", "http://logo/rai1.png")
	m.SetChannel("noicon.tv", "No Icon", "")
	m.Append([]ingestor.Entry{
		entry("rai1.it", "Film", 2*time.Hour, 4*time.Hour),
		entry("RAI1.it", "News", time.Hour, 2*time.Hour),
		entry("rai1.it", "Morning Show", 0, time.Hour),
	})
	m.Sort()
	return m
}

func TestMirrorStore_CurrentProgram(t *testing.T) {
	m := newTestMirror()
	ctx := context.Background()

	p, err := m.CurrentProgram(ctx, "Rai1.IT", base.Add(30*time.Minute))
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Morning Show", p.Title)
	assert.Equal(t, "Rai 1", p.ChannelName)
	assert.Equal(t, "http://logo/rai1.png", p.ChannelIcon)

	p, err = m.CurrentProgram(ctx, "rai1.it", base.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Morning Show", p.Title)

	p, err = m.CurrentProgram(ctx, "rai1.it", base.Add(-time.Minute))
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = m.CurrentProgram(ctx, "nobody", base)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestMirrorStore_UpcomingPrograms(t *testing.T) {
	m := newTestMirror()
	ctx := context.Background()

	programs, err := m.UpcomingPrograms(ctx, "rai1.it", base.Add(time.Minute), 5)
	require.NoError(t, err)
	require.Len(t, programs, 2)
	assert.Equal(t, "News", programs[0].Title)
	assert.Equal(t, "Film", programs[1].Title)

	programs, err = m.UpcomingPrograms(ctx, "rai1.it", base, 0)
	require.NoError(t, err)
	require.Len(t, programs, DefaultUpcomingLimit)
	assert.Equal(t, "Morning Show", programs[0].Title)
	for i := 1; i < len(programs); i++ {
		assert.False(t, programs[i].Start.Before(programs[i-1].Start))
	}
}

func TestMirrorStore_ChannelIcon(t *testing.T) {
	m := newTestMirror()
	ctx := context.Background()

	icon, err := m.ChannelIcon(ctx, "RAI1.it")
	require.NoError(t, err)
	assert.Equal(t, "http://logo/rai1.png", icon)

	_, err = m.ChannelIcon(ctx, "noicon.tv")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMirrorStore_CountsAndReset(t *testing.T) {
	m := newTestMirror()

	assert.Equal(t, 1, m.ChannelCount())
	assert.Equal(t, 1, m.IconCount())
	assert.Equal(t, 3, m.ProgramCount())
	assert.True(t, m.HasChannel("Rai1.it"))
	assert.Equal(t, []string{"rai1.it"}, m.ChannelIDs())

	m.Reset()
	assert.Zero(t, m.ChannelCount())
	assert.Zero(t, m.IconCount())
	assert.Zero(t, m.ProgramCount())
	assert.False(t, m.HasChannel("rai1.it"))
}
