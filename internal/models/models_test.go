package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestULID(t *testing.T) {
	id := NewULID()
	assert.False(t, id.IsZero())
	assert.WithinDuration(t, time.Now(), id.Time(), 2*time.Second)

	parsed, err := ParseULID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseULID("not-a-ulid")
	assert.Error(t, err)
}

func TestULID_Scan(t *testing.T) {
	id := NewULID()

	var fromString ULID
	require.NoError(t, fromString.Scan(id.String()))
	assert.Equal(t, id, fromString)

	var fromBytes ULID
	require.NoError(t, fromBytes.Scan([]byte(id.String())))
	assert.Equal(t, id, fromBytes)

	var fromNil ULID
	require.NoError(t, fromNil.Scan(nil))
	assert.True(t, fromNil.IsZero())

	var bad ULID
	assert.Error(t, bad.Scan(42))

	v, err := ULID{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestULID_JSON(t *testing.T) {
	run := UpdateRun{ID: NewULID(), Status: UpdateRunSucceeded}
	data, err := json.Marshal(run)
	require.NoError(t, err)

	var decoded UpdateRun
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, run.ID, decoded.ID)
	assert.Equal(t, UpdateRunSucceeded, decoded.Status)
}

func TestUpdateRun_Duration(t *testing.T) {
	start := time.Date(2024, 1, 15, 3, 0, 0, 0, time.UTC)
	run := UpdateRun{StartedAt: start, FinishedAt: start.Add(90 * time.Second)}
	assert.Equal(t, 90*time.Second, run.Duration())
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "channels", Channel{}.TableName())
	assert.Equal(t, "programs", Program{}.TableName())
	assert.Equal(t, "metadata", Metadata{}.TableName())
	assert.Equal(t, "update_runs", UpdateRun{}.TableName())
}
