package testutil

import (
	"bytes"
	"testing"
	"time"

	"github.com/jmylchreest/epgnow/pkg/xmltv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuideGenerator_Document(t *testing.T) {
	opts := GuideOptions{
		Channels:           3,
		ProgramsPerChannel: 4,
		Start:              time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Slot:               time.Hour,
		IconEvery:          2,
		BadEvery:           5,
	}
	doc := NewGuideGenerator().Document(opts)

	require.Len(t, doc.Channels, 3)
	require.Len(t, doc.Programmes, 12)
	assert.NotEmpty(t, doc.Channels[0].Icon)
	assert.Empty(t, doc.Channels[1].Icon)
	assert.Equal(t, "20240310010000 +0000", doc.Programmes[1].Start)
	assert.Equal(t, "not a time", doc.Programmes[4].Start)
	assert.Equal(t, ChannelID(2), doc.Programmes[11].Channel)
}

func TestGuideGenerator_Deterministic(t *testing.T) {
	opts := DefaultGuideOptions()
	a := NewGuideGeneratorWithSeed(7).Document(opts)
	b := NewGuideGeneratorWithSeed(7).Document(opts)
	assert.Equal(t, a, b)
}

func TestEncode_RoundTrips(t *testing.T) {
	doc := NewGuideGenerator().Document(DefaultGuideOptions())
	data, err := Encode(doc)
	require.NoError(t, err)

	decoded, err := xmltv.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Len(t, decoded.Channels, len(doc.Channels))
	assert.Len(t, decoded.Programmes, len(doc.Programmes))
	assert.Equal(t, doc.Programmes[0].Titles[0].Value, decoded.Programmes[0].Titles[0].Value)
}
