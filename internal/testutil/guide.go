// Package testutil generates synthetic XMLTV guides for tests.
package testutil

import (
	"bytes"
	"fmt"
	"math/rand"
	"time"

	"github.com/jmylchreest/epgnow/pkg/xmltv"
)

// Fictional broadcasters and programmes. Never use real brand names.
var (
	Broadcasters = []string{
		"StreamCast",
		"ViewMedia",
		"AeroVision",
		"GlobalStream",
		"NationalNet",
		"NewsFirst",
		"PrimeTV",
	}

	ProgramTemplates = []ProgramTemplate{
		{Title: "Morning Report", Description: "Start your day with news and weather.", Category: "News"},
		{Title: "Midday Bulletin", Description: "The latest headlines.", Category: "News"},
		{Title: "Talk of the Town", Description: "Interviews and entertainment news.", Category: "Entertainment"},
		{Title: "Quiz Masters", Description: "Test your knowledge.", Category: "Entertainment"},
		{Title: "Match Day", Description: "Live coverage and analysis.", Category: "Sports"},
		{Title: "Nature Frontiers", Description: "Wildlife from around the world.", Category: "Documentary"},
		{Title: "Cartoon Corner", Description: "", Category: "Kids"},
	}
)

// ProgramTemplate is a fictional programme.
type ProgramTemplate struct {
	Title       string
	Description string
	Category    string
}

// GuideOptions controls guide generation.
type GuideOptions struct {
	Channels           int
	ProgramsPerChannel int
	// Start is the start of each channel's first programme.
	Start time.Time
	// Slot is the length of every programme.
	Slot time.Duration
	// IconEvery gives every nth channel an icon. Zero gives none.
	IconEvery int
	// BadEvery gives every nth programme an unparsable start. Zero gives none.
	BadEvery int
}

// DefaultGuideOptions returns ten channels of 24 half hour programmes from
// midnight UTC today.
func DefaultGuideOptions() GuideOptions {
	return GuideOptions{
		Channels:           10,
		ProgramsPerChannel: 24,
		Start:              time.Now().UTC().Truncate(24 * time.Hour),
		Slot:               30 * time.Minute,
		IconEvery:          2,
	}
}

// GuideGenerator builds deterministic guides for a seed.
type GuideGenerator struct {
	rng *rand.Rand
}

// NewGuideGenerator creates a generator with a fixed seed.
func NewGuideGenerator() *GuideGenerator {
	return NewGuideGeneratorWithSeed(42)
}

// NewGuideGeneratorWithSeed creates a generator with seed.
func NewGuideGeneratorWithSeed(seed int64) *GuideGenerator {
	return &GuideGenerator{rng: rand.New(rand.NewSource(seed))} //nolint:gosec // test data
}

// ChannelID returns the id of the ith generated channel.
func ChannelID(i int) string {
	return fmt.Sprintf("ch%03d.test", i)
}

// Document generates a guide. Channel ids are ChannelID(0..Channels-1) and
// each channel's programmes are back to back from opts.Start.
func (g *GuideGenerator) Document(opts GuideOptions) *xmltv.Document {
	doc := &xmltv.Document{Generator: "epgnow-testutil"}
	n := 0
	for c := 0; c < opts.Channels; c++ {
		ch := xmltv.Channel{
			ID:           ChannelID(c),
			DisplayNames: []string{fmt.Sprintf("%s %d", Broadcasters[c%len(Broadcasters)], c)},
		}
		if opts.IconEvery > 0 && c%opts.IconEvery == 0 {
			ch.Icon = fmt.Sprintf("http://img.test/%s.png", ch.ID)
		}
		doc.Channels = append(doc.Channels, ch)

		for p := 0; p < opts.ProgramsPerChannel; p++ {
			tpl := ProgramTemplates[g.rng.Intn(len(ProgramTemplates))]
			start := opts.Start.Add(time.Duration(p) * opts.Slot)
			prog := xmltv.Programme{
				Channel:    ch.ID,
				Start:      xmltv.FormatTime(start),
				Stop:       xmltv.FormatTime(start.Add(opts.Slot)),
				Titles:     []xmltv.Text{{Value: tpl.Title}},
				Categories: []xmltv.Text{{Value: tpl.Category}},
			}
			if tpl.Description != "" {
				prog.Descriptions = []xmltv.Text{{Value: tpl.Description}}
			}
			n++
			if opts.BadEvery > 0 && n%opts.BadEvery == 0 {
				prog.Start = "not a time"
			}
			doc.Programmes = append(doc.Programmes, prog)
		}
	}
	return doc
}

// Encode serializes doc as XMLTV.
func Encode(doc *xmltv.Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := xmltv.NewWriter(&buf, doc.Generator).WriteDocument(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
