package ingestor

import (
	"context"

	"github.com/jmylchreest/epgnow/internal/normalize"
	"github.com/jmylchreest/epgnow/pkg/xmltv"
)

// DefaultTitle is stored for programmes without any usable title.
const DefaultTitle = "No Title"

// ctxCheckInterval is how many records are processed between cancellation checks.
const ctxCheckInterval = 4096

// ProcessChunk normalizes a contiguous run of raw programme records.
// Records with an unparsable start or stop are dropped; the order of the
// remaining records is preserved.
func ProcessChunk(ctx context.Context, records []xmltv.Programme) ([]Entry, error) {
	entries := make([]Entry, 0, len(records))
	for i := range records {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if entry, ok := ConvertProgramme(&records[i]); ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// ConvertProgramme converts one raw record, reporting false if either
// timestamp fails to parse.
func ConvertProgramme(p *xmltv.Programme) (Entry, bool) {
	start, ok := normalize.ParseTimestamp(p.Start)
	if !ok {
		return Entry{}, false
	}
	stop, ok := normalize.ParseTimestamp(p.Stop)
	if !ok {
		return Entry{}, false
	}

	return Entry{
		ChannelRef:  p.Channel,
		Start:       start,
		Stop:        stop,
		Title:       extractText(p.Titles, DefaultTitle),
		Description: extractText(p.Descriptions, ""),
		Category:    extractText(p.Categories, ""),
	}, true
}

// extractText resolves a field from its candidate locations in document
// order: each element's body, then its text attribute.
func extractText(texts []xmltv.Text, fallback string) string {
	candidates := make([]string, 0, 2*len(texts))
	for _, t := range texts {
		candidates = append(candidates, t.Value, t.Attr)
	}
	return normalize.FirstNonEmpty(fallback, candidates...)
}
