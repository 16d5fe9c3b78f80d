// Package ingestor turns EPG source locations into normalized programme
// entries: source resolution, download, decompression, XMLTV decoding and
// parallel chunk normalisation.
package ingestor

import (
	"context"
	"io"
	"time"
)

// Fetcher defines how to retrieve source content.
type Fetcher interface {
	// Fetch retrieves content from a location and returns a reader.
	// The caller is responsible for closing the reader.
	Fetch(ctx context.Context, location string) (io.ReadCloser, error)
}

// Entry is a normalized programme ready for storage.
// ChannelRef is the channel reference exactly as it appeared in the source;
// canonicalisation happens when the entry is stored.
type Entry struct {
	ChannelRef  string
	Start       time.Time
	Stop        time.Time
	Title       string
	Description string
	Category    string
}

// IngestStats contains statistics from ingesting one document.
type IngestStats struct {
	// Channels is the number of channel definitions seen.
	Channels int

	// Programmes is the number of raw programme records seen.
	Programmes int

	// Stored is the number of entries written.
	Stored int

	// Dropped is the number of records skipped for unparsable timestamps.
	Dropped int

	// FailedChunks is the number of worker chunks whose output was discarded.
	FailedChunks int
}
