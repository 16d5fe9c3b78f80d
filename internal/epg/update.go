package epg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmylchreest/epgnow/internal/ingestor"
	"github.com/jmylchreest/epgnow/internal/models"
	"github.com/jmylchreest/epgnow/internal/observability"
	"github.com/jmylchreest/epgnow/internal/urlutil"
	"github.com/jmylchreest/epgnow/pkg/xmltv"
)

// Report summarizes one rebuild.
type Report struct {
	RunID             string                 `json:"runId"`
	Status            models.UpdateRunStatus `json:"status"`
	Sources           int                    `json:"sources"`
	FailedSources     int                    `json:"failedSources"`
	DegradedDocuments int                    `json:"degradedDocuments"`
	Channels          int                    `json:"channels"`
	Programs          int                    `json:"programs"`
	Dropped           int                    `json:"dropped"`
	FailedChunks      int                    `json:"failedChunks"`
	Duration          time.Duration          `json:"duration"`
}

// rebuild carries the state of one run across documents.
type rebuild struct {
	id      models.ULID
	logger  *slog.Logger
	report  Report
	cleared bool
	errs    []error
}

// Update fully rebuilds the guide from url. It reports false, without doing
// anything, when another rebuild is already in flight. Source and document
// failures are logged and counted; they never abort the remaining sources.
func (m *Manager) Update(ctx context.Context, url string) (Report, bool) {
	if !m.isUpdating.CompareAndSwap(false, true) {
		m.logger.InfoContext(ctx, "guide update already in progress, skipping")
		return Report{}, false
	}

	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(m.ctx, cancel)
	defer func() {
		stop()
		cancel()
	}()

	started := m.now()
	runID := models.NewULID()
	rb := &rebuild{
		id:     runID,
		logger: observability.WithRunID(m.logger, runID.String()),
		report: Report{RunID: runID.String()},
	}

	defer func() {
		finished := m.now()
		rb.report.Duration = finished.Sub(started)
		m.mu.Lock()
		m.lastUpdate = finished
		m.mu.Unlock()
		m.isUpdating.Store(false)
	}()

	rb.logger.InfoContext(ctx, "starting guide update", slog.String("source", urlutil.Redact(url)))

	sources := ingestor.ResolveSources(ctx, m.fetcher, url, rb.logger)
	rb.report.Sources = len(sources)
	m.mirror.Reset()

	for _, src := range sources {
		if ctx.Err() != nil {
			rb.errs = append(rb.errs, ctx.Err())
			break
		}
		m.loadSource(ctx, rb, src)
	}

	m.mirror.Sort()
	rb.report.Channels = m.mirror.ChannelCount()
	rb.report.Programs = m.mirror.ProgramCount()
	rb.report.Status = rb.status()

	m.recordRun(ctx, rb, started)

	rb.logger.InfoContext(ctx, "guide update finished",
		slog.String("status", string(rb.report.Status)),
		slog.Int("sources", rb.report.Sources),
		slog.Int("failed_sources", rb.report.FailedSources),
		slog.Int("channels", rb.report.Channels),
		slog.Int("programs", rb.report.Programs),
		slog.Int("dropped", rb.report.Dropped),
		slog.Duration("duration", m.now().Sub(started)),
	)
	return rb.report, true
}

func (rb *rebuild) status() models.UpdateRunStatus {
	switch {
	case rb.report.Sources == 0 || rb.report.FailedSources == rb.report.Sources:
		return models.UpdateRunFailed
	case rb.report.FailedSources > 0 || rb.report.DegradedDocuments > 0 || rb.report.FailedChunks > 0:
		return models.UpdateRunDegraded
	default:
		return models.UpdateRunSucceeded
	}
}

func (m *Manager) loadSource(ctx context.Context, rb *rebuild, src ingestor.Source) {
	logger := rb.logger.With(slog.String("source", urlutil.Redact(src.URL)))

	doc, kind, err := ingestor.LoadDocument(ctx, m.fetcher, src)
	if err != nil {
		rb.report.FailedSources++
		rb.errs = append(rb.errs, fmt.Errorf("%s: %w", urlutil.Redact(src.URL), err))
		logger.ErrorContext(ctx, "loading guide document", slog.String("error", err.Error()))
		return
	}
	logger.DebugContext(ctx, "decoded guide document",
		slog.String("compression", string(kind)),
		slog.Int("channels", len(doc.Channels)),
		slog.Int("programmes", len(doc.Programmes)),
	)

	var stats ingestor.IngestStats
	if m.storeReady() {
		stats, err = m.persistDocument(ctx, rb, doc)
		if err != nil {
			rb.report.DegradedDocuments++
			logger.WarnContext(ctx, "persistent store failed, loading document in memory only",
				slog.String("error", err.Error()))
			stats = m.loadInMemory(doc)
		}
	} else {
		stats = m.loadInMemory(doc)
	}

	rb.report.Dropped += stats.Dropped
	rb.report.FailedChunks += stats.FailedChunks
	logger.InfoContext(ctx, "loaded guide document",
		slog.Int("channels", stats.Channels),
		slog.Int("programmes", stats.Programmes),
		slog.Int("stored", stats.Stored),
		slog.Int("dropped", stats.Dropped),
	)
}

// persistDocument writes doc to the persistent store and then mirrors it.
// The store is cleared once per run, before the first document is written.
func (m *Manager) persistDocument(ctx context.Context, rb *rebuild, doc *xmltv.Document) (ingestor.IngestStats, error) {
	stats := ingestor.IngestStats{Channels: len(doc.Channels), Programmes: len(doc.Programmes)}

	if !rb.cleared {
		if err := m.persistent.Clear(ctx); err != nil {
			return stats, fmt.Errorf("clearing store: %w", err)
		}
		rb.cleared = true
	}

	for i := range doc.Channels {
		ch := &doc.Channels[i]
		if err := m.persistent.UpsertChannel(ctx, ch.ID, ch.DisplayName(), ch.Icon); err != nil {
			return stats, fmt.Errorf("storing channel %q: %w", ch.ID, err)
		}
	}

	res, err := m.pool.Process(ctx, doc.Programmes)
	if err != nil {
		return stats, fmt.Errorf("processing programmes: %w", err)
	}

	stored, err := m.persistent.BulkInsertPrograms(ctx, res.Entries)
	if err != nil {
		return stats, fmt.Errorf("storing programmes: %w", err)
	}
	if err := m.persistent.SetLastUpdate(ctx, m.now()); err != nil {
		return stats, fmt.Errorf("storing last update: %w", err)
	}

	m.mirrorDocument(doc, res.Entries)
	stats.Stored = stored
	stats.Dropped = res.Dropped
	stats.FailedChunks = res.FailedChunks
	return stats, nil
}

// loadInMemory converts doc sequentially into the mirror only.
func (m *Manager) loadInMemory(doc *xmltv.Document) ingestor.IngestStats {
	stats := ingestor.IngestStats{Channels: len(doc.Channels), Programmes: len(doc.Programmes)}
	entries := make([]ingestor.Entry, 0, len(doc.Programmes))
	for i := range doc.Programmes {
		e, ok := ingestor.ConvertProgramme(&doc.Programmes[i])
		if !ok {
			stats.Dropped++
			continue
		}
		entries = append(entries, e)
	}
	m.mirrorDocument(doc, entries)
	stats.Stored = len(entries)
	return stats
}

func (m *Manager) mirrorDocument(doc *xmltv.Document, entries []ingestor.Entry) {
	for i := range doc.Channels {
		ch := &doc.Channels[i]
		m.mirror.SetChannel(ch.ID, ch.DisplayName(), ch.Icon)
	}
	m.mirror.Append(entries)
}

func (m *Manager) recordRun(ctx context.Context, rb *rebuild, started time.Time) {
	if !m.storeReady() {
		return
	}
	run := &models.UpdateRun{
		ID:         rb.id,
		StartedAt:  started,
		FinishedAt: m.now(),
		Status:     rb.report.Status,
		Sources:    rb.report.Sources,
		FailedURLs: rb.report.FailedSources,
		Channels:   rb.report.Channels,
		Programs:   rb.report.Programs,
		Dropped:    rb.report.Dropped,
	}
	if err := errors.Join(rb.errs...); err != nil {
		run.Message = err.Error()
	}
	// A cancelled run still gets recorded.
	if err := m.persistent.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		rb.logger.WarnContext(ctx, "recording update run", slog.String("error", err.Error()))
	}
}
