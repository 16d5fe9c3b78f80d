// Package epg provides the guide manager: the lifecycle component that
// rebuilds the guide from its sources, keeps the persistent and in-memory
// stores in step, and answers now/next queries.
package epg

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmylchreest/epgnow/internal/ingestor"
	"github.com/jmylchreest/epgnow/internal/normalize"
	"github.com/jmylchreest/epgnow/internal/scheduler"
	"github.com/jmylchreest/epgnow/internal/store"
)

// ErrChannelIDRequired is returned by queries given an empty channel id.
var ErrChannelIDRequired = errors.New("channel id is required")

const (
	// DefaultUpdateCron runs the daily rebuild at 03:00.
	DefaultUpdateCron = "0 3 * * *"

	// DefaultStaleAfter is the age after which NeedsUpdate reports true.
	DefaultStaleAfter = 24 * time.Hour

	// UpdateJobName is the scheduler job name of the recurring rebuild.
	UpdateJobName = "epg-update"
)

// Manager owns the guide. Create one with New and release it with Close.
//
// Only one rebuild runs at a time; a rebuild requested while another is in
// flight is skipped. Queries read the persistent store first and fall back
// to the in-memory mirror.
type Manager struct {
	fetcher    ingestor.Fetcher
	persistent *store.PersistentStore
	mirror     *store.MirrorStore
	queries    *store.FallbackStore
	pool       *ingestor.Pool
	scheduler  *scheduler.Scheduler
	logger     *slog.Logger

	displayOffset normalize.DisplayOffset
	updateCron    string
	staleAfter    time.Duration
	upcomingLimit int
	now           func() time.Time

	isUpdating atomic.Bool

	mu            sync.RWMutex
	lastUpdate    time.Time
	lastSourceURL string
	cronInstalled bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a manager. persistent may be nil, in which case every rebuild
// uses the in-memory path. When persistent is initialized the time of the
// last successful rebuild is restored from it.
func New(fetcher ingestor.Fetcher, persistent *store.PersistentStore) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		fetcher:       fetcher,
		persistent:    persistent,
		mirror:        store.NewMirrorStore(),
		pool:          ingestor.NewPool(),
		logger:        slog.Default(),
		displayOffset: normalize.ParseDisplayOffset(normalize.DefaultDisplayOffset),
		updateCron:    DefaultUpdateCron,
		staleAfter:    DefaultStaleAfter,
		upcomingLimit: store.DefaultUpcomingLimit,
		now:           time.Now,
		ctx:           ctx,
		cancel:        cancel,
	}
	m.rebuildQueries()
	m.restoreLastUpdate()
	return m
}

func (m *Manager) rebuildQueries() {
	var primary store.ProgramStore
	if m.persistent != nil {
		primary = m.persistent
	}
	m.queries = store.NewFallbackStore(primary, m.mirror, m.logger)
}

func (m *Manager) restoreLastUpdate() {
	if !m.storeReady() {
		return
	}
	last, ok, err := m.persistent.LastUpdate(m.ctx)
	if err != nil {
		m.logger.Warn("reading persisted last update", slog.String("error", err.Error()))
		return
	}
	if ok {
		m.mu.Lock()
		m.lastUpdate = last
		m.mu.Unlock()
		m.logger.Info("restored last guide update", slog.Time("last_update", last))
	}
}

// WithLogger sets the logger.
func (m *Manager) WithLogger(logger *slog.Logger) *Manager {
	if logger != nil {
		m.logger = logger
		m.rebuildQueries()
	}
	return m
}

// WithPool replaces the worker pool used on the persistent path.
func (m *Manager) WithPool(pool *ingestor.Pool) *Manager {
	if pool != nil {
		m.pool = pool
	}
	return m
}

// WithScheduler sets the scheduler the recurring rebuild is installed on.
// Without one Initialize installs no recurring rebuild.
func (m *Manager) WithScheduler(s *scheduler.Scheduler) *Manager {
	m.scheduler = s
	return m
}

// WithDisplayOffset sets the offset start and stop times are rendered in.
// A malformed value selects the default "+1:00".
func (m *Manager) WithDisplayOffset(spec string) *Manager {
	m.displayOffset = normalize.ParseDisplayOffset(spec)
	return m
}

// WithUpdateCron sets the recurring rebuild schedule.
func (m *Manager) WithUpdateCron(spec string) *Manager {
	if spec != "" {
		m.updateCron = spec
	}
	return m
}

// WithStaleAfter sets the NeedsUpdate threshold.
func (m *Manager) WithStaleAfter(d time.Duration) *Manager {
	if d > 0 {
		m.staleAfter = d
	}
	return m
}

// WithUpcomingLimit sets the default number of upcoming programs.
func (m *Manager) WithUpcomingLimit(n int) *Manager {
	if n > 0 {
		m.upcomingLimit = n
	}
	return m
}

// WithClock replaces the time source.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	if now != nil {
		m.now = now
	}
	return m
}

func (m *Manager) storeReady() bool {
	return m.persistent != nil && m.persistent.Initialized()
}

// Initialize warms the guide from url and installs the recurring rebuild.
// It does nothing when url was already loaded and the guide is non-empty.
// The recurring rebuild is installed at most once per manager.
func (m *Manager) Initialize(ctx context.Context, url string) error {
	m.mu.RLock()
	warm := m.lastSourceURL == url && m.mirror.ChannelCount() > 0
	m.mu.RUnlock()
	if warm {
		m.logger.InfoContext(ctx, "guide already loaded, skipping initial update")
		return nil
	}

	m.mu.Lock()
	m.lastSourceURL = url
	m.mu.Unlock()

	m.Update(ctx, url)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cronInstalled || m.scheduler == nil {
		return nil
	}
	err := m.scheduler.Add(UpdateJobName, m.updateCron, func(ctx context.Context) {
		m.logger.InfoContext(ctx, "running scheduled guide update")
		m.Refresh(ctx)
	})
	if err != nil {
		return err
	}
	m.cronInstalled = true
	return nil
}

// Refresh rebuilds from the last initialized source. It reports false when
// no source is known or another rebuild is in flight.
func (m *Manager) Refresh(ctx context.Context) bool {
	url := m.SourceURL()
	if url == "" {
		m.logger.WarnContext(ctx, "no guide source configured, skipping refresh")
		return false
	}
	_, ran := m.Update(ctx, url)
	return ran
}

// RefreshAsync starts Refresh in the background on the manager's own
// context. It reports false when a rebuild is already in flight or no
// source is known.
func (m *Manager) RefreshAsync() bool {
	if m.isUpdating.Load() || m.SourceURL() == "" || m.ctx.Err() != nil {
		return false
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.Refresh(m.ctx)
	}()
	return true
}

// SourceURL returns the last initialized source location.
func (m *Manager) SourceURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSourceURL
}

// LastUpdate returns the time the last rebuild finished, or the zero time.
func (m *Manager) LastUpdate() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastUpdate
}

// NextUpdate returns the next scheduled rebuild time, if one is installed
// and the scheduler is running.
func (m *Manager) NextUpdate() (time.Time, bool) {
	if m.scheduler == nil {
		return time.Time{}, false
	}
	return m.scheduler.NextRun(UpdateJobName)
}

// IsUpdating reports whether a rebuild is in flight.
func (m *Manager) IsUpdating() bool {
	return m.isUpdating.Load()
}

// NeedsUpdate reports whether the guide has never been rebuilt or the last
// rebuild is older than the stale threshold.
func (m *Manager) NeedsUpdate() bool {
	last := m.LastUpdate()
	if last.IsZero() {
		return true
	}
	return m.now().Sub(last) >= m.staleAfter
}

// IsAvailable reports whether the guide holds channels and no rebuild is
// in flight.
func (m *Manager) IsAvailable() bool {
	return m.mirror.ChannelCount() > 0 && !m.isUpdating.Load()
}

// Status is a diagnostic snapshot of the manager.
type Status struct {
	IsUpdating    bool   `json:"isUpdating"`
	LastUpdate    string `json:"lastUpdate"`
	ChannelsCount int    `json:"channelsCount"`
	IconsCount    int    `json:"iconsCount"`
	ProgramsCount int    `json:"programsCount"`
	Timezone      string `json:"timezone"`
}

// NeverUpdated is the Status.LastUpdate value before the first rebuild.
const NeverUpdated = "never"

// Status returns a diagnostic snapshot.
func (m *Manager) Status() Status {
	last := NeverUpdated
	if t := m.LastUpdate(); !t.IsZero() {
		last = m.displayOffset.Format(t)
	}
	return Status{
		IsUpdating:    m.isUpdating.Load(),
		LastUpdate:    last,
		ChannelsCount: m.mirror.ChannelCount(),
		IconsCount:    m.mirror.IconCount(),
		ProgramsCount: m.mirror.ProgramCount(),
		Timezone:      m.displayOffset.String(),
	}
}

// PlaylistChannel is a playlist entry carrying a guide id.
type PlaylistChannel struct {
	Name  string `json:"name"`
	TvgID string `json:"tvgId"`
}

// MissingChannels returns the playlist entries whose guide id matches no
// known guide channel. Entries without a guide id are ignored.
func (m *Manager) MissingChannels(channels []PlaylistChannel) []PlaylistChannel {
	missing := make([]PlaylistChannel, 0)
	for _, ch := range channels {
		if ch.TvgID == "" {
			continue
		}
		if !m.mirror.HasChannel(ch.TvgID) {
			missing = append(missing, ch)
		}
	}

	if len(missing) > 0 {
		for _, ch := range missing {
			m.logger.Debug("playlist channel without guide", slog.String("tvg_id", ch.TvgID), slog.String("name", ch.Name))
		}
		m.logger.Info("playlist channels without guide data", slog.Int("missing", len(missing)), slog.Int("checked", len(channels)))
	}
	return missing
}

// Close removes the recurring rebuild, cancels in-flight background work
// and waits for it to return.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.cronInstalled && m.scheduler != nil {
		m.scheduler.Remove(UpdateJobName)
		m.cronInstalled = false
	}
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
	return nil
}
