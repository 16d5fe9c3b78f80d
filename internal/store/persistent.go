package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jmylchreest/epgnow/internal/database/migrations"
	"github.com/jmylchreest/epgnow/internal/ingestor"
	"github.com/jmylchreest/epgnow/internal/models"
	"github.com/jmylchreest/epgnow/internal/normalize"
	"github.com/jmylchreest/epgnow/internal/observability"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultBatchSize = 1000

// insertRows bounds the rows per INSERT statement so a statement stays
// under the SQLite bind variable limit regardless of the batch size.
const insertRows = 1000

// PersistentStore is the relational guide store.
type PersistentStore struct {
	db          *gorm.DB
	logger      *slog.Logger
	batchSize   int
	initialized atomic.Bool
}

// NewPersistentStore creates a store on db. Initialize must be called
// before use.
func NewPersistentStore(db *gorm.DB) *PersistentStore {
	return &PersistentStore{
		db:        db,
		logger:    slog.Default(),
		batchSize: defaultBatchSize,
	}
}

// WithLogger sets the logger.
func (s *PersistentStore) WithLogger(logger *slog.Logger) *PersistentStore {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithBatchSize sets the number of programs written per transaction.
func (s *PersistentStore) WithBatchSize(size int) *PersistentStore {
	if size > 0 {
		s.batchSize = size
	}
	return s
}

// Initialize applies pending schema migrations.
func (s *PersistentStore) Initialize(ctx context.Context) (err error) {
	defer observability.TimedOperation(ctx, s.logger, "migrate guide schema", &err)()

	migrator := migrations.NewMigrator(s.db, s.logger)
	migrator.RegisterAll(migrations.AllMigrations())
	if err := migrator.Up(ctx); err != nil {
		return fmt.Errorf("migrating guide schema: %w", err)
	}
	s.initialized.Store(true)
	return nil
}

// Initialized reports whether Initialize succeeded.
func (s *PersistentStore) Initialized() bool {
	return s.initialized.Load()
}

func (s *PersistentStore) ready(ctx context.Context) (*gorm.DB, error) {
	if !s.initialized.Load() {
		return nil, ErrNotInitialized
	}
	return s.db.WithContext(ctx), nil
}

// Clear deletes every program and channel in one transaction.
func (s *PersistentStore) Clear(ctx context.Context) error {
	db, err := s.ready(ctx)
	if err != nil {
		return err
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Program{}).Error; err != nil {
			return err
		}
		return tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Channel{}).Error
	})
	if err != nil {
		return fmt.Errorf("clearing guide: %w", err)
	}
	return nil
}

// UpsertChannel inserts or replaces a channel keyed by its canonical id.
func (s *PersistentStore) UpsertChannel(ctx context.Context, id, name, icon string) error {
	db, err := s.ready(ctx)
	if err != nil {
		return err
	}
	channel := models.Channel{ID: normalize.NormalizeChannelID(id), Name: name, Icon: icon}
	if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&channel).Error; err != nil {
		return fmt.Errorf("upserting channel %s: %w", channel.ID, err)
	}
	return nil
}

// BulkInsertPrograms writes entries in batches, one transaction per batch.
// Each batch is split into statements of at most insertRows rows.
// Channel references are canonicalized on the way in.
func (s *PersistentStore) BulkInsertPrograms(ctx context.Context, entries []ingestor.Entry) (int, error) {
	db, err := s.ready(ctx)
	if err != nil {
		return 0, err
	}

	stored := 0
	for start := 0; start < len(entries); start += s.batchSize {
		end := min(start+s.batchSize, len(entries))
		batch := make([]models.Program, 0, end-start)
		for _, e := range entries[start:end] {
			batch = append(batch, models.Program{
				ChannelID:   normalize.NormalizeChannelID(e.ChannelRef),
				Title:       e.Title,
				Description: e.Description,
				Category:    e.Category,
				StartTime:   normalize.ToMillis(e.Start),
				EndTime:     normalize.ToMillis(e.Stop),
			})
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			return tx.CreateInBatches(&batch, insertRows).Error
		})
		if err != nil {
			return stored, fmt.Errorf("inserting programs %d-%d: %w", start, end, err)
		}
		stored += len(batch)
	}
	return stored, nil
}

type programRow struct {
	ChannelID   string
	ChannelName *string
	ChannelIcon *string
	Title       string
	Description string
	Category    string
	StartTime   int64
	EndTime     int64
}

func (r programRow) toProgram() Program {
	p := Program{
		ChannelID:   r.ChannelID,
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Start:       normalize.FromMillis(r.StartTime),
		Stop:        normalize.FromMillis(r.EndTime),
	}
	if r.ChannelName != nil {
		p.ChannelName = *r.ChannelName
	}
	if r.ChannelIcon != nil {
		p.ChannelIcon = *r.ChannelIcon
	}
	return p
}

func (s *PersistentStore) programQuery(db *gorm.DB) *gorm.DB {
	return db.Table("programs AS p").
		Select("p.channel_id, c.name AS channel_name, c.icon AS channel_icon, " +
			"p.title, p.description, p.category, p.start_time, p.end_time").
		Joins("LEFT JOIN channels c ON p.channel_id = c.id")
}

// CurrentProgram implements ProgramStore.
func (s *PersistentStore) CurrentProgram(ctx context.Context, channelID string, now time.Time) (*Program, error) {
	db, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	id := normalize.NormalizeChannelID(channelID)
	ms := normalize.ToMillis(now)

	var rows []programRow
	err = s.programQuery(db).
		Where("p.channel_id = ? AND p.start_time <= ? AND p.end_time >= ?", id, ms, ms).
		Order("p.start_time ASC").
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("querying current program for %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	p := rows[0].toProgram()
	return &p, nil
}

// UpcomingPrograms implements ProgramStore.
func (s *PersistentStore) UpcomingPrograms(ctx context.Context, channelID string, now time.Time, limit int) ([]Program, error) {
	db, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultUpcomingLimit
	}
	id := normalize.NormalizeChannelID(channelID)

	var rows []programRow
	err = s.programQuery(db).
		Where("p.channel_id = ? AND p.start_time >= ?", id, normalize.ToMillis(now)).
		Order("p.start_time ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("querying upcoming programs for %s: %w", id, err)
	}

	programs := make([]Program, 0, len(rows))
	for _, r := range rows {
		programs = append(programs, r.toProgram())
	}
	return programs, nil
}

// ChannelIcon implements ProgramStore.
func (s *PersistentStore) ChannelIcon(ctx context.Context, channelID string) (string, error) {
	db, err := s.ready(ctx)
	if err != nil {
		return "", err
	}
	id := normalize.NormalizeChannelID(channelID)

	var channel models.Channel
	err = db.Select("icon").Where("id = ?", id).Take(&channel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying icon for %s: %w", id, err)
	}
	if channel.Icon == "" {
		return "", ErrNotFound
	}
	return channel.Icon, nil
}

// GetMetadata returns the value stored under key, or ErrNotFound.
func (s *PersistentStore) GetMetadata(ctx context.Context, key string) (string, error) {
	db, err := s.ready(ctx)
	if err != nil {
		return "", err
	}
	var row models.Metadata
	err = db.Where(&models.Metadata{Key: key}).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading metadata %s: %w", key, err)
	}
	return row.Value, nil
}

// SetMetadata stores value under key, replacing any previous value.
func (s *PersistentStore) SetMetadata(ctx context.Context, key, value string) error {
	db, err := s.ready(ctx)
	if err != nil {
		return err
	}
	row := models.Metadata{Key: key, Value: value}
	if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("writing metadata %s: %w", key, err)
	}
	return nil
}

// LastUpdate returns the persisted time of the last successful rebuild.
// ok is false when none has been recorded.
func (s *PersistentStore) LastUpdate(ctx context.Context) (t time.Time, ok bool, err error) {
	value, err := s.GetMetadata(ctx, models.MetadataLastUpdate)
	if errors.Is(err, ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	var ms int64
	if _, err := fmt.Sscan(value, &ms); err != nil {
		return time.Time{}, false, fmt.Errorf("parsing %s %q: %w", models.MetadataLastUpdate, value, err)
	}
	return normalize.FromMillis(ms), true, nil
}

// SetLastUpdate persists t as the time of the last successful rebuild.
func (s *PersistentStore) SetLastUpdate(ctx context.Context, t time.Time) error {
	return s.SetMetadata(ctx, models.MetadataLastUpdate, fmt.Sprintf("%d", normalize.ToMillis(t)))
}

// RecordRun stores the outcome of a rebuild.
func (s *PersistentStore) RecordRun(ctx context.Context, run *models.UpdateRun) error {
	db, err := s.ready(ctx)
	if err != nil {
		return err
	}
	if run.ID.IsZero() {
		run.ID = models.NewULID()
	}
	if err := db.Create(run).Error; err != nil {
		return fmt.Errorf("recording update run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *PersistentStore) RecentRuns(ctx context.Context, limit int) ([]models.UpdateRun, error) {
	db, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	var runs []models.UpdateRun
	if err := db.Order("started_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("listing update runs: %w", err)
	}
	return runs, nil
}

// Counts holds row totals.
type Counts struct {
	Channels int64
	Icons    int64
	Programs int64
}

// Counts returns the number of stored channels, channels with icons and programs.
func (s *PersistentStore) Counts(ctx context.Context) (Counts, error) {
	db, err := s.ready(ctx)
	if err != nil {
		return Counts{}, err
	}
	var c Counts
	if err := db.Model(&models.Channel{}).Count(&c.Channels).Error; err != nil {
		return Counts{}, fmt.Errorf("counting channels: %w", err)
	}
	if err := db.Model(&models.Channel{}).Where("icon <> ''").Count(&c.Icons).Error; err != nil {
		return Counts{}, fmt.Errorf("counting icons: %w", err)
	}
	if err := db.Model(&models.Program{}).Count(&c.Programs).Error; err != nil {
		return Counts{}, fmt.Errorf("counting programs: %w", err)
	}
	return c, nil
}

// ChannelIDs returns every stored canonical channel id.
func (s *PersistentStore) ChannelIDs(ctx context.Context) ([]string, error) {
	db, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := db.Model(&models.Channel{}).Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("listing channel ids: %w", err)
	}
	return ids, nil
}
