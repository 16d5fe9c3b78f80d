package store

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// FallbackStore queries Primary and falls back to Secondary when Primary
// fails. ChannelIcon also falls back when Primary reports ErrNotFound.
// A nil Primary always uses Secondary.
type FallbackStore struct {
	Primary   ProgramStore
	Secondary ProgramStore
	Logger    *slog.Logger
}

// NewFallbackStore composes primary and secondary.
func NewFallbackStore(primary, secondary ProgramStore, logger *slog.Logger) *FallbackStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackStore{Primary: primary, Secondary: secondary, Logger: logger}
}

func (f *FallbackStore) degrade(ctx context.Context, op, channelID string, err error) {
	if errors.Is(err, ErrNotInitialized) {
		return
	}
	f.Logger.WarnContext(ctx, "primary store failed, using fallback",
		slog.String("op", op),
		slog.String("channel_id", channelID),
		slog.String("error", err.Error()),
	)
}

// CurrentProgram implements ProgramStore.
func (f *FallbackStore) CurrentProgram(ctx context.Context, channelID string, now time.Time) (*Program, error) {
	if f.Primary != nil {
		p, err := f.Primary.CurrentProgram(ctx, channelID, now)
		if err == nil {
			return p, nil
		}
		f.degrade(ctx, "current_program", channelID, err)
	}
	return f.Secondary.CurrentProgram(ctx, channelID, now)
}

// UpcomingPrograms implements ProgramStore.
func (f *FallbackStore) UpcomingPrograms(ctx context.Context, channelID string, now time.Time, limit int) ([]Program, error) {
	if f.Primary != nil {
		programs, err := f.Primary.UpcomingPrograms(ctx, channelID, now, limit)
		if err == nil {
			return programs, nil
		}
		f.degrade(ctx, "upcoming_programs", channelID, err)
	}
	return f.Secondary.UpcomingPrograms(ctx, channelID, now, limit)
}

// ChannelIcon implements ProgramStore.
func (f *FallbackStore) ChannelIcon(ctx context.Context, channelID string) (string, error) {
	if f.Primary != nil {
		icon, err := f.Primary.ChannelIcon(ctx, channelID)
		if err == nil {
			return icon, nil
		}
		if !errors.Is(err, ErrNotFound) {
			f.degrade(ctx, "channel_icon", channelID, err)
		}
	}
	return f.Secondary.ChannelIcon(ctx, channelID)
}

var (
	_ ProgramStore = (*PersistentStore)(nil)
	_ ProgramStore = (*MirrorStore)(nil)
	_ ProgramStore = (*FallbackStore)(nil)
)
