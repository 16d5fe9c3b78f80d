package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jmylchreest/epgnow/internal/ingestor"
	"github.com/jmylchreest/epgnow/internal/normalize"
)

// MirrorStore is the in-memory copy of the guide. Programs are kept per
// canonical channel id and sorted by start once loading finishes.
type MirrorStore struct {
	mu       sync.RWMutex
	programs map[string][]Program
	names    map[string]string
	icons    map[string]string
}

// NewMirrorStore creates an empty mirror.
func NewMirrorStore() *MirrorStore {
	return &MirrorStore{
		programs: make(map[string][]Program),
		names:    make(map[string]string),
		icons:    make(map[string]string),
	}
}

// Reset drops all channels, icons and programs.
func (m *MirrorStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.programs = make(map[string][]Program)
	m.names = make(map[string]string)
	m.icons = make(map[string]string)
}

// SetChannel records a channel's display name and icon. An empty icon is
// not recorded.
func (m *MirrorStore) SetChannel(id, name, icon string) {
	key := normalize.NormalizeChannelID(id)
	m.mu.Lock()
	defer m.mu.Unlock()
	if name != "" {
		m.names[key] = name
	}
	if icon != "" {
		m.icons[key] = icon
	}
}

// Append adds entries under their canonical channel ids. Call Sort once
// all entries are appended.
func (m *MirrorStore) Append(entries []ingestor.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		key := normalize.NormalizeChannelID(e.ChannelRef)
		m.programs[key] = append(m.programs[key], Program{
			ChannelID:   key,
			Title:       e.Title,
			Description: e.Description,
			Category:    e.Category,
			Start:       e.Start,
			Stop:        e.Stop,
		})
	}
}

// Sort orders every channel's programs by ascending start.
func (m *MirrorStore) Sort() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, list := range m.programs {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Start.Before(list[j].Start)
		})
	}
}

func (m *MirrorStore) decorate(p Program) Program {
	p.ChannelName = m.names[p.ChannelID]
	p.ChannelIcon = m.icons[p.ChannelID]
	return p
}

// CurrentProgram implements ProgramStore.
func (m *MirrorStore) CurrentProgram(_ context.Context, channelID string, now time.Time) (*Program, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.programs[normalize.NormalizeChannelID(channelID)] {
		if !p.Start.After(now) && !p.Stop.Before(now) {
			found := m.decorate(p)
			return &found, nil
		}
	}
	return nil, nil
}

// UpcomingPrograms implements ProgramStore.
func (m *MirrorStore) UpcomingPrograms(_ context.Context, channelID string, now time.Time, limit int) ([]Program, error) {
	if limit <= 0 {
		limit = DefaultUpcomingLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	upcoming := make([]Program, 0, limit)
	for _, p := range m.programs[normalize.NormalizeChannelID(channelID)] {
		if p.Start.Before(now) {
			continue
		}
		upcoming = append(upcoming, m.decorate(p))
		if len(upcoming) == limit {
			break
		}
	}
	return upcoming, nil
}

// ChannelIcon implements ProgramStore.
func (m *MirrorStore) ChannelIcon(_ context.Context, channelID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if icon, ok := m.icons[normalize.NormalizeChannelID(channelID)]; ok {
		return icon, nil
	}
	return "", ErrNotFound
}

// ChannelCount returns the number of channels holding programs.
func (m *MirrorStore) ChannelCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.programs)
}

// IconCount returns the number of channels with an icon.
func (m *MirrorStore) IconCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.icons)
}

// ProgramCount returns the total number of programs.
func (m *MirrorStore) ProgramCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, list := range m.programs {
		total += len(list)
	}
	return total
}

// HasChannel reports whether programs are held for the channel.
func (m *MirrorStore) HasChannel(channelID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.programs[normalize.NormalizeChannelID(channelID)]
	return ok
}

// ChannelIDs returns the canonical ids of channels holding programs, sorted.
func (m *MirrorStore) ChannelIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.programs))
	for id := range m.programs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
