package epg

import (
	"context"
	"errors"
	"strings"

	"github.com/jmylchreest/epgnow/internal/store"
)

// Program is a guide entry formatted for display. Start and Stop are
// "HH:MM" in the configured display offset.
type Program struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Start       string `json:"start"`
	Stop        string `json:"stop"`
	ChannelName string `json:"channelName,omitempty"`
	ChannelIcon string `json:"channelIcon,omitempty"`
}

func (m *Manager) display(p store.Program) Program {
	return Program{
		Title:       p.Title,
		Description: p.Description,
		Category:    p.Category,
		Start:       m.displayOffset.Format(p.Start),
		Stop:        m.displayOffset.Format(p.Stop),
		ChannelName: p.ChannelName,
		ChannelIcon: p.ChannelIcon,
	}
}

func requireChannel(channelID string) error {
	if strings.TrimSpace(channelID) == "" {
		return ErrChannelIDRequired
	}
	return nil
}

// CurrentProgram returns the program airing now on channelID, or nil when
// nothing is airing or the channel is unknown.
func (m *Manager) CurrentProgram(ctx context.Context, channelID string) (*Program, error) {
	if err := requireChannel(channelID); err != nil {
		return nil, err
	}
	p, err := m.queries.CurrentProgram(ctx, channelID, m.now())
	if err != nil || p == nil {
		return nil, err
	}
	out := m.display(*p)
	return &out, nil
}

// UpcomingPrograms returns up to limit programs on channelID starting at or
// after now. A limit below one selects the configured default.
func (m *Manager) UpcomingPrograms(ctx context.Context, channelID string, limit int) ([]Program, error) {
	if err := requireChannel(channelID); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = m.upcomingLimit
	}
	list, err := m.queries.UpcomingPrograms(ctx, channelID, m.now(), limit)
	if err != nil {
		return nil, err
	}
	out := make([]Program, 0, len(list))
	for _, p := range list {
		out = append(out, m.display(p))
	}
	return out, nil
}

// ChannelIcon returns the icon URL of channelID, or "" when it has none.
func (m *Manager) ChannelIcon(ctx context.Context, channelID string) (string, error) {
	if err := requireChannel(channelID); err != nil {
		return "", err
	}
	icon, err := m.queries.ChannelIcon(ctx, channelID)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	return icon, err
}
