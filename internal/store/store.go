// Package store holds the guide query capability and its persistent,
// in-memory and fallback implementations.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotInitialized is returned when the persistent store is queried
	// before its schema has been set up.
	ErrNotInitialized = errors.New("store not initialized")

	// ErrNotFound is returned by ChannelIcon when the channel has no icon.
	ErrNotFound = errors.New("not found")
)

// DefaultUpcomingLimit is the number of upcoming programs returned when the
// caller does not ask for a specific amount.
const DefaultUpcomingLimit = 2

// Program is a scheduled program as returned by queries.
type Program struct {
	ChannelID   string
	ChannelName string
	ChannelIcon string
	Title       string
	Description string
	Category    string
	Start       time.Time
	Stop        time.Time
}

// ProgramStore answers time-based guide queries. Channel ids are
// canonicalized by the implementation. An unknown channel yields a nil
// program or an empty list, never an error.
type ProgramStore interface {
	// CurrentProgram returns the program airing at now, preferring the
	// earliest start when programs overlap.
	CurrentProgram(ctx context.Context, channelID string, now time.Time) (*Program, error)

	// UpcomingPrograms returns up to limit programs starting at or after now,
	// in ascending start order.
	UpcomingPrograms(ctx context.Context, channelID string, now time.Time, limit int) ([]Program, error)

	// ChannelIcon returns the channel icon URL or ErrNotFound.
	ChannelIcon(ctx context.Context, channelID string) (string, error)
}
