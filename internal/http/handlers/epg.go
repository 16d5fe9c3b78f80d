// Package handlers provides the HTTP API handlers for epgnow.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/jmylchreest/epgnow/internal/epg"
)

// Guide is the guide surface served over HTTP.
type Guide interface {
	CurrentProgram(ctx context.Context, channelID string) (*epg.Program, error)
	UpcomingPrograms(ctx context.Context, channelID string, limit int) ([]epg.Program, error)
	ChannelIcon(ctx context.Context, channelID string) (string, error)
	Status() epg.Status
	MissingChannels(channels []epg.PlaylistChannel) []epg.PlaylistChannel
	RefreshAsync() bool
}

// EPGHandler serves guide queries.
type EPGHandler struct {
	guide Guide
}

// NewEPGHandler creates a new EPG handler.
func NewEPGHandler(guide Guide) *EPGHandler {
	return &EPGHandler{guide: guide}
}

// Register registers the EPG routes with the API.
func (h *EPGHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getCurrentProgram",
		Method:      http.MethodGet,
		Path:        "/api/v1/epg/channels/{id}/now",
		Summary:     "Get the program airing now",
		Tags:        []string{"EPG"},
	}, h.GetCurrent)

	huma.Register(api, huma.Operation{
		OperationID: "getUpcomingPrograms",
		Method:      http.MethodGet,
		Path:        "/api/v1/epg/channels/{id}/upcoming",
		Summary:     "Get upcoming programs",
		Tags:        []string{"EPG"},
	}, h.GetUpcoming)

	huma.Register(api, huma.Operation{
		OperationID: "getChannelIcon",
		Method:      http.MethodGet,
		Path:        "/api/v1/epg/channels/{id}/icon",
		Summary:     "Get a channel icon URL",
		Tags:        []string{"EPG"},
	}, h.GetIcon)

	huma.Register(api, huma.Operation{
		OperationID: "getEpgStatus",
		Method:      http.MethodGet,
		Path:        "/api/v1/epg/status",
		Summary:     "Get guide status",
		Tags:        []string{"EPG"},
	}, h.GetStatus)

	huma.Register(api, huma.Operation{
		OperationID: "findMissingChannels",
		Method:      http.MethodPost,
		Path:        "/api/v1/epg/missing",
		Summary:     "List playlist channels without guide data",
		Tags:        []string{"EPG"},
	}, h.FindMissing)

	huma.Register(api, huma.Operation{
		OperationID:   "refreshEpg",
		Method:        http.MethodPost,
		Path:          "/api/v1/epg/refresh",
		Summary:       "Start a guide rebuild",
		Description:   "Starts a background rebuild. A request made while a rebuild is running is accepted but does nothing.",
		Tags:          []string{"EPG"},
		DefaultStatus: http.StatusAccepted,
	}, h.Refresh)
}

// ChannelInput identifies a channel by guide id.
type ChannelInput struct {
	ID string `path:"id" doc:"Guide channel id, matched case and punctuation insensitively"`
}

// ProgramOutput is a single program.
type ProgramOutput struct {
	Body epg.Program
}

// GetCurrent returns the program airing now.
func (h *EPGHandler) GetCurrent(ctx context.Context, input *ChannelInput) (*ProgramOutput, error) {
	p, err := h.guide.CurrentProgram(ctx, input.ID)
	if err != nil {
		return nil, queryError(err)
	}
	if p == nil {
		return nil, huma.Error404NotFound("no program airing on channel " + input.ID)
	}
	return &ProgramOutput{Body: *p}, nil
}

// UpcomingInput identifies a channel and the number of programs wanted.
type UpcomingInput struct {
	ID    string `path:"id"`
	Limit int    `query:"limit" default:"2" minimum:"1" maximum:"100"`
}

// UpcomingOutput lists upcoming programs.
type UpcomingOutput struct {
	Body struct {
		Programs []epg.Program `json:"programs"`
	}
}

// GetUpcoming returns programs starting at or after now.
func (h *EPGHandler) GetUpcoming(ctx context.Context, input *UpcomingInput) (*UpcomingOutput, error) {
	list, err := h.guide.UpcomingPrograms(ctx, input.ID, input.Limit)
	if err != nil {
		return nil, queryError(err)
	}
	out := &UpcomingOutput{}
	out.Body.Programs = list
	return out, nil
}

// IconOutput carries a channel icon URL.
type IconOutput struct {
	Body struct {
		Icon string `json:"icon"`
	}
}

// GetIcon returns the channel's icon URL.
func (h *EPGHandler) GetIcon(ctx context.Context, input *ChannelInput) (*IconOutput, error) {
	icon, err := h.guide.ChannelIcon(ctx, input.ID)
	if err != nil {
		return nil, queryError(err)
	}
	if icon == "" {
		return nil, huma.Error404NotFound("no icon for channel " + input.ID)
	}
	out := &IconOutput{}
	out.Body.Icon = icon
	return out, nil
}

// StatusOutput is the guide status snapshot.
type StatusOutput struct {
	Body epg.Status
}

// GetStatus returns a status snapshot.
func (h *EPGHandler) GetStatus(_ context.Context, _ *struct{}) (*StatusOutput, error) {
	return &StatusOutput{Body: h.guide.Status()}, nil
}

// MissingInput carries the playlist channels to check.
type MissingInput struct {
	Body struct {
		Channels []epg.PlaylistChannel `json:"channels"`
	}
}

// MissingOutput lists playlist channels without guide data.
type MissingOutput struct {
	Body struct {
		Missing []epg.PlaylistChannel `json:"missing"`
		Checked int                   `json:"checked"`
	}
}

// FindMissing reports playlist channels whose guide id is unknown.
func (h *EPGHandler) FindMissing(_ context.Context, input *MissingInput) (*MissingOutput, error) {
	out := &MissingOutput{}
	out.Body.Missing = h.guide.MissingChannels(input.Body.Channels)
	out.Body.Checked = len(input.Body.Channels)
	return out, nil
}

// RefreshOutput reports whether a rebuild was started.
type RefreshOutput struct {
	Body struct {
		Started bool `json:"started"`
	}
}

// Refresh starts a background rebuild.
func (h *EPGHandler) Refresh(_ context.Context, _ *struct{}) (*RefreshOutput, error) {
	out := &RefreshOutput{}
	out.Body.Started = h.guide.RefreshAsync()
	return out, nil
}

func queryError(err error) error {
	if errors.Is(err, epg.ErrChannelIDRequired) {
		return huma.Error400BadRequest(err.Error())
	}
	return huma.Error500InternalServerError("querying guide", err)
}
