package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/jmylchreest/epgnow/internal/epg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGuide struct {
	current   *epg.Program
	upcoming  []epg.Program
	icon      string
	err       error
	refreshes int
	gotLimit  int
}

func (f *fakeGuide) CurrentProgram(_ context.Context, _ string) (*epg.Program, error) {
	return f.current, f.err
}

func (f *fakeGuide) UpcomingPrograms(_ context.Context, _ string, limit int) ([]epg.Program, error) {
	f.gotLimit = limit
	return f.upcoming, f.err
}

func (f *fakeGuide) ChannelIcon(_ context.Context, _ string) (string, error) {
	return f.icon, f.err
}

func (f *fakeGuide) Status() epg.Status {
	return epg.Status{LastUpdate: epg.NeverUpdated, Timezone: "+1:00", ChannelsCount: 3}
}

func (f *fakeGuide) MissingChannels(channels []epg.PlaylistChannel) []epg.PlaylistChannel {
	var out []epg.PlaylistChannel
	for _, ch := range channels {
		if ch.TvgID == "missing.it" {
			out = append(out, ch)
		}
	}
	return out
}

func (f *fakeGuide) RefreshAsync() bool {
	f.refreshes++
	return f.refreshes == 1
}

func newEPGAPI(t *testing.T, g *fakeGuide) humatest.TestAPI {
	t.Helper()
	_, api := humatest.New(t)
	NewEPGHandler(g).Register(api)
	return api
}

func TestEPGHandler_Now(t *testing.T) {
	t.Run("airing", func(t *testing.T) {
		api := newEPGAPI(t, &fakeGuide{current: &epg.Program{Title: "Morning Show", Start: "09:00", Stop: "10:00"}})
		resp := api.Get("/api/v1/epg/channels/rai1.it/now")
		require.Equal(t, http.StatusOK, resp.Code)

		var body epg.Program
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
		assert.Equal(t, "Morning Show", body.Title)
		assert.Equal(t, "09:00", body.Start)
	})

	t.Run("nothing airing", func(t *testing.T) {
		api := newEPGAPI(t, &fakeGuide{})
		resp := api.Get("/api/v1/epg/channels/rai1.it/now")
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("store error", func(t *testing.T) {
		api := newEPGAPI(t, &fakeGuide{err: errors.New("boom")})
		resp := api.Get("/api/v1/epg/channels/rai1.it/now")
		assert.Equal(t, http.StatusInternalServerError, resp.Code)
	})

	t.Run("missing id", func(t *testing.T) {
		api := newEPGAPI(t, &fakeGuide{err: epg.ErrChannelIDRequired})
		resp := api.Get("/api/v1/epg/channels/-/now")
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})
}

func TestEPGHandler_Upcoming(t *testing.T) {
	g := &fakeGuide{upcoming: []epg.Program{{Title: "News", Start: "10:00", Stop: "11:00"}}}
	api := newEPGAPI(t, g)

	resp := api.Get("/api/v1/epg/channels/rai1.it/upcoming")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 2, g.gotLimit)

	var body struct {
		Programs []epg.Program `json:"programs"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Programs, 1)
	assert.Equal(t, "News", body.Programs[0].Title)

	resp = api.Get("/api/v1/epg/channels/rai1.it/upcoming?limit=5")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 5, g.gotLimit)

	resp = api.Get("/api/v1/epg/channels/rai1.it/upcoming?limit=0")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestEPGHandler_Icon(t *testing.T) {
	api := newEPGAPI(t, &fakeGuide{icon: "http://img/rai1.png"})
	resp := api.Get("/api/v1/epg/channels/rai1.it/icon")
	require.Equal(t, http.StatusOK, resp.Code)
	var body struct {
		Icon string `json:"icon"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "http://img/rai1.png", body.Icon)

	api = newEPGAPI(t, &fakeGuide{})
	resp = api.Get("/api/v1/epg/channels/rai1.it/icon")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestEPGHandler_Status(t *testing.T) {
	api := newEPGAPI(t, &fakeGuide{})
	resp := api.Get("/api/v1/epg/status")
	require.Equal(t, http.StatusOK, resp.Code)

	var body epg.Status
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "never", body.LastUpdate)
	assert.Equal(t, 3, body.ChannelsCount)
}

func TestEPGHandler_Missing(t *testing.T) {
	api := newEPGAPI(t, &fakeGuide{})
	resp := api.Post("/api/v1/epg/missing", map[string]any{
		"channels": []map[string]string{
			{"name": "Rai 1", "tvgId": "rai1.it"},
			{"name": "Gone", "tvgId": "missing.it"},
		},
	})
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Missing []epg.PlaylistChannel `json:"missing"`
		Checked int                   `json:"checked"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Checked)
	assert.Equal(t, []epg.PlaylistChannel{{Name: "Gone", TvgID: "missing.it"}}, body.Missing)
}

func TestEPGHandler_Refresh(t *testing.T) {
	g := &fakeGuide{}
	api := newEPGAPI(t, g)

	resp := api.Post("/api/v1/epg/refresh")
	require.Equal(t, http.StatusAccepted, resp.Code)
	assert.Contains(t, resp.Body.String(), `"started":true`)

	resp = api.Post("/api/v1/epg/refresh")
	require.Equal(t, http.StatusAccepted, resp.Code)
	assert.Contains(t, resp.Body.String(), `"started":false`)
}
