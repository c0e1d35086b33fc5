/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/munin_audio/internal/config"
	"github.com/friendsincode/munin_audio/internal/db"
	"github.com/friendsincode/munin_audio/internal/events"
	"github.com/friendsincode/munin_audio/internal/logbuffer"
	"github.com/friendsincode/munin_audio/internal/playlist"
	"github.com/friendsincode/munin_audio/internal/playout"
	"github.com/friendsincode/munin_audio/internal/scheduler"
	"github.com/friendsincode/munin_audio/internal/telemetry"
)

type fakeTransport struct {
	cmds    []playout.Command
	sendErr error
	snap    playout.TransportSnapshot
	level   float64
	silent  bool
	bus     *events.Bus
}

func (f *fakeTransport) Send(cmd playout.Command) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.cmds = append(f.cmds, cmd)
	return nil
}

func (f *fakeTransport) Snapshot() playout.TransportSnapshot { return f.snap }
func (f *fakeTransport) Level() float64                      { return f.level }
func (f *fakeTransport) Silent() bool                        { return f.silent }
func (f *fakeTransport) Events() *events.Bus                 { return f.bus }

func newTestServer(t *testing.T) (*Server, *fakeTransport) {
	t.Helper()
	database, err := db.Connect(":memory:")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(database) })
	store, err := playlist.NewStore(database)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	queue, err := playlist.NewQueue(store, zerolog.Nop())
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	transport := &fakeTransport{bus: events.NewBus()}
	srv := New(Deps{
		Config:   &config.Config{HTTPBind: "127.0.0.1", HTTPPort: 0},
		Engine:   transport,
		Store:    store,
		Queue:    queue,
		Runner:   scheduler.NewRunner(transport, queue, zerolog.Nop()),
		LogBuf:   logbuffer.New(100),
		Metrics:  telemetry.New(),
		Playback: config.DefaultPlayback(),
		Logger:   zerolog.Nop(),
	})
	return srv, transport
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestTransportCommands(t *testing.T) {
	srv, transport := newTestServer(t)

	cases := []struct {
		path string
		body string
		want playout.CommandType
	}{
		{"/api/transport/play", `{"track_index":2}`, playout.CmdPlay},
		{"/api/transport/stop", "", playout.CmdStop},
		{"/api/transport/pause", "", playout.CmdPause},
		{"/api/transport/resume", "", playout.CmdResume},
		{"/api/transport/skip", "", playout.CmdSkip},
		{"/api/transport/seek", `{"position_secs":12.5}`, playout.CmdSeek},
	}
	for i, tc := range cases {
		rec := doJSON(t, srv, http.MethodPost, tc.path, tc.body)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("%s: status = %d body %s", tc.path, rec.Code, rec.Body)
		}
		if transport.cmds[i].Type != tc.want {
			t.Fatalf("%s: command = %v, want %v", tc.path, transport.cmds[i].Type, tc.want)
		}
	}
	if transport.cmds[0].TrackIndex != 2 {
		t.Fatalf("play index = %d", transport.cmds[0].TrackIndex)
	}
	if transport.cmds[5].Position != 12500*time.Millisecond {
		t.Fatalf("seek position = %v", transport.cmds[5].Position)
	}
}

func TestPlayWithoutBodyUsesCurrentIndex(t *testing.T) {
	srv, transport := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/transport/play", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	if transport.cmds[0].TrackIndex != -1 {
		t.Fatalf("play index = %d, want -1", transport.cmds[0].TrackIndex)
	}
}

func TestCommandErrorsMapToStatus(t *testing.T) {
	srv, transport := newTestServer(t)

	transport.sendErr = playout.ErrCommandBacklog
	if rec := doJSON(t, srv, http.MethodPost, "/api/transport/stop", ""); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("backlog status = %d", rec.Code)
	}
	transport.sendErr = playout.ErrEngineClosed
	if rec := doJSON(t, srv, http.MethodPost, "/api/transport/stop", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("closed status = %d", rec.Code)
	}
}

func TestSnapshotAndLevels(t *testing.T) {
	srv, transport := newTestServer(t)
	transport.snap = playout.TransportSnapshot{State: "playing", IsPlaying: true, TrackIndex: 1, Artist: "Adele"}
	transport.level = 0.5

	rec := doJSON(t, srv, http.MethodGet, "/api/transport", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var snap playout.TransportSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.State != "playing" || snap.Artist != "Adele" {
		t.Fatalf("snapshot = %+v", snap)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/levels", "")
	var levels struct {
		RMS    float64 `json:"rms"`
		DB     float64 `json:"db"`
		Silent bool    `json:"silent"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &levels); err != nil {
		t.Fatal(err)
	}
	if levels.RMS != 0.5 || levels.Silent {
		t.Fatalf("levels = %+v", levels)
	}
}

func TestPlaylistCRUD(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/playlist",
		`{"path":"/music/a.mp3","title":"A","artist":"X","duration_secs":180}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d body %s", rec.Code, rec.Body)
	}
	var track playlist.Track
	if err := json.Unmarshal(rec.Body.Bytes(), &track); err != nil {
		t.Fatal(err)
	}
	if track.ID == "" || track.Duration != 3*time.Minute {
		t.Fatalf("track = %+v", track)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/playlist", "")
	var tracks []playlist.Track
	if err := json.Unmarshal(rec.Body.Bytes(), &tracks); err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 {
		t.Fatalf("tracks = %d", len(tracks))
	}

	// The engine's queue snapshot refreshed too.
	if srv.queue.Len() != 1 {
		t.Fatal("queue not reloaded after add")
	}

	rec = doJSON(t, srv, http.MethodDelete, "/api/playlist/"+track.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("remove status = %d", rec.Code)
	}
	if rec := doJSON(t, srv, http.MethodDelete, "/api/playlist/"+track.ID, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("double remove status = %d", rec.Code)
	}
	if srv.queue.Len() != 0 {
		t.Fatal("queue not reloaded after remove")
	}
}

func TestPlaybackConfigRoundTrip(t *testing.T) {
	srv, transport := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/config/playback", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPut, "/api/config/playback",
		`{"crossfade_secs":5,"silence_threshold":0.02,"silence_duration_secs":3,"recurring_intro_duck_volume":0.2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d body %s", rec.Code, rec.Body)
	}
	last := transport.cmds[len(transport.cmds)-1]
	if last.Type != playout.CmdUpdateConfig || last.Config.CrossfadeSecs != 5 {
		t.Fatalf("command = %+v", last)
	}

	// Invalid config is rejected before reaching the engine.
	before := len(transport.cmds)
	rec = doJSON(t, srv, http.MethodPut, "/api/config/playback", `{"crossfade_secs":-1}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid put status = %d", rec.Code)
	}
	if len(transport.cmds) != before {
		t.Fatal("invalid config sent to engine")
	}
}

func TestDirectiveEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/directives",
		`{"type":"overlay","path":"/jingles/id.mp3","at":"2099-01-01T00:00:00Z"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d body %s", rec.Code, rec.Body)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/directives", "")
	var pending []scheduler.Directive
	if err := json.Unmarshal(rec.Body.Bytes(), &pending); err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != created.ID {
		t.Fatalf("pending = %+v", pending)
	}

	if rec := doJSON(t, srv, http.MethodPost, "/api/directives", `{"type":"bogus"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bogus directive status = %d", rec.Code)
	}

	if rec := doJSON(t, srv, http.MethodDelete, "/api/directives/"+created.ID, ""); rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d", rec.Code)
	}
	if rec := doJSON(t, srv, http.MethodDelete, "/api/directives/"+created.ID, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("double cancel status = %d", rec.Code)
	}
}

func TestLogsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.logBuf.Add(logbuffer.Entry{Level: "info", Component: "playout", Message: "track started"})
	srv.logBuf.Add(logbuffer.Entry{Level: "error", Component: "api", Message: "boom"})

	rec := doJSON(t, srv, http.MethodGet, "/api/logs?level=error", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var entries []logbuffer.Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Message != "boom" {
		t.Fatalf("entries = %+v", entries)
	}

	if rec := doJSON(t, srv, http.MethodGet, "/api/logs?limit=nope", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d", rec.Code)
	}
}

func TestMetricsAndHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	if rec := doJSON(t, srv, http.MethodGet, "/metrics", ""); rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if rec := doJSON(t, srv, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
}
