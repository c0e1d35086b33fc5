/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playout implements the playback transport: sinks, crossfades,
// silence auto-skip, intro overlays and the engine worker that owns them.
//
// A single goroutine owns every sink and all transport state. The control
// plane talks to it only through Send; the engine talks back only through
// the event bus, the transport snapshot and two atomics (level, silence).
package playout

import (
	"context"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/munin_audio/internal/audio"
	"github.com/friendsincode/munin_audio/internal/config"
	"github.com/friendsincode/munin_audio/internal/events"
	"github.com/friendsincode/munin_audio/internal/telemetry"
)

// DefaultTick is the worker loop interval. Command latency and fade ramp
// resolution are both bounded by one tick.
const DefaultTick = 50 * time.Millisecond

const commandBuffer = 64

// duckState tracks a recurring-intro overlay that lowered the main volume.
type duckState struct {
	overlay Sink
	restore float64
}

// Engine is the playout worker. All fields below the channel block are
// owned by the Run goroutine and must not be touched from outside it.
type Engine struct {
	queue    TrackSource
	bus      *events.Bus
	metrics  *telemetry.Metrics
	resolver *IntroResolver
	logger   zerolog.Logger
	tick     time.Duration
	now      func() time.Time

	commands chan Command
	done     chan struct{}
	closed   atomic.Bool

	levelBits atomic.Uint64
	detector  *audio.SilenceDetector
	snap      atomic.Pointer[TransportSnapshot]

	cfg    config.Playback
	state  State
	index  int
	player *Player
	track  Track

	xfade    *crossfadeSession
	seqRetry bool

	pendingIntro Sink
	pendingTrack *Track
	prevArtist   string

	duck          *duckState
	nextRecurring time.Duration

	pausedFrom State
	pausedAt   time.Time
}

func New(device Device, queue TrackSource, cfg config.Playback, bus *events.Bus, metrics *telemetry.Metrics, resolver *IntroResolver, logger zerolog.Logger) *Engine {
	log := logger.With().Str("component", "playout").Logger()
	return &Engine{
		queue:    queue,
		bus:      bus,
		metrics:  metrics,
		resolver: resolver,
		logger:   log,
		tick:     DefaultTick,
		now:      time.Now,
		commands: make(chan Command, commandBuffer),
		done:     make(chan struct{}),
		detector: audio.NewSilenceDetector(cfg.SilenceThreshold, cfg.SilenceDuration()),
		cfg:      cfg,
		state:    StateIdle,
		player:   NewPlayer(device, log),
	}
}

// Send queues a command for the worker. It never blocks: a full channel
// returns ErrCommandBacklog and a shut-down engine returns ErrEngineClosed.
func (e *Engine) Send(cmd Command) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	select {
	case <-e.done:
		return ErrEngineClosed
	case e.commands <- cmd:
		return nil
	default:
		return ErrCommandBacklog
	}
}

// Events returns the bus the engine publishes on.
func (e *Engine) Events() *events.Bus { return e.bus }

// Level returns the most recent RMS of the audible main program. Lock-free.
func (e *Engine) Level() float64 {
	return math.Float64frombits(e.levelBits.Load())
}

// Silent reports whether the silence detector has tripped. Lock-free.
func (e *Engine) Silent() bool { return e.detector.Tripped() }

// Snapshot returns a point-in-time transport view.
func (e *Engine) Snapshot() TransportSnapshot {
	if s := e.snap.Load(); s != nil {
		return *s
	}
	return TransportSnapshot{State: StateIdle.String()}
}

// Done is closed when the worker has exited.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Run is the worker loop. It owns all playback state until ctx is cancelled
// or a Shutdown command arrives.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	e.logger.Info().Dur("tick", e.tick).Msg("playout engine running")
	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return
		case cmd := <-e.commands:
			if cmd.Type == CmdShutdown {
				e.metrics.Commands.WithLabelValues(cmd.Type.String()).Inc()
				e.shutdown()
				return
			}
			e.handle(cmd)
		case <-ticker.C:
			e.step(e.now())
		}
		e.publishSnapshot()
	}
}

func (e *Engine) shutdown() {
	e.closed.Store(true)
	e.stopPlayback()
	e.player.StopOverlays()
	e.state = StateStopped
	close(e.done)
	e.logger.Info().Msg("playout engine stopped")
}

func (e *Engine) handle(cmd Command) {
	e.metrics.Commands.WithLabelValues(cmd.Type.String()).Inc()
	switch cmd.Type {
	case CmdPlay:
		e.handlePlay(cmd.TrackIndex)
	case CmdStop:
		e.handleStop()
	case CmdPause:
		e.handlePause()
	case CmdResume:
		e.handleResume()
	case CmdSkip:
		e.handleSkip()
	case CmdSeek:
		e.handleSeek(cmd.Position)
	case CmdOverlay:
		e.handleOverlay(cmd.Path)
	case CmdUpdateConfig:
		e.handleUpdateConfig(cmd.Config)
	}
}

func (e *Engine) handlePlay(index int) {
	if index < 0 {
		index = e.index
	}
	track, ok := e.queue.Track(index)
	if !ok {
		e.emitError("play: no track at index", index)
		return
	}
	e.stopPlayback()
	e.startTrack(track)
}

func (e *Engine) handleStop() {
	e.stopPlayback()
	e.player.StopOverlays()
	e.prevArtist = ""
	e.setState(StateStopped)
}

func (e *Engine) handlePause() {
	if e.state != StatePlaying && e.state != StateCrossfading {
		return
	}
	if e.xfade != nil {
		e.xfade.pause()
	} else {
		e.player.PauseMain()
	}
	if e.pendingIntro != nil {
		e.pendingIntro.Pause()
	}
	if e.duck != nil {
		e.duck.overlay.Pause()
	}
	e.pausedFrom = e.state
	e.pausedAt = e.now()
	e.setState(StatePaused)
}

func (e *Engine) handleResume() {
	if e.state != StatePaused {
		return
	}
	pausedFor := e.now().Sub(e.pausedAt)
	if e.xfade != nil {
		e.xfade.shift(pausedFor)
		e.xfade.resume()
	} else {
		e.player.ResumeMain()
	}
	if e.pendingIntro != nil {
		e.pendingIntro.Resume()
	}
	if e.duck != nil {
		e.duck.overlay.Resume()
	}
	e.setState(e.pausedFrom)
}

func (e *Engine) handleSkip() {
	if e.state == StateIdle || e.state == StateStopped {
		return
	}
	if e.xfade != nil && e.xfade.incoming != nil {
		// Mid-crossfade a skip just finishes the fade early.
		e.promote()
		return
	}
	e.finishCurrent(false)
	e.advance()
}

func (e *Engine) handleSeek(pos time.Duration) {
	if err := e.player.SeekMain(pos); err != nil {
		e.emitError("seek: "+err.Error(), e.index)
		return
	}
	e.detector.Reset()
}

func (e *Engine) handleOverlay(path string) {
	if _, err := e.player.PlayOverlay(path, 1); err != nil {
		e.emitError("overlay: "+err.Error(), e.index)
	}
}

func (e *Engine) handleUpdateConfig(cfg *config.Playback) {
	if cfg == nil {
		return
	}
	if err := cfg.Validate(); err != nil {
		e.emitError("config rejected: "+err.Error(), e.index)
		return
	}
	e.cfg = *cfg
	e.detector.Configure(cfg.SilenceThreshold, cfg.SilenceDuration())
	e.logger.Info().
		Float64("crossfade_secs", cfg.CrossfadeSecs).
		Float64("silence_threshold", cfg.SilenceThreshold).
		Msg("playback config updated")
}

// step runs one tick of bookkeeping. Order matters: a pending intro defers
// everything else for the main program, silence skip preempts the crossfade,
// and the level sample comes last so it reflects this tick's changes.
func (e *Engine) step(now time.Time) {
	switch e.state {
	case StateIdle, StateStopped, StatePaused:
		e.player.ReapOverlays()
		return
	}

	if e.pendingIntro != nil {
		if e.pendingIntro.Empty() {
			e.player.ReapOverlays()
			track := *e.pendingTrack
			e.pendingIntro = nil
			e.pendingTrack = nil
			e.startMain(track, 0)
		} else {
			e.publishLevel(e.pendingIntro.RMS())
		}
		return
	}

	if e.detector.Tripped() {
		e.silenceSkip()
		return
	}

	if e.xfade != nil {
		if e.xfade.step(now) {
			e.promote()
		}
	} else if main := e.player.Main(); main != nil {
		e.stepRecurring(main)
		if main.Empty() {
			e.finishCurrent(true)
			e.advance()
		} else {
			e.maybeStartCrossfade(now, main)
		}
	}

	e.sampleLevel()
	e.player.ReapOverlays()
}

// stepRecurring drives the periodic intro overlay and its duck/restore
// cycle for the current track.
func (e *Engine) stepRecurring(main Sink) {
	if e.duck != nil {
		if e.duck.overlay.Empty() {
			main.SetVolume(e.duck.restore)
			e.duck = nil
		}
		return
	}
	interval := e.cfg.RecurringIntroInterval()
	if interval <= 0 || e.nextRecurring <= 0 {
		return
	}
	elapsed := main.Elapsed()
	if elapsed < e.nextRecurring {
		return
	}
	// Snap past the current position so a forward seek fires at most one
	// intro instead of replaying every interval it jumped over.
	e.nextRecurring = (elapsed/interval + 1) * interval
	path := e.resolver.Resolve(e.cfg.IntrosFolder, e.track.Artist)
	if path == "" {
		return
	}
	overlay, err := e.player.PlayOverlay(path, 1)
	if err != nil {
		e.emitError("recurring intro: "+err.Error(), e.index)
		return
	}
	e.duck = &duckState{overlay: overlay, restore: main.Volume()}
	main.SetVolume(e.cfg.RecurringIntroDuckVolume)
	e.metrics.IntrosPlayed.Inc()
	e.bus.Publish(events.Event{
		Type:       events.TypeIntroStarted,
		TrackIndex: e.index,
		Artist:     e.track.Artist,
	})
}

// maybeStartCrossfade begins the fade window once the current track is
// within crossfade_secs of its end. Ineligible tracks, sequential-retry
// fallback and a zero crossfade all mean the transition waits for empty.
func (e *Engine) maybeStartCrossfade(now time.Time, main Sink) {
	fade := e.cfg.Crossfade()
	if fade <= 0 || e.seqRetry {
		return
	}
	if !crossfadeEligible(e.track.Duration, fade) {
		return
	}
	if main.Elapsed() < e.track.Duration-fade {
		return
	}

	// A crossfade takes over the main volume: an active duck would fight
	// the ramp, so the overlay is cut and no restore happens.
	if e.duck != nil {
		e.duck.overlay.Stop()
		e.duck = nil
		e.player.ReapOverlays()
	}

	next, ok := e.queue.Track(e.index + 1)
	if !ok {
		// Last track: fade out with no incoming sink.
		e.xfade = &crossfadeSession{
			outgoing: main,
			outTrack: e.track,
			start:    now,
			duration: fade,
		}
		e.setState(StateCrossfading)
		return
	}

	incoming, err := e.player.CreateSink(e.detector)
	if err != nil {
		e.emitError("crossfade: "+err.Error(), next.Index)
		e.seqRetry = true
		return
	}
	if err := incoming.Play(next.Path, fade); err != nil {
		incoming.Stop()
		e.emitError("crossfade: "+err.Error(), next.Index)
		e.seqRetry = true
		return
	}

	e.xfade = &crossfadeSession{
		outgoing: main,
		incoming: incoming,
		outTrack: e.track,
		inTrack:  next,
		start:    now,
		duration: fade,
	}
	e.setState(StateCrossfading)
	e.metrics.Crossfades.Inc()
	e.bus.Publish(events.Event{
		Type:       events.TypeTrackStarted,
		TrackIndex: next.Index,
		Artist:     next.Artist,
		Title:      next.Title,
	})
	e.logger.Debug().Int("from", e.index).Int("to", next.Index).Dur("fade", fade).Msg("crossfade started")
}

// promote finishes the crossfade: the outgoing sink is recorded and
// discarded and the incoming sink, if any, becomes the main reference.
func (e *Engine) promote() {
	x := e.xfade
	e.xfade = nil

	played := x.outgoing.Elapsed()
	x.outgoing.Stop()
	e.queue.RecordPlayed(x.outTrack.Index, played)
	e.metrics.TracksPlayed.Inc()
	e.bus.Publish(events.Event{
		Type:           events.TypeTrackFinished,
		TrackIndex:     x.outTrack.Index,
		PlayedDuration: played,
	})

	if x.incoming == nil {
		// End of queue after a fade-out.
		e.player.SetMain(nil)
		e.resetLevel()
		e.setState(StateStopped)
		return
	}

	x.incoming.SetVolume(1)
	e.player.SetMain(x.incoming)
	e.track = x.inTrack
	e.index = x.inTrack.Index
	e.prevArtist = x.inTrack.Artist
	e.detector.Reset()
	e.resetRecurring()
	e.seqRetry = false
	e.setState(StatePlaying)
}

// silenceSkip treats sustained dead air as an early track finish.
func (e *Engine) silenceSkip() {
	index := e.index
	e.metrics.SilenceSkips.Inc()
	e.bus.Publish(events.Event{
		Type:       events.TypeSilenceSkipped,
		TrackIndex: index,
		Artist:     e.track.Artist,
		Title:      e.track.Title,
	})
	e.logger.Info().Int("track", index).Msg("silence detected, skipping")
	e.finishCurrent(false)
	e.advance()
}

// finishCurrent stops the main program and records the played duration.
// Callers passing emitFinished=false have already published their own event.
func (e *Engine) finishCurrent(emitFinished bool) {
	var played time.Duration
	if main := e.player.Main(); main != nil {
		played = main.Elapsed()
	}
	if e.xfade != nil {
		e.xfade.abort()
		e.xfade = nil
	}
	if e.duck != nil {
		e.duck.overlay.Stop()
		e.duck = nil
	}
	if e.pendingIntro != nil {
		e.pendingIntro.Stop()
		e.pendingIntro = nil
		e.pendingTrack = nil
	}
	e.player.StopMain()
	e.queue.RecordPlayed(e.index, played)
	e.metrics.TracksPlayed.Inc()
	if emitFinished {
		e.bus.Publish(events.Event{
			Type:           events.TypeTrackFinished,
			TrackIndex:     e.index,
			PlayedDuration: played,
		})
	}
}

// advance moves to the next queued track or stops at the end of the queue.
func (e *Engine) advance() {
	e.seqRetry = false
	next, ok := e.queue.Track(e.index + 1)
	if !ok {
		e.resetLevel()
		e.setState(StateStopped)
		return
	}
	e.startTrack(next)
}

// startTrack resolves the one-shot intro and then starts the track. When an
// intro applies, the main start is deferred until the overlay drains; the
// tick loop watches pendingIntro for that.
func (e *Engine) startTrack(track Track) {
	introPath := ""
	if !sameArtist(track.Artist, e.prevArtist) {
		introPath = e.resolver.Resolve(e.cfg.IntrosFolder, track.Artist)
	}
	e.prevArtist = track.Artist

	if introPath != "" {
		overlay, err := e.player.PlayOverlay(introPath, 1)
		if err == nil {
			e.pendingIntro = overlay
			e.pendingTrack = &track
			e.index = track.Index
			e.track = track
			e.metrics.IntrosPlayed.Inc()
			e.bus.Publish(events.Event{
				Type:       events.TypeIntroStarted,
				TrackIndex: track.Index,
				Artist:     track.Artist,
			})
			e.setState(StatePlaying)
			return
		}
		e.emitError("intro: "+err.Error(), track.Index)
	}

	e.startMain(track, 0)
}

// startMain creates the main sink and begins the track. Tracks that fail to
// open are reported and skipped over.
func (e *Engine) startMain(track Track, fadeIn time.Duration) {
	for {
		sink, err := e.player.CreateSink(e.detector)
		if err != nil {
			e.emitError("device: "+err.Error(), track.Index)
			e.resetLevel()
			e.setState(StateStopped)
			return
		}
		err = sink.Play(track.Path, fadeIn)
		if err == nil {
			e.player.SetMain(sink)
			e.index = track.Index
			e.track = track
			e.detector.Reset()
			e.resetRecurring()
			e.seqRetry = false
			e.setState(StatePlaying)
			e.bus.Publish(events.Event{
				Type:       events.TypeTrackStarted,
				TrackIndex: track.Index,
				Artist:     track.Artist,
				Title:      track.Title,
			})
			e.logger.Info().Int("track", track.Index).Str("title", track.Title).Msg("track started")
			return
		}

		sink.Stop()
		e.emitError("play: "+err.Error(), track.Index)
		next, ok := e.queue.Track(track.Index + 1)
		if !ok {
			e.index = track.Index
			e.resetLevel()
			e.setState(StateStopped)
			return
		}
		track = next
		fadeIn = 0
	}
}

// stopPlayback tears down the main program (crossfade included) without
// touching scheduler overlays.
func (e *Engine) stopPlayback() {
	if e.xfade != nil {
		if e.xfade.incoming != nil {
			e.xfade.incoming.Stop()
		}
		e.xfade = nil
	}
	if e.duck != nil {
		e.duck.overlay.Stop()
		e.duck = nil
	}
	if e.pendingIntro != nil {
		e.pendingIntro.Stop()
		e.pendingIntro = nil
		e.pendingTrack = nil
	}
	e.player.StopMain()
	e.seqRetry = false
	e.detector.Reset()
	e.resetLevel()
}

func (e *Engine) resetRecurring() {
	e.nextRecurring = 0
	if interval := e.cfg.RecurringIntroInterval(); interval > 0 {
		e.nextRecurring = interval
	}
}

// sampleLevel publishes the RMS of whichever sink is the audible main
// program. During a crossfade the louder side is canonical.
func (e *Engine) sampleLevel() {
	var level float64
	if e.xfade != nil {
		level = e.xfade.outgoing.RMS()
		if e.xfade.incoming != nil && e.xfade.incoming.Volume() > e.xfade.outgoing.Volume() {
			level = e.xfade.incoming.RMS()
		}
	} else if main := e.player.Main(); main != nil {
		level = main.RMS()
	}
	e.publishLevel(level)
}

func (e *Engine) publishLevel(level float64) {
	e.levelBits.Store(math.Float64bits(level))
	e.metrics.LevelRMS.Set(level)
	e.bus.Publish(events.Event{Type: events.TypeLevelUpdate, RMS: level})
}

func (e *Engine) resetLevel() {
	e.levelBits.Store(0)
	e.metrics.LevelRMS.Set(0)
}

func (e *Engine) setState(s State) {
	if e.state == s {
		return
	}
	e.state = s
	e.bus.Publish(events.Event{Type: events.TypeStateChanged, State: s.String()})
}

func (e *Engine) emitError(msg string, index int) {
	e.logger.Error().Int("track", index).Msg(msg)
	e.bus.Publish(events.Event{Type: events.TypeError, TrackIndex: index, Message: msg})
}

func (e *Engine) publishSnapshot() {
	snap := TransportSnapshot{
		State:      e.state.String(),
		IsPlaying:  e.state == StatePlaying || e.state == StateCrossfading,
		IsPaused:   e.state == StatePaused,
		TrackIndex: e.index,
	}
	if e.state != StateIdle && e.state != StateStopped {
		snap.Artist = e.track.Artist
		snap.Title = e.track.Title
		snap.Duration = e.track.Duration
		if main := e.player.Main(); main != nil {
			snap.Elapsed = main.Elapsed()
		}
		if next, ok := e.queue.Track(e.index + 1); ok {
			snap.NextArtist = next.Artist
			snap.NextTitle = next.Title
		}
	}
	e.snap.Store(&snap)
}

func sameArtist(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.EqualFold(a, b)
}
