/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/munin_audio/internal/audio"
)

// overlay is a short-lived secondary sink, used for intro files. Overlays
// mix over the main sink and are reaped once drained.
type overlay struct {
	id   string
	path string
	sink Sink
}

// Player owns the sinks on a device: one main sink for the queue plus any
// number of overlays. All methods are called from the engine goroutine only.
type Player struct {
	device   Device
	logger   zerolog.Logger
	main     Sink
	overlays []*overlay
}

func NewPlayer(device Device, logger zerolog.Logger) *Player {
	return &Player{
		device: device,
		logger: logger.With().Str("component", "player").Logger(),
	}
}

// CreateSink makes a detached sink. The engine uses this for the incoming
// side of a crossfade before promoting it to main.
func (p *Player) CreateSink(taps ...audio.Tap) (Sink, error) {
	return p.device.NewSink(taps...)
}

func (p *Player) Main() Sink { return p.main }

// SetMain installs a new main sink without stopping the old one. The caller
// keeps the old sink alive for the remainder of a crossfade.
func (p *Player) SetMain(s Sink) { p.main = s }

// StopMain stops and detaches the main sink.
func (p *Player) StopMain() {
	if p.main == nil {
		return
	}
	p.main.Stop()
	p.main = nil
}

func (p *Player) PauseMain() {
	if p.main != nil {
		p.main.Pause()
	}
}

func (p *Player) ResumeMain() {
	if p.main != nil {
		p.main.Resume()
	}
}

func (p *Player) SeekMain(pos time.Duration) error {
	if p.main == nil {
		return nil
	}
	return p.main.Seek(pos)
}

// PlayOverlay starts path on a fresh overlay sink at the given volume.
func (p *Player) PlayOverlay(path string, volume float64, taps ...audio.Tap) (Sink, error) {
	sink, err := p.device.NewSink(taps...)
	if err != nil {
		return nil, err
	}
	if err := sink.Play(path, 0); err != nil {
		sink.Stop()
		return nil, err
	}
	sink.SetVolume(volume)
	ov := &overlay{id: uuid.NewString(), path: path, sink: sink}
	p.overlays = append(p.overlays, ov)
	p.logger.Debug().Str("overlay_id", ov.id).Str("path", path).Msg("overlay started")
	return sink, nil
}

// OverlayActive reports whether any overlay is still producing audio.
func (p *Player) OverlayActive() bool {
	for _, ov := range p.overlays {
		if !ov.sink.Empty() {
			return true
		}
	}
	return false
}

// ReapOverlays stops and drops overlays that have drained.
func (p *Player) ReapOverlays() {
	kept := p.overlays[:0]
	for _, ov := range p.overlays {
		if ov.sink.Empty() {
			ov.sink.Stop()
			p.logger.Debug().Str("overlay_id", ov.id).Msg("overlay reaped")
			continue
		}
		kept = append(kept, ov)
	}
	p.overlays = kept
}

// StopOverlays stops every overlay immediately.
func (p *Player) StopOverlays() {
	for _, ov := range p.overlays {
		ov.sink.Stop()
	}
	p.overlays = nil
}

// StopAll tears down the main sink and all overlays.
func (p *Player) StopAll() {
	p.StopMain()
	p.StopOverlays()
}
