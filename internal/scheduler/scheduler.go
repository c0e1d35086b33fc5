/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scheduler translates timed directives into transport commands.
package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/munin_audio/internal/playout"
)

// DirectiveType enumerates the scheduler's directives.
type DirectiveType string

const (
	// DirectiveOverlay plays a file on an independent overlay sink without
	// touching the main transport.
	DirectiveOverlay DirectiveType = "overlay"
	// DirectiveStopMode hard-stops the main program and starts the given
	// queue index as the new main track.
	DirectiveStopMode DirectiveType = "stop_mode"
	// DirectiveInsert adds a track to the playlist ahead of the playout
	// engine; it never touches transport state.
	DirectiveInsert DirectiveType = "insert"
)

var ErrUnknownDirective = errors.New("unknown directive type")

// Directive is one scheduled action.
type Directive struct {
	ID         string        `json:"id"`
	Type       DirectiveType `json:"type"`
	At         time.Time     `json:"at"`
	Path       string        `json:"path,omitempty"`
	TrackIndex int           `json:"track_index,omitempty"`
	Position   int           `json:"position,omitempty"`
}

// Transport is the command surface the runner drives. Satisfied by the
// playout engine.
type Transport interface {
	Send(cmd playout.Command) error
}

// Inserter is the playlist surface for insert directives.
type Inserter interface {
	InsertPath(position int, path string) error
}

// Runner holds pending directives and fires them at their scheduled time.
// The tick loop mirrors the playout engine: coarse polling rather than one
// timer per directive keeps cancellation trivial.
type Runner struct {
	transport Transport
	inserter  Inserter
	logger    zerolog.Logger
	tick      time.Duration
	now       func() time.Time

	mu      sync.Mutex
	pending []Directive
}

func NewRunner(transport Transport, inserter Inserter, logger zerolog.Logger) *Runner {
	return &Runner{
		transport: transport,
		inserter:  inserter,
		logger:    logger.With().Str("component", "scheduler").Logger(),
		tick:      time.Second,
		now:       time.Now,
	}
}

// Add schedules a directive. A zero At means "now". The assigned ID is
// returned for later cancellation.
func (r *Runner) Add(d Directive) (string, error) {
	switch d.Type {
	case DirectiveOverlay, DirectiveStopMode, DirectiveInsert:
	default:
		return "", ErrUnknownDirective
	}
	d.ID = uuid.NewString()
	if d.At.IsZero() {
		d.At = r.now()
	}
	r.mu.Lock()
	r.pending = append(r.pending, d)
	sort.SliceStable(r.pending, func(i, j int) bool {
		return r.pending[i].At.Before(r.pending[j].At)
	})
	r.mu.Unlock()
	r.logger.Info().Str("directive", string(d.Type)).Time("at", d.At).Msg("directive scheduled")
	return d.ID, nil
}

// Cancel removes a pending directive.
func (r *Runner) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, d := range r.pending {
		if d.ID == id {
			r.pending = append(r.pending[:i], r.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Pending returns the directives not yet fired, soonest first.
func (r *Runner) Pending() []Directive {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Directive(nil), r.pending...)
}

// Run polls for due directives until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.fireDue(r.now())
		}
	}
}

// fireDue executes every directive whose time has come.
func (r *Runner) fireDue(now time.Time) {
	r.mu.Lock()
	var due []Directive
	for len(r.pending) > 0 && !r.pending[0].At.After(now) {
		due = append(due, r.pending[0])
		r.pending = r.pending[1:]
	}
	r.mu.Unlock()

	for _, d := range due {
		if err := r.execute(d); err != nil {
			r.logger.Error().Err(err).Str("directive", string(d.Type)).Msg("directive failed")
		}
	}
}

func (r *Runner) execute(d Directive) error {
	switch d.Type {
	case DirectiveOverlay:
		return r.transport.Send(playout.Overlay(d.Path))
	case DirectiveStopMode:
		if err := r.transport.Send(playout.Stop()); err != nil {
			return err
		}
		return r.transport.Send(playout.Play(d.TrackIndex))
	case DirectiveInsert:
		return r.inserter.InsertPath(d.Position, d.Path)
	default:
		return ErrUnknownDirective
	}
}
