/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playlist

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/munin_audio/internal/playout"
)

// Queue adapts the store to the engine's track source. It serves reads from
// an in-memory snapshot so the engine loop never waits on the database;
// Reload refreshes the snapshot after playlist edits.
type Queue struct {
	store  *Store
	logger zerolog.Logger

	mu     sync.RWMutex
	tracks []Track
}

func NewQueue(store *Store, logger zerolog.Logger) (*Queue, error) {
	q := &Queue{
		store:  store,
		logger: logger.With().Str("component", "playlist").Logger(),
	}
	if err := q.Reload(); err != nil {
		return nil, err
	}
	return q, nil
}

// Reload replaces the snapshot with the current store contents.
func (q *Queue) Reload() error {
	tracks, err := q.store.List()
	if err != nil {
		return err
	}
	q.mu.Lock()
	q.tracks = tracks
	q.mu.Unlock()
	return nil
}

func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.tracks)
}

func (q *Queue) Track(index int) (playout.Track, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if index < 0 || index >= len(q.tracks) {
		return playout.Track{}, false
	}
	t := q.tracks[index]
	return playout.Track{
		Index:    index,
		Path:     t.Path,
		Title:    t.Title,
		Artist:   t.Artist,
		Duration: t.Duration,
	}, true
}

// InsertPath probes an audio file and inserts it at the given position,
// refreshing the snapshot. Used by scheduler insert directives.
func (q *Queue) InsertPath(position int, path string) error {
	duration, err := probeDuration(path)
	if err != nil {
		return err
	}
	artist, title := splitName(path)
	if _, err := q.store.Insert(position, path, title, artist, duration); err != nil {
		return err
	}
	return q.Reload()
}

// RecordPlayed persists the measured played duration. Failures are logged
// rather than returned: the engine cannot act on them.
func (q *Queue) RecordPlayed(index int, played time.Duration) {
	if err := q.store.RecordPlayed(index, played); err != nil {
		q.logger.Error().Err(err).Int("position", index).Msg("record played duration")
	}
}

var _ playout.TrackSource = (*Queue)(nil)
