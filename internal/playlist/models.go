/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playlist stores the ordered track queue and feeds it to the
// playout engine.
package playlist

import "time"

// Track is one queued audio file. Position is the play order, contiguous
// from zero. PlayedDuration is written back by the engine when the track
// finishes or is skipped.
type Track struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	Position       int    `gorm:"uniqueIndex"`
	Path           string `gorm:"index"`
	Title          string `gorm:"index"`
	Artist         string `gorm:"index"`
	Duration       time.Duration
	PlayedDuration time.Duration
	PlayCount      int
	LastPlayedAt   *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
