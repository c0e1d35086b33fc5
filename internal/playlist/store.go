/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playlist

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("track not found")

// Store persists the playlist.
type Store struct {
	db *gorm.DB
}

func NewStore(database *gorm.DB) (*Store, error) {
	if err := database.AutoMigrate(&Track{}); err != nil {
		return nil, fmt.Errorf("migrate playlist: %w", err)
	}
	return &Store{db: database}, nil
}

// List returns all tracks in play order.
func (s *Store) List() ([]Track, error) {
	var tracks []Track
	if err := s.db.Order("position").Find(&tracks).Error; err != nil {
		return nil, err
	}
	return tracks, nil
}

// Get returns one track by ID.
func (s *Store) Get(id string) (Track, error) {
	var track Track
	err := s.db.First(&track, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Track{}, ErrNotFound
	}
	return track, err
}

// Append adds a track at the end of the playlist and returns it.
func (s *Store) Append(path, title, artist string, duration time.Duration) (Track, error) {
	track := Track{
		ID:       uuid.NewString(),
		Path:     path,
		Title:    title,
		Artist:   artist,
		Duration: duration,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Track{}).Count(&count).Error; err != nil {
			return err
		}
		track.Position = int(count)
		return tx.Create(&track).Error
	})
	return track, err
}

// Insert places a track at the given position, shifting later tracks down.
func (s *Store) Insert(position int, path, title, artist string, duration time.Duration) (Track, error) {
	track := Track{
		ID:       uuid.NewString(),
		Path:     path,
		Title:    title,
		Artist:   artist,
		Duration: duration,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Track{}).Count(&count).Error; err != nil {
			return err
		}
		if position < 0 || position > int(count) {
			position = int(count)
		}
		if err := tx.Model(&Track{}).
			Where("position >= ?", position).
			Update("position", gorm.Expr("position + 1")).Error; err != nil {
			return err
		}
		track.Position = position
		return tx.Create(&track).Error
	})
	return track, err
}

// Remove deletes a track and closes the position gap it leaves.
func (s *Store) Remove(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var track Track
		err := tx.First(&track, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := tx.Delete(&track).Error; err != nil {
			return err
		}
		return tx.Model(&Track{}).
			Where("position > ?", track.Position).
			Update("position", gorm.Expr("position - 1")).Error
	})
}

// Move changes a track's position, shifting the tracks in between.
func (s *Store) Move(id string, to int) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var track Track
		err := tx.First(&track, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&Track{}).Count(&count).Error; err != nil {
			return err
		}
		if to < 0 {
			to = 0
		}
		if to >= int(count) {
			to = int(count) - 1
		}
		from := track.Position
		if to == from {
			return nil
		}
		if to < from {
			err = tx.Model(&Track{}).
				Where("position >= ? AND position < ?", to, from).
				Update("position", gorm.Expr("position + 1")).Error
		} else {
			err = tx.Model(&Track{}).
				Where("position > ? AND position <= ?", from, to).
				Update("position", gorm.Expr("position - 1")).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&Track{}).Where("id = ?", id).Update("position", to).Error
	})
}

// Clear empties the playlist.
func (s *Store) Clear() error {
	return s.db.Where("1 = 1").Delete(&Track{}).Error
}

// RecordPlayed writes back the measured played duration for the track at
// the given position.
func (s *Store) RecordPlayed(position int, played time.Duration) error {
	now := time.Now()
	return s.db.Model(&Track{}).
		Where("position = ?", position).
		Updates(map[string]any{
			"played_duration": played,
			"play_count":      gorm.Expr("play_count + 1"),
			"last_played_at":  &now,
		}).Error
}
