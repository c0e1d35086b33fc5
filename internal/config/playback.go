/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Playback holds the per-session playout parameters. It is read once at
// session start and replaced wholesale by an UpdateConfig command; the engine
// never mutates it in place.
type Playback struct {
	CrossfadeSecs              float64 `yaml:"crossfade_secs" json:"crossfade_secs" validate:"gte=0,lte=60"`
	SilenceThreshold           float64 `yaml:"silence_threshold" json:"silence_threshold" validate:"gte=0,lte=1"`
	SilenceDurationSecs        float64 `yaml:"silence_duration_secs" json:"silence_duration_secs" validate:"gte=0,lte=600"`
	IntrosFolder               string  `yaml:"intros_folder" json:"intros_folder"`
	RecurringIntroIntervalSecs float64 `yaml:"recurring_intro_interval_secs" json:"recurring_intro_interval_secs" validate:"gte=0"`
	RecurringIntroDuckVolume   float64 `yaml:"recurring_intro_duck_volume" json:"recurring_intro_duck_volume" validate:"gte=0,lte=1"`
}

// DefaultPlayback returns the playback defaults used when no config file exists.
func DefaultPlayback() Playback {
	return Playback{
		CrossfadeSecs:            3,
		SilenceThreshold:         0.01,
		SilenceDurationSecs:      0, // disabled
		RecurringIntroDuckVolume: 0.3,
	}
}

var validate = validator.New()

// Validate checks value ranges. A failure maps to the ConfigInvalid error class.
func (p Playback) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("playback config invalid: %w", err)
	}
	return nil
}

// Crossfade returns the crossfade window as a duration.
func (p Playback) Crossfade() time.Duration {
	return time.Duration(p.CrossfadeSecs * float64(time.Second))
}

// SilenceDuration returns the sustained-silence trigger window. Zero disables
// silence detection.
func (p Playback) SilenceDuration() time.Duration {
	return time.Duration(p.SilenceDurationSecs * float64(time.Second))
}

// RecurringIntroInterval returns the recurring overlay period. Zero disables it.
func (p Playback) RecurringIntroInterval() time.Duration {
	return time.Duration(p.RecurringIntroIntervalSecs * float64(time.Second))
}

// LoadPlayback reads and validates the playback config file. A missing file
// yields the defaults.
func LoadPlayback(path string) (Playback, error) {
	p := DefaultPlayback()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return p, fmt.Errorf("read playback config: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse playback config: %w", err)
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// SavePlayback writes the playback config file.
func SavePlayback(path string, p Playback) error {
	if err := p.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal playback config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
