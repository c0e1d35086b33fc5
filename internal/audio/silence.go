/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audio

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultSilenceWindow is the RMS evaluation window for silence detection.
const DefaultSilenceWindow = 100 * time.Millisecond

// SilenceDetector tracks sustained sub-threshold signal in the decoded
// sample stream. The playback loop polls Tripped once per tick; detection
// itself runs inline with decoding and adds no output latency.
//
// Any single window at or above the threshold resets the silence run to
// zero. A trigger duration of zero disables the detector entirely.
type SilenceDetector struct {
	mu          sync.Mutex
	threshold   float64
	trigger     time.Duration
	window      time.Duration
	sumSquares  float64
	sampleCount int
	silentFor   time.Duration

	tripped atomic.Bool
}

// NewSilenceDetector creates a detector. threshold is linear RMS in [0, 1];
// trigger is the sustained-silence duration that raises the flag.
func NewSilenceDetector(threshold float64, trigger time.Duration) *SilenceDetector {
	return &SilenceDetector{
		threshold: threshold,
		trigger:   trigger,
		window:    DefaultSilenceWindow,
	}
}

// Configure replaces the thresholds. The current silence run is kept so a
// config update mid-track does not mask ongoing dead air.
func (d *SilenceDetector) Configure(threshold float64, trigger time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.threshold = threshold
	d.trigger = trigger
	if trigger <= 0 {
		d.silentFor = 0
		d.tripped.Store(false)
	}
}

// Process implements Tap.
func (d *SilenceDetector) Process(samples [][2]float64, sampleRate int) {
	if sampleRate <= 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.trigger <= 0 {
		return
	}

	for _, frame := range samples {
		d.sumSquares += frame[0]*frame[0] + frame[1]*frame[1]
		d.sampleCount++
	}

	windowSamples := int(d.window.Seconds() * float64(sampleRate))
	if windowSamples <= 0 || d.sampleCount < windowSamples {
		return
	}

	rms := math.Sqrt(d.sumSquares / float64(d.sampleCount*2))
	elapsed := time.Duration(float64(d.sampleCount) / float64(sampleRate) * float64(time.Second))
	d.sumSquares = 0
	d.sampleCount = 0

	if rms < d.threshold {
		d.silentFor += elapsed
		if d.silentFor >= d.trigger {
			d.tripped.Store(true)
		}
	} else {
		d.silentFor = 0
	}
}

// Tripped reports whether sustained silence has been detected. The flag
// stays raised until Reset so the playback loop cannot miss it between
// ticks. Lock-free.
func (d *SilenceDetector) Tripped() bool {
	return d.tripped.Load()
}

// SilentFor returns the current silence run length.
func (d *SilenceDetector) SilentFor() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.silentFor
}

// Reset clears the accumulator and flag, typically at track start or after
// an auto-skip.
func (d *SilenceDetector) Reset() {
	d.mu.Lock()
	d.sumSquares = 0
	d.sampleCount = 0
	d.silentFor = 0
	d.mu.Unlock()
	d.tripped.Store(false)
}

var _ Tap = (*SilenceDetector)(nil)
