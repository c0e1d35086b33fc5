/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package audio provides sample-level analysis primitives: RMS level
// metering, peak hold, and sustained-silence detection. Samples are stereo
// float frames in [-1, 1], the same representation the decode path streams
// to the output device.
package audio

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// MinDB is the metering floor.
	MinDB = -60.0

	// DefaultMeterWindow is the RMS window for level metering.
	DefaultMeterWindow = 50 * time.Millisecond

	// DefaultPeakHold is how long a peak value is held before decaying.
	DefaultPeakHold = 3 * time.Second
)

// Tap consumes decoded samples as they pass through to the output device.
// Implementations must be cheap: Process runs on the audio streaming path.
type Tap interface {
	Process(samples [][2]float64, sampleRate int)
}

// DBFS converts a linear level in [0, 1] to decibels full scale, clamped to
// the metering floor.
func DBFS(level float64) float64 {
	if level <= 0 {
		return MinDB
	}
	return math.Max(20*math.Log10(level), MinDB)
}

// Meter accumulates a rolling sum of squares and publishes windowed RMS
// through a single atomic, so readers on other goroutines never block.
type Meter struct {
	window time.Duration

	mu          sync.Mutex
	sumSquares  float64
	sampleCount int
	heldPeak    float64
	heldPeakAt  time.Time

	levelBits atomic.Uint64
}

// NewMeter creates a level meter with the default window.
func NewMeter() *Meter {
	return &Meter{window: DefaultMeterWindow}
}

// Process implements Tap. Once a full window has accumulated, the RMS is
// published and the accumulator restarts.
func (m *Meter) Process(samples [][2]float64, sampleRate int) {
	if sampleRate <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for _, frame := range samples {
		m.sumSquares += frame[0]*frame[0] + frame[1]*frame[1]
		m.sampleCount++
		if peak := math.Max(math.Abs(frame[0]), math.Abs(frame[1])); peak >= m.heldPeak || now.Sub(m.heldPeakAt) > DefaultPeakHold {
			m.heldPeak = peak
			m.heldPeakAt = now
		}
	}

	windowSamples := int(m.window.Seconds() * float64(sampleRate))
	if windowSamples <= 0 || m.sampleCount < windowSamples {
		return
	}

	rms := math.Sqrt(m.sumSquares / float64(m.sampleCount*2))
	m.levelBits.Store(math.Float64bits(rms))
	m.sumSquares = 0
	m.sampleCount = 0
}

// Level returns the most recent windowed RMS. Lock-free.
func (m *Meter) Level() float64 {
	return math.Float64frombits(m.levelBits.Load())
}

// Peak returns the held peak sample magnitude.
func (m *Meter) Peak() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.heldPeak
}

// Reset clears the accumulator and the published level.
func (m *Meter) Reset() {
	m.mu.Lock()
	m.sumSquares = 0
	m.sampleCount = 0
	m.heldPeak = 0
	m.heldPeakAt = time.Time{}
	m.mu.Unlock()
	m.levelBits.Store(0)
}

var _ Tap = (*Meter)(nil)
