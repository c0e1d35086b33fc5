/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	"github.com/rs/zerolog"

	"github.com/friendsincode/munin_audio/internal/audio"
)

// SupportedExtensions lists the decodable file extensions, also used for
// intro file resolution.
var SupportedExtensions = []string{".mp3", ".wav", ".flac", ".ogg", ".oga"}

// Sink is an independently controllable audio output channel: it decodes one
// file and streams it to the shared output device. Sinks are created and
// driven exclusively by the engine goroutine.
type Sink interface {
	// Play decodes path and begins streaming. With fadeIn > 0 the sink
	// starts at volume 0 and the caller ramps it up.
	Play(path string, fadeIn time.Duration) error
	SetVolume(v float64)
	Volume() float64
	Pause()
	Resume()
	Paused() bool
	Seek(pos time.Duration) error
	Elapsed() time.Duration
	Duration() time.Duration
	// RMS is the most recent windowed level of this sink's decoded stream.
	RMS() float64
	// Empty reports whether decoding and output are exhausted.
	Empty() bool
	Stop()
}

// Device creates sinks bound to the shared audio output.
type Device interface {
	NewSink(taps ...audio.Tap) (Sink, error)
	Close() error
}

// SpeakerDevice is the production Device backed by the beep speaker. All
// sinks it creates are mixed onto one output stream.
type SpeakerDevice struct {
	sampleRate beep.SampleRate
	logger     zerolog.Logger
}

// OpenSpeaker initialises the audio device. Failure here is a DeviceFailure:
// there is no automatic retry.
func OpenSpeaker(sampleRate beep.SampleRate, buffer time.Duration, logger zerolog.Logger) (*SpeakerDevice, error) {
	if err := speaker.Init(sampleRate, sampleRate.N(buffer)); err != nil {
		return nil, fmt.Errorf("%w: init speaker: %v", ErrDeviceFailure, err)
	}
	return &SpeakerDevice{
		sampleRate: sampleRate,
		logger:     logger.With().Str("component", "speaker").Logger(),
	}, nil
}

// NewSink returns a sink mixed onto this device. Extra taps observe the
// decoded sample stream ahead of resampling and volume control.
func (d *SpeakerDevice) NewSink(taps ...audio.Tap) (Sink, error) {
	return &speakerSink{dev: d, meter: audio.NewMeter(), taps: taps}, nil
}

// Close shuts the speaker down.
func (d *SpeakerDevice) Close() error {
	speaker.Close()
	return nil
}

type speakerSink struct {
	dev   *SpeakerDevice
	meter *audio.Meter
	taps  []audio.Tap

	mu      sync.Mutex
	file    *os.File
	stream  beep.StreamSeekCloser
	format  beep.Format
	ctrl    *beep.Ctrl
	vol     *effects.Volume
	gain    float64
	playing bool
	stopped bool

	drained atomic.Bool
}

func (s *speakerSink) Play(path string, fadeIn time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing {
		return fmt.Errorf("sink already playing %q", s.file.Name())
	}

	file, stream, format, err := decodeFile(path)
	if err != nil {
		return err
	}

	s.file = file
	s.stream = stream
	s.format = format
	s.gain = 1
	if fadeIn > 0 {
		s.gain = 0
	}

	var chain beep.Streamer = &tapStreamer{
		inner:      stream,
		sampleRate: int(format.SampleRate),
		taps:       append([]audio.Tap{s.meter}, s.taps...),
	}
	if format.SampleRate != s.dev.sampleRate {
		chain = beep.Resample(4, format.SampleRate, s.dev.sampleRate, chain)
	}
	s.vol = &effects.Volume{Streamer: chain, Base: 2}
	applyGain(s.vol, s.gain)
	s.ctrl = &beep.Ctrl{Streamer: s.vol}
	s.playing = true

	speaker.Play(beep.Seq(s.ctrl, beep.Callback(func() {
		s.drained.Store(true)
	})))

	s.dev.logger.Debug().Str("path", path).Dur("fade_in", fadeIn).Msg("sink playing")
	return nil
}

func (s *speakerSink) SetVolume(v float64) {
	v = math.Min(1, math.Max(0, v))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gain = v
	if s.vol == nil {
		return
	}
	speaker.Lock()
	applyGain(s.vol, v)
	speaker.Unlock()
}

func (s *speakerSink) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gain
}

func (s *speakerSink) Pause() { s.setPaused(true) }

func (s *speakerSink) Resume() { s.setPaused(false) }

func (s *speakerSink) setPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctrl == nil {
		return
	}
	speaker.Lock()
	s.ctrl.Paused = paused
	speaker.Unlock()
}

func (s *speakerSink) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctrl == nil {
		return false
	}
	speaker.Lock()
	paused := s.ctrl.Paused
	speaker.Unlock()
	return paused
}

func (s *speakerSink) Seek(pos time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return nil
	}
	n := s.format.SampleRate.N(pos)
	if n < 0 {
		n = 0
	}
	if total := s.stream.Len(); n > total {
		n = total
	}
	speaker.Lock()
	err := s.stream.Seek(n)
	speaker.Unlock()
	if err != nil {
		return fmt.Errorf("seek to %s: %w", pos, err)
	}
	return nil
}

func (s *speakerSink) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return 0
	}
	speaker.Lock()
	pos := s.stream.Position()
	speaker.Unlock()
	return s.format.SampleRate.D(pos)
}

func (s *speakerSink) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return 0
	}
	return s.format.SampleRate.D(s.stream.Len())
}

func (s *speakerSink) RMS() float64 {
	return s.meter.Level()
}

func (s *speakerSink) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing || s.stopped {
		return true
	}
	return s.drained.Load()
}

func (s *speakerSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	if s.ctrl != nil {
		speaker.Lock()
		s.ctrl.Streamer = nil
		speaker.Unlock()
	}
	if s.stream != nil {
		_ = s.stream.Close()
	}
	if s.file != nil {
		_ = s.file.Close()
	}
	s.meter.Reset()
}

// applyGain maps a linear volume in [0, 1] onto the exponential volume
// effect. Zero maps to silence rather than -inf.
func applyGain(vol *effects.Volume, gain float64) {
	if gain <= 0 {
		vol.Silent = true
		vol.Volume = 0
		return
	}
	vol.Silent = false
	vol.Volume = math.Log2(gain)
}

// decodeFile opens and decodes an audio file by extension.
func decodeFile(path string) (*os.File, beep.StreamSeekCloser, beep.Format, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, beep.Format{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, nil, beep.Format{}, fmt.Errorf("%w: open %s: %v", ErrDecode, path, err)
	}

	var (
		stream beep.StreamSeekCloser
		format beep.Format
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		stream, format, err = mp3.Decode(file)
	case ".wav":
		stream, format, err = wav.Decode(file)
	case ".flac":
		stream, format, err = flac.Decode(file)
	case ".ogg", ".oga":
		stream, format, err = vorbis.Decode(file)
	default:
		_ = file.Close()
		return nil, nil, beep.Format{}, fmt.Errorf("%w: unsupported extension %q", ErrDecode, filepath.Ext(path))
	}
	if err != nil {
		_ = file.Close()
		return nil, nil, beep.Format{}, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	return file, stream, format, nil
}

// tapStreamer passes decoded samples through unmodified while feeding each
// tap. It runs on the speaker's streaming path, so detection adds no output
// latency.
type tapStreamer struct {
	inner      beep.Streamer
	sampleRate int
	taps       []audio.Tap
}

func (t *tapStreamer) Stream(samples [][2]float64) (int, bool) {
	n, ok := t.inner.Stream(samples)
	if n > 0 {
		for _, tap := range t.taps {
			tap.Process(samples[:n], t.sampleRate)
		}
	}
	return n, ok
}

func (t *tapStreamer) Err() error {
	return t.inner.Err()
}
