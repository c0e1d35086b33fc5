/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"time"

	"github.com/friendsincode/munin_audio/internal/config"
)

// State is the transport state of the engine.
type State int

const (
	StateIdle State = iota
	StatePlaying
	StatePaused
	StateCrossfading // a sub-state of playing: two main-program sinks live
	StateStopped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateCrossfading:
		return "crossfading"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Track is the engine's read-only view of a queued track.
type Track struct {
	Index    int
	Path     string
	Title    string
	Artist   string
	Duration time.Duration
}

// TrackSource supplies the ordered track queue. Implemented by the playlist
// collaborator; the engine calls back into it to learn the next track and to
// write back the measured played duration when a track finishes.
type TrackSource interface {
	Len() int
	Track(index int) (Track, bool)
	RecordPlayed(index int, played time.Duration)
}

// CommandType enumerates engine commands.
type CommandType int

const (
	CmdPlay CommandType = iota
	CmdStop
	CmdPause
	CmdResume
	CmdSkip
	CmdSeek
	CmdOverlay
	CmdUpdateConfig
	CmdShutdown
)

// String returns the string representation of the command type.
func (c CommandType) String() string {
	switch c {
	case CmdPlay:
		return "play"
	case CmdStop:
		return "stop"
	case CmdPause:
		return "pause"
	case CmdResume:
		return "resume"
	case CmdSkip:
		return "skip"
	case CmdSeek:
		return "seek"
	case CmdOverlay:
		return "overlay"
	case CmdUpdateConfig:
		return "update_config"
	case CmdShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Command is a tagged variant sent into the engine's command channel.
type Command struct {
	Type       CommandType
	TrackIndex int              // CmdPlay; negative means "current position"
	Position   time.Duration    // CmdSeek
	Path       string           // CmdOverlay
	Config     *config.Playback // CmdUpdateConfig
}

// Play starts playback at the given queue index. A negative index resumes
// the current position (or the head of the queue).
func Play(index int) Command { return Command{Type: CmdPlay, TrackIndex: index} }

// Stop halts all sinks and resets the transport.
func Stop() Command { return Command{Type: CmdStop} }

// Pause pauses the transport.
func Pause() Command { return Command{Type: CmdPause} }

// Resume resumes a paused transport.
func Resume() Command { return Command{Type: CmdResume} }

// Skip advances to the next queued track.
func Skip() Command { return Command{Type: CmdSkip} }

// Seek positions the current track. Best effort during a crossfade.
func Seek(pos time.Duration) Command { return Command{Type: CmdSeek, Position: pos} }

// Overlay plays a file on an independent overlay sink without touching the
// main transport (scheduler directive).
func Overlay(path string) Command { return Command{Type: CmdOverlay, Path: path} }

// UpdateConfig replaces the playback session config.
func UpdateConfig(cfg config.Playback) Command {
	return Command{Type: CmdUpdateConfig, Config: &cfg}
}

// Shutdown stops every live sink and terminates the worker.
func Shutdown() Command { return Command{Type: CmdShutdown} }

// TransportSnapshot is a point-in-time view for clients that pull state
// instead of following the event stream.
type TransportSnapshot struct {
	State      string        `json:"state"`
	IsPlaying  bool          `json:"is_playing"`
	IsPaused   bool          `json:"is_paused"`
	TrackIndex int           `json:"track_index"`
	Artist     string        `json:"artist,omitempty"`
	Title      string        `json:"title,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`
	Duration   time.Duration `json:"duration"`
	NextArtist string        `json:"next_artist,omitempty"`
	NextTitle  string        `json:"next_title,omitempty"`
}
