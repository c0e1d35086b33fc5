/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import "errors"

var (
	// ErrFileNotFound indicates the requested audio file does not exist.
	// The command is rejected and playback state is unchanged.
	ErrFileNotFound = errors.New("audio file not found")

	// ErrDecode indicates the file exists but could not be decoded. Only
	// the sink that attempted the decode is affected.
	ErrDecode = errors.New("audio decode failed")

	// ErrConfigInvalid indicates an UpdateConfig command failed validation.
	ErrConfigInvalid = errors.New("invalid playback config")

	// ErrDeviceFailure indicates the audio output device failed. Fatal for
	// the session: the engine transitions to Stopped and does not retry.
	ErrDeviceFailure = errors.New("audio device failure")

	// ErrEngineClosed indicates a command arrived after Shutdown.
	ErrEngineClosed = errors.New("engine is shut down")

	// ErrCommandBacklog indicates the command channel is full. Commands are
	// never queued unboundedly so the sender can stay non-blocking.
	ErrCommandBacklog = errors.New("command channel full")
)
