/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import "time"

// crossfadeEligible reports whether a track of the given duration can take
// part in a crossfade of the given length. Short tracks are excluded so a
// fade never covers more than half the track.
func crossfadeEligible(trackDuration, fade time.Duration) bool {
	if fade <= 0 {
		return false
	}
	return trackDuration > 2*fade
}

// crossfadeSession is one in-flight crossfade. The outgoing sink ramps down
// while the incoming sink ramps up over the fade window. A nil incoming sink
// means last-track fade-out: the outgoing side still ramps to silence.
type crossfadeSession struct {
	outgoing Sink
	incoming Sink

	outTrack Track
	inTrack  Track

	start    time.Time
	duration time.Duration
}

// progress is the fade position in [0, 1] at now.
func (c *crossfadeSession) progress(now time.Time) float64 {
	if c.duration <= 0 {
		return 1
	}
	p := float64(now.Sub(c.start)) / float64(c.duration)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// step advances both volume ramps and reports whether the fade finished.
// An outgoing sink that drains early also ends the fade.
func (c *crossfadeSession) step(now time.Time) bool {
	p := c.progress(now)
	c.outgoing.SetVolume(1 - p)
	if c.incoming != nil {
		c.incoming.SetVolume(p)
	}
	return p >= 1 || c.outgoing.Empty()
}

// shift moves the fade window forward by d. Used when playback was paused
// mid-fade so the ramp resumes where it left off.
func (c *crossfadeSession) shift(d time.Duration) {
	c.start = c.start.Add(d)
}

// pause halts both sides of the fade.
func (c *crossfadeSession) pause() {
	c.outgoing.Pause()
	if c.incoming != nil {
		c.incoming.Pause()
	}
}

// resume restarts both sides of the fade.
func (c *crossfadeSession) resume() {
	c.outgoing.Resume()
	if c.incoming != nil {
		c.incoming.Resume()
	}
}

// abort stops the incoming sink, if any, and leaves the outgoing sink at
// full volume for sequential playback.
func (c *crossfadeSession) abort() {
	if c.incoming != nil {
		c.incoming.Stop()
		c.incoming = nil
	}
	c.outgoing.SetVolume(1)
}
