/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"testing"
	"time"
)

func TestCrossfadeEligible(t *testing.T) {
	cases := []struct {
		duration time.Duration
		fade     time.Duration
		want     bool
	}{
		{10 * time.Second, 3 * time.Second, true},
		{6 * time.Second, 3 * time.Second, false},  // exactly 2x is too short
		{7 * time.Second, 3 * time.Second, true},
		{10 * time.Second, 0, false},
		{10 * time.Second, -time.Second, false},
		{time.Second, 500 * time.Millisecond, false},
	}
	for _, tc := range cases {
		if got := crossfadeEligible(tc.duration, tc.fade); got != tc.want {
			t.Errorf("crossfadeEligible(%v, %v) = %v, want %v", tc.duration, tc.fade, got, tc.want)
		}
	}
}

func TestCrossfadeSessionRamps(t *testing.T) {
	out := &fakeSink{playing: true, vol: 1}
	in := &fakeSink{playing: true, vol: 0}
	start := time.Now()
	x := &crossfadeSession{outgoing: out, incoming: in, start: start, duration: 4 * time.Second}

	if done := x.step(start.Add(time.Second)); done {
		t.Fatal("fade finished at 25%")
	}
	if out.vol != 0.75 || in.vol != 0.25 {
		t.Fatalf("volumes at 25%% = %v/%v", out.vol, in.vol)
	}

	if done := x.step(start.Add(3 * time.Second)); done {
		t.Fatal("fade finished at 75%")
	}
	if out.vol != 0.25 || in.vol != 0.75 {
		t.Fatalf("volumes at 75%% = %v/%v", out.vol, in.vol)
	}

	if done := x.step(start.Add(4 * time.Second)); !done {
		t.Fatal("fade not finished at the window end")
	}
	if out.vol != 0 || in.vol != 1 {
		t.Fatalf("final volumes = %v/%v", out.vol, in.vol)
	}
}

func TestCrossfadeSessionEarlyDrain(t *testing.T) {
	out := &fakeSink{playing: true, vol: 1, empty: true}
	in := &fakeSink{playing: true}
	x := &crossfadeSession{outgoing: out, incoming: in, start: time.Now(), duration: 10 * time.Second}

	if done := x.step(time.Now().Add(time.Second)); !done {
		t.Fatal("drained outgoing sink must end the fade")
	}
}

func TestCrossfadeSessionFadeOutOnly(t *testing.T) {
	out := &fakeSink{playing: true, vol: 1}
	start := time.Now()
	x := &crossfadeSession{outgoing: out, start: start, duration: 2 * time.Second}

	x.step(start.Add(time.Second))
	if out.vol != 0.5 {
		t.Fatalf("outgoing volume = %v, want 0.5", out.vol)
	}
	if done := x.step(start.Add(2 * time.Second)); !done {
		t.Fatal("fade-out not finished")
	}
	if out.vol != 0 {
		t.Fatalf("outgoing volume = %v, want 0", out.vol)
	}
}

func TestCrossfadeSessionShift(t *testing.T) {
	out := &fakeSink{playing: true, vol: 1}
	in := &fakeSink{playing: true}
	start := time.Now()
	x := &crossfadeSession{outgoing: out, incoming: in, start: start, duration: 4 * time.Second}

	x.step(start.Add(2 * time.Second))
	mid := out.vol

	x.shift(10 * time.Second)
	x.step(start.Add(12 * time.Second))
	if out.vol != mid {
		t.Fatalf("volume moved across shift: %v -> %v", mid, out.vol)
	}
}

func TestCrossfadeSessionAbort(t *testing.T) {
	out := &fakeSink{playing: true, vol: 0.4}
	in := &fakeSink{playing: true, vol: 0.6}
	x := &crossfadeSession{outgoing: out, incoming: in, start: time.Now(), duration: 3 * time.Second}

	x.abort()
	if !in.stopped {
		t.Fatal("incoming sink not stopped on abort")
	}
	if out.vol != 1 {
		t.Fatalf("outgoing volume = %v, want restored to 1", out.vol)
	}
	if x.incoming != nil {
		t.Fatal("incoming reference kept after abort")
	}
}
