package audio

import (
	"math"
	"testing"
	"time"
)

// frames builds n stereo frames with the same value on both channels.
func frames(n int, value float64) [][2]float64 {
	out := make([][2]float64, n)
	for i := range out {
		out[i] = [2]float64{value, value}
	}
	return out
}

func TestMeterWindowedRMS(t *testing.T) {
	m := NewMeter()
	const sr = 10000 // 50ms window = 500 samples

	// Constant 0.5 on both channels has RMS 0.5.
	m.Process(frames(500, 0.5), sr)
	if got := m.Level(); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("expected RMS 0.5, got %v", got)
	}

	// A partial window must not overwrite the published level.
	m.Process(frames(10, 0.0), sr)
	if got := m.Level(); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("partial window changed level: %v", got)
	}

	// Complete the silent window.
	m.Process(frames(490, 0.0), sr)
	if got := m.Level(); got > 0.01 {
		t.Fatalf("expected near-zero RMS, got %v", got)
	}
}

func TestMeterSineRMS(t *testing.T) {
	m := NewMeter()
	const sr = 8000
	samples := make([][2]float64, 400)
	for i := range samples {
		v := math.Sin(2 * math.Pi * 440 * float64(i) / sr)
		samples[i] = [2]float64{v, v}
	}
	m.Process(samples, sr)

	// Full-scale sine RMS is 1/sqrt(2).
	want := 1 / math.Sqrt2
	if got := m.Level(); math.Abs(got-want) > 0.01 {
		t.Fatalf("sine RMS: got %v want ~%v", got, want)
	}
}

func TestMeterReset(t *testing.T) {
	m := NewMeter()
	m.Process(frames(1000, 0.8), 10000)
	if m.Level() == 0 {
		t.Fatal("expected non-zero level before reset")
	}
	m.Reset()
	if m.Level() != 0 {
		t.Fatalf("expected zero level after reset, got %v", m.Level())
	}
	if m.Peak() != 0 {
		t.Fatalf("expected zero peak after reset, got %v", m.Peak())
	}
}

func TestDBFS(t *testing.T) {
	if got := DBFS(1); got != 0 {
		t.Fatalf("DBFS(1) = %v, want 0", got)
	}
	if got := DBFS(0.5); math.Abs(got-(-6.02)) > 0.01 {
		t.Fatalf("DBFS(0.5) = %v, want ~-6.02", got)
	}
	if got := DBFS(0); got != MinDB {
		t.Fatalf("DBFS(0) = %v, want floor %v", got, MinDB)
	}
}

func TestSilenceDetectorTripsAfterSustainedSilence(t *testing.T) {
	const sr = 10000 // 100ms window = 1000 samples
	d := NewSilenceDetector(0.01, 2*time.Second)

	// 1.9 seconds of silence: not yet tripped.
	for i := 0; i < 19; i++ {
		d.Process(frames(1000, 0), sr)
	}
	if d.Tripped() {
		t.Fatalf("tripped early at %s", d.SilentFor())
	}

	// One more window crosses 2s.
	d.Process(frames(1000, 0), sr)
	if !d.Tripped() {
		t.Fatal("expected trip at 2s of silence")
	}
}

func TestSilenceDetectorResetsOnLoudWindow(t *testing.T) {
	const sr = 10000
	d := NewSilenceDetector(0.01, time.Second)

	for i := 0; i < 9; i++ {
		d.Process(frames(1000, 0), sr)
	}
	if d.SilentFor() == 0 {
		t.Fatal("expected accumulated silence")
	}

	// A single loud window resets the run to zero.
	d.Process(frames(1000, 0.5), sr)
	if d.SilentFor() != 0 {
		t.Fatalf("expected reset, got %s", d.SilentFor())
	}
	if d.Tripped() {
		t.Fatal("must not trip after reset")
	}
}

func TestSilenceDetectorDisabled(t *testing.T) {
	const sr = 10000
	d := NewSilenceDetector(0.01, 0)
	for i := 0; i < 100; i++ {
		d.Process(frames(1000, 0), sr)
	}
	if d.Tripped() {
		t.Fatal("disabled detector must never trip")
	}
}

func TestSilenceDetectorFlagStaysUntilReset(t *testing.T) {
	const sr = 10000
	d := NewSilenceDetector(0.01, 200*time.Millisecond)
	for i := 0; i < 3; i++ {
		d.Process(frames(1000, 0), sr)
	}
	if !d.Tripped() {
		t.Fatal("expected trip")
	}
	// Loud audio arriving later does not clear the latched flag.
	d.Process(frames(1000, 0.5), sr)
	if !d.Tripped() {
		t.Fatal("flag must latch until Reset")
	}
	d.Reset()
	if d.Tripped() || d.SilentFor() != 0 {
		t.Fatal("reset must clear flag and run")
	}
}
