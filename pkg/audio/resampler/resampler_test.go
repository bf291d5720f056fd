package resampler

import (
	"errors"
	"math"
	"testing"
)

func sine(n, rate int, freq float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func TestPassthrough(t *testing.T) {
	r, err := New(16000, 16000)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if !r.Passthrough() {
		t.Fatal("expected passthrough")
	}
	in := sine(512, 16000, 440)
	out, err := r.Process(in)
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d differs", i)
		}
	}
	out[0] = 42
	if in[0] == 42 {
		t.Error("passthrough output aliases input")
	}
}

func TestDownsampleLength(t *testing.T) {
	r, err := New(48000, 16000)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer r.Close()

	in := sine(48000, 48000, 440)
	total := 0
	for off := 0; off < len(in); off += 4800 {
		out, err := r.Process(in[off : off+4800])
		if err != nil {
			t.Fatalf("Process error: %v", err)
		}
		for _, s := range out {
			if s > 1 || s < -1 {
				t.Fatalf("sample out of range: %v", s)
			}
		}
		total += len(out)
	}
	if total < 12800 || total > 16800 {
		t.Errorf("total output = %d, want about 16000", total)
	}
}

func TestClosed(t *testing.T) {
	r, err := New(24000, 16000)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	r.Close()
	if _, err := r.Process(make([]float32, 10)); !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}

func TestInvalidRates(t *testing.T) {
	if _, err := New(0, 16000); err == nil {
		t.Error("expected error for zero rate")
	}
}

func TestDownmix(t *testing.T) {
	got := Downmix([]float32{1, 0, 0.5, 0.5, -1, 1, 0.3}, 2)
	want := []float32{0.5, 0.5, 0}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d = %v, want %v", i, got[i], want[i])
		}
	}
}
