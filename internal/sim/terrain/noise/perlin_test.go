package noise

import (
	"math"
	"testing"
)

func TestNoise2DDeterministic(t *testing.T) {
	a := New(12345)
	b := New(12345)
	for i := 0; i < 200; i++ {
		x := float64(i)*0.37 - 40
		y := float64(i)*0.53 - 25
		if a.Noise2D(x, y) != b.Noise2D(x, y) {
			t.Fatalf("Noise2D not deterministic at (%f, %f)", x, y)
		}
	}
}

func TestNoise2DRange(t *testing.T) {
	p := New(42)
	for i := 0; i < 10000; i++ {
		x := float64(i)*0.1 - 500
		y := float64(i)*0.07 - 350
		v := p.Noise2D(x, y)
		if v < 0 || v > 1 {
			t.Fatalf("Noise2D(%f, %f) = %f, out of [0,1]", x, y, v)
		}
	}
}

func TestNoise2DSpansUnitRange(t *testing.T) {
	p := New(42)
	lo, hi := 1.0, 0.0
	for i := 0; i < 10000; i++ {
		v := p.Noise2D(float64(i)*0.1-500, float64(i)*0.07-350)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo > 0.1 || hi < 0.9 {
		t.Fatalf("Noise2D spans [%.3f, %.3f], want most of [0,1]", lo, hi)
	}
}

func TestNoise2DIntegerLatticeIsMidpoint(t *testing.T) {
	p := New(9)
	for x := -5; x <= 5; x++ {
		for y := -5; y <= 5; y++ {
			if got := p.Noise2D(float64(x), float64(y)); got != 0.5 {
				t.Fatalf("Noise2D(%d,%d)=%v want 0.5 on lattice points", x, y, got)
			}
		}
	}
}

func TestSeedsDiffer(t *testing.T) {
	a := New(1)
	b := New(2)
	same := 0
	for i := 0; i < 100; i++ {
		x := float64(i)*0.31 + 0.17
		y := float64(i)*0.23 + 0.41
		if a.Noise2D(x, y) == b.Noise2D(x, y) {
			same++
		}
	}
	if same > 10 {
		t.Fatalf("different seeds produced %d identical samples out of 100", same)
	}
}

func TestFBMRangeAndDefaults(t *testing.T) {
	p := New(77)
	for i := 0; i < 5000; i++ {
		x := float64(i)*0.013 - 20
		y := float64(i)*0.029 + 3
		v := p.FBM(x, y, 4, 0.5)
		if v < 0 || v > 1 {
			t.Fatalf("FBM out of range: %v", v)
		}
		if d := p.FBM(x, y, 0, 0); d != v {
			t.Fatalf("FBM defaults mismatch: %v vs %v", d, v)
		}
	}
}

func TestFBMSmooth(t *testing.T) {
	p := New(77)
	prev := p.FBM(0, 0, 4, 0.5)
	maxDiff := 0.0
	for i := 1; i < 1000; i++ {
		v := p.FBM(float64(i)*0.01, 0, 4, 0.5)
		if d := math.Abs(v - prev); d > maxDiff {
			maxDiff = d
		}
		prev = v
	}
	if maxDiff > 0.25 {
		t.Fatalf("FBM step difference %f, expected smooth transitions", maxDiff)
	}
}

func TestFBMSingleOctaveEqualsNoise(t *testing.T) {
	p := New(5)
	if p.FBM(1.3, 2.7, 1, 0.5) != p.Noise2D(1.3, 2.7) {
		t.Fatalf("one octave FBM should equal Noise2D")
	}
}
