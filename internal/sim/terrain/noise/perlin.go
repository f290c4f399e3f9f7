// Package noise implements seeded 2D gradient noise and its fractal sum.
package noise

import (
	"math"

	"harvestcraft.ai/internal/sim/logic/mathx"
)

const (
	DefaultOctaves     = 4
	DefaultPersistence = 0.5
)

// Perlin is a seeded gradient-noise field. It is immutable after New and
// safe for concurrent use.
type Perlin struct {
	seed int64
	perm [512]uint8
}

func New(seed int64) *Perlin {
	p := &Perlin{seed: seed}

	var base [256]uint8
	for i := range base {
		base[i] = uint8(i)
	}

	// Fisher-Yates driven by a 64-bit LCG.
	s := uint64(seed)
	for i := 255; i > 0; i-- {
		s = s*6364136223846793005 + 1442695040888963407
		j := int((s >> 33) % uint64(i+1))
		base[i], base[j] = base[j], base[i]
	}

	for i := 0; i < 256; i++ {
		p.perm[i] = base[i]
		p.perm[i+256] = base[i]
	}
	return p
}

func (p *Perlin) Seed() int64 { return p.seed }

func fade(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(t, a, b float64) float64 {
	return a + t*(b-a)
}

func grad(hash uint8, x, y float64) float64 {
	switch hash & 7 {
	case 0:
		return x + y
	case 1:
		return -x + y
	case 2:
		return x - y
	case 3:
		return -x - y
	case 4:
		return x
	case 5:
		return -x
	case 6:
		return y
	default:
		return -y
	}
}

// raw returns the signed noise value. Most samples fall within ±0.7.
func (p *Perlin) raw(x, y float64) float64 {
	fx := math.Floor(x)
	fy := math.Floor(y)
	xi := int(fx) & 255
	yi := int(fy) & 255
	xf := x - fx
	yf := y - fy

	u := fade(xf)
	v := fade(yf)

	aa := p.perm[int(p.perm[xi])+yi]
	ab := p.perm[int(p.perm[xi])+yi+1]
	ba := p.perm[int(p.perm[xi+1])+yi]
	bb := p.perm[int(p.perm[xi+1])+yi+1]

	x1 := lerp(u, grad(aa, xf, yf), grad(ba, xf-1, yf))
	x2 := lerp(u, grad(ab, xf, yf-1), grad(bb, xf-1, yf-1))
	return lerp(v, x1, x2)
}

// Noise2D returns gradient noise at (x, y) mapped onto [0,1]. raw is
// stretched by sqrt(2) first so the output uses most of the unit range.
func (p *Perlin) Noise2D(x, y float64) float64 {
	return mathx.Clamp01((p.raw(x, y)*math.Sqrt2 + 1) / 2)
}

// FBM sums octaves of Noise2D at doubling frequency, each octave's amplitude
// scaled by persistence, and normalises by the total amplitude so the result
// stays in [0,1]. Non-positive arguments fall back to the defaults.
func (p *Perlin) FBM(x, y float64, octaves int, persistence float64) float64 {
	if octaves <= 0 {
		octaves = DefaultOctaves
	}
	if persistence <= 0 {
		persistence = DefaultPersistence
	}

	total := 0.0
	amplitude := 1.0
	frequency := 1.0
	maxAmplitude := 0.0
	for i := 0; i < octaves; i++ {
		total += p.Noise2D(x*frequency, y*frequency) * amplitude
		maxAmplitude += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	return total / maxAmplitude
}
