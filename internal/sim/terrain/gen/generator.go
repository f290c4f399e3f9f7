// Package gen samples terrain properties (height, moisture, biome, ground
// color, tree placement) as pure functions of a seed and a world cell.
package gen

import (
	"github.com/ojrac/opensimplex-go"

	"harvestcraft.ai/internal/sim/logic/mathx"
	"harvestcraft.ai/internal/sim/terrain/biome"
	"harvestcraft.ai/internal/sim/terrain/noise"
)

// Field seed offsets. Each field gets its own permutation so they stay
// decorrelated.
const (
	moistureSeedOffset  = 1000
	selectorSeedOffset  = 2000
	placementSeedOffset = 3000
	villageSeedOffset   = 4000
)

const (
	heightScale    = 0.01
	moistureScale  = 0.008
	selectorScale  = 0.005
	placementScale = 0.05

	// heightContrast widens the height fbm around 0.5. Averaging octaves
	// pulls the sum toward the middle, which would leave the peak band
	// (raw >= 0.9) empty.
	heightContrast = 1.6

	MaxHeight = 6.0
)

type Options struct {
	// SpawnClearRadius keeps trees away from the origin.
	SpawnClearRadius int `json:"spawn_clear_radius"`

	VillageGrid     int `json:"village_grid"`
	VillageRadius   int `json:"village_radius"`
	VillagePermille int `json:"village_permille"`
}

func DefaultOptions() Options {
	return Options{
		SpawnClearRadius: 6,
		VillageGrid:      256,
		VillageRadius:    10,
		VillagePermille:  350,
	}
}

// Generator is the per-session terrain source. It is immutable after New and
// safe for concurrent use; reseeding means constructing a new Generator.
type Generator struct {
	seed int64
	opts Options

	height   *noise.Perlin
	moisture *noise.Perlin
	selector *noise.Perlin

	// placement modulates tree density so forests clump. The Bernoulli roll
	// itself comes from a cell hash.
	placement opensimplex.Noise
}

func New(seed int64, opts Options) *Generator {
	return &Generator{
		seed:      seed,
		opts:      opts,
		height:    noise.New(seed),
		moisture:  noise.New(seed + moistureSeedOffset),
		selector:  noise.New(seed + selectorSeedOffset),
		placement: opensimplex.NewNormalized(seed + placementSeedOffset),
	}
}

func (g *Generator) Seed() int64      { return g.seed }
func (g *Generator) Options() Options { return g.opts }

// RawHeight is the unmapped height fbm in [0,1], contrast-stretched around
// 0.5 so the peak band is reachable.
func (g *Generator) RawHeight(x, z int) float64 {
	f := g.height.FBM(float64(x)*heightScale, float64(z)*heightScale, 4, 0.5)
	return mathx.Clamp01(0.5 + (f-0.5)*heightContrast)
}

// Height maps the height fbm piecewise so most of the world is flat:
// [0,0.7) -> [0,1.4), [0.7,0.9) -> [1.4,2.4), [0.9,1] -> [2.4,6].
func (g *Generator) Height(x, z int) float64 {
	return RemapHeight(g.RawHeight(x, z))
}

func RemapHeight(raw float64) float64 {
	switch {
	case raw < 0.7:
		return raw / 0.7 * 1.4
	case raw < 0.9:
		return 1.4 + (raw-0.7)/0.2*1.0
	default:
		h := 2.4 + (raw-0.9)/0.1*(MaxHeight-2.4)
		if h > MaxHeight {
			return MaxHeight
		}
		return h
	}
}

func (g *Generator) Moisture(x, z int) float64 {
	return g.moisture.FBM(float64(x)*moistureScale, float64(z)*moistureScale, 3, 0.5)
}

func (g *Generator) selectorAt(x, z int) float64 {
	return g.selector.FBM(float64(x)*selectorScale, float64(z)*selectorScale, 2, 0.5)
}

func (g *Generator) BiomeAt(x, z int) biome.Biome {
	return g.classify(x, z, g.Height(x, z))
}

func (g *Generator) classify(x, z int, height float64) biome.Biome {
	if height < 0.5 {
		return biome.River
	}
	moisture := g.Moisture(x, z)
	sel := g.selectorAt(x, z)
	switch {
	case moisture < 0.4 && sel > 0.6:
		return biome.Desert
	case height > 4 && moisture > 0.5:
		return biome.Snow
	case moisture > 0.6 && sel > 0.7:
		return biome.Rainforest
	}
	if g.inVillage(x, z) {
		return biome.Village
	}
	return biome.Grassland
}

func (g *Generator) inVillage(x, z int) bool {
	return InCluster(g.seed+villageSeedOffset, x, z, g.opts.VillageGrid, g.opts.VillageRadius, uint64(ClampPermille(g.opts.VillagePermille)))
}

func (g *Generator) GroundColor(x, z int) string {
	return g.BiomeAt(x, z).Color()
}

func (g *Generator) ShouldGenerateTree(x, z int) bool {
	return g.treeAt(x, z, g.BiomeAt(x, z))
}

func (g *Generator) treeAt(x, z int, b biome.Biome) bool {
	chance := b.TreeChance()
	if chance <= 0 || WithinSpawnClear(x, z, g.opts.SpawnClearRadius) {
		return false
	}
	density := g.placement.Eval2(float64(x)*placementScale, float64(z)*placementScale)
	p := chance * 2 * density
	if p > 1 {
		p = 1
	}
	return mathx.Unit(mathx.Hash2(g.seed+placementSeedOffset, x, z)) < p
}

// Sample is every terrain property of one cell.
type Sample struct {
	X        int         `json:"x"`
	Z        int         `json:"z"`
	Height   float64     `json:"height"`
	Moisture float64     `json:"moisture"`
	Biome    biome.Biome `json:"biome"`
	Color    string      `json:"color"`
	Tree     bool        `json:"tree"`
}

// Sample evaluates the height field once and derives the rest from it.
func (g *Generator) Sample(x, z int) Sample {
	h := g.Height(x, z)
	b := g.classify(x, z, h)
	return Sample{
		X:        x,
		Z:        z,
		Height:   h,
		Moisture: g.Moisture(x, z),
		Biome:    b,
		Color:    b.Color(),
		Tree:     g.treeAt(x, z, b),
	}
}
