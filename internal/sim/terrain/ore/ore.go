// Package ore assigns block kinds to sub-surface cells by depth band.
package ore

import (
	"harvestcraft.ai/internal/sim/catalogs"
	"harvestcraft.ai/internal/sim/logic/mathx"
)

const (
	SurfaceY = 0
	FloorY   = -10

	seedOffset = 5000
)

// Threshold is a cumulative roll bound: a roll below Below yields Block.
type Threshold struct {
	Below float64
	Block string
}

// Band covers the y range [Bottom, Top].
type Band struct {
	Top, Bottom int
	Thresholds  []Threshold
}

// Bands lists the ore bands from shallow to deep. Rolls above every
// threshold yield STONE.
var Bands = []Band{
	{Top: -1, Bottom: -1, Thresholds: []Threshold{
		{Below: 0.90, Block: catalogs.Dirt},
	}},
	{Top: -2, Bottom: -3, Thresholds: []Threshold{
		{Below: 0.06, Block: catalogs.CoalOre},
		{Below: 0.09, Block: catalogs.IronOre},
	}},
	{Top: -4, Bottom: -6, Thresholds: []Threshold{
		{Below: 0.08, Block: catalogs.CoalOre},
		{Below: 0.13, Block: catalogs.IronOre},
		{Below: 0.15, Block: catalogs.GoldOre},
		{Below: 0.155, Block: catalogs.DiamondOre},
	}},
	{Top: -7, Bottom: -9, Thresholds: []Threshold{
		{Below: 0.08, Block: catalogs.CoalOre},
		{Below: 0.15, Block: catalogs.IronOre},
		{Below: 0.19, Block: catalogs.GoldOre},
		{Below: 0.21, Block: catalogs.DiamondOre},
	}},
}

// Layer derives block kinds from a hash of (seed, x, y, z), so revisiting a
// cell always yields the same block.
type Layer struct {
	seed int64
}

func NewLayer(seed int64) *Layer {
	return &Layer{seed: seed + seedOffset}
}

func (l *Layer) Roll(x, y, z int) float64 {
	return mathx.Unit(mathx.Hash3(l.seed, x, y, z))
}

func (l *Layer) BlockAt(x, y, z int) string {
	switch {
	case y > SurfaceY:
		return catalogs.Air
	case y <= FloorY:
		return catalogs.Bedrock
	case y == SurfaceY:
		return catalogs.Grass
	}
	return Pick(y, l.Roll(x, y, z))
}

// Pick resolves a roll in [0,1) at depth y against Bands.
func Pick(y int, roll float64) string {
	for _, b := range Bands {
		if y > b.Top || y < b.Bottom {
			continue
		}
		for _, t := range b.Thresholds {
			if roll < t.Below {
				return t.Block
			}
		}
		break
	}
	return catalogs.Stone
}
