package store

import (
	"sort"

	"harvestcraft.ai/internal/sim/logic/mathx"
	"harvestcraft.ai/internal/sim/terrain/chunk"
)

// WindowKeys lists the (2R+1)^2 chunks around the chunk containing (px,pz),
// nearest first by Manhattan distance, then cx, then cz. Negative radius is
// treated as 0.
func WindowKeys(px, pz float64, radius int) []chunk.Key {
	return windowAround(chunk.KeyAt(px, pz), radius)
}

func windowAround(center chunk.Key, radius int) []chunk.Key {
	if radius < 0 {
		radius = 0
	}
	type item struct {
		k    chunk.Key
		dist int
	}
	side := 2*radius + 1
	items := make([]item, 0, side*side)
	for dz := -radius; dz <= radius; dz++ {
		for dx := -radius; dx <= radius; dx++ {
			items = append(items, item{
				k:    chunk.Key{CX: center.CX + dx, CZ: center.CZ + dz},
				dist: mathx.AbsInt(dx) + mathx.AbsInt(dz),
			})
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].dist != items[j].dist {
			return items[i].dist < items[j].dist
		}
		if items[i].k.CX != items[j].k.CX {
			return items[i].k.CX < items[j].k.CX
		}
		return items[i].k.CZ < items[j].k.CZ
	})
	out := make([]chunk.Key, len(items))
	for i, it := range items {
		out[i] = it.k
	}
	return out
}
