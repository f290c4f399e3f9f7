package gen

import "harvestcraft.ai/internal/sim/logic/mathx"

// WithinSpawnClear reports whether (x,z) lies inside the circular spawn area
// kept free of generated features.
func WithinSpawnClear(x, z, radius int) bool {
	if radius <= 0 {
		return false
	}
	r := int64(radius)
	dx := int64(x)
	dz := int64(z)
	return dx*dx+dz*dz <= r*r
}

func ClampPermille(v int) int {
	return mathx.ClampInt(v, 0, 1000)
}

// InCluster reports whether (x,z) falls within radius of a cluster centre.
// The plane is split into grid-sized cells; each cell hosts one centre with
// probability probPermille/1000, offset by the cell hash. The 3x3 neighbourhood
// is scanned so clusters straddling cell borders are found.
func InCluster(seed int64, x, z, grid, radius int, probPermille uint64) bool {
	if grid <= 0 || radius <= 0 || probPermille == 0 {
		return false
	}
	gx := mathx.FloorDiv(x, grid)
	gz := mathx.FloorDiv(z, grid)
	r2 := radius * radius

	for dz := -1; dz <= 1; dz++ {
		for dx := -1; dx <= 1; dx++ {
			cgx := gx + dx
			cgz := gz + dz
			h := mathx.Hash2(seed, cgx, cgz)
			if h%1000 >= probPermille {
				continue
			}

			ox := int((h >> 10) % uint64(grid))
			oz := int((h >> 20) % uint64(grid))
			cx := cgx*grid + ox
			cz := cgz*grid + oz

			ddx := x - cx
			ddz := z - cz
			if ddx*ddx+ddz*ddz <= r2 {
				return true
			}
		}
	}
	return false
}
