// Package chunk holds world and chunk coordinate types.
package chunk

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"harvestcraft.ai/internal/sim/logic/mathx"
)

const (
	Size  = 16
	Cells = Size * Size
)

type Key struct {
	CX int `json:"cx"`
	CZ int `json:"cz"`
}

func (k Key) String() string { return fmt.Sprintf("%d,%d", k.CX, k.CZ) }

// Origin is the world cell at local (0,0).
func (k Key) Origin() (x, z int) { return k.CX * Size, k.CZ * Size }

// KeyOf returns the chunk containing world cell (x,z).
func KeyOf(x, z int) Key {
	return Key{CX: mathx.FloorDiv(x, Size), CZ: mathx.FloorDiv(z, Size)}
}

// KeyAt returns the chunk containing a float world position. Negative
// positions floor, so x=-5 is chunk -1.
func KeyAt(px, pz float64) Key {
	return KeyOf(mathx.FloorCell(px), mathx.FloorCell(pz))
}

// Local returns the in-chunk offset of world cell (x,z).
func Local(x, z int) (lx, lz int) {
	return mathx.Mod(x, Size), mathx.Mod(z, Size)
}

func ParseKey(s string) (Key, error) {
	v, err := parseInts(s, 2)
	if err != nil {
		return Key{}, fmt.Errorf("chunk key %q: %w", s, err)
	}
	return Key{CX: v[0], CZ: v[1]}, nil
}

// SortKeys orders keys by cx, then cz.
func SortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CZ < keys[j].CZ
	})
}

type BlockPos struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (p BlockPos) String() string { return fmt.Sprintf("%d,%d,%d", p.X, p.Y, p.Z) }
func (p BlockPos) Chunk() Key     { return KeyOf(p.X, p.Z) }
func (p BlockPos) Cell() CellPos  { return CellPos{X: p.X, Z: p.Z} }

func ParseBlockPos(s string) (BlockPos, error) {
	v, err := parseInts(s, 3)
	if err != nil {
		return BlockPos{}, fmt.Errorf("block pos %q: %w", s, err)
	}
	return BlockPos{X: v[0], Y: v[1], Z: v[2]}, nil
}

type CellPos struct {
	X int `json:"x"`
	Z int `json:"z"`
}

func (p CellPos) String() string { return fmt.Sprintf("%d,%d", p.X, p.Z) }
func (p CellPos) Chunk() Key     { return KeyOf(p.X, p.Z) }

func ParseCellPos(s string) (CellPos, error) {
	v, err := parseInts(s, 2)
	if err != nil {
		return CellPos{}, fmt.Errorf("cell pos %q: %w", s, err)
	}
	return CellPos{X: v[0], Z: v[1]}, nil
}

func parseInts(s string, n int) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d comma-separated integers", n)
	}
	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
