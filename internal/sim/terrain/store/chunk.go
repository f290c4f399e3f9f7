package store

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"

	"harvestcraft.ai/internal/sim/terrain/biome"
	"harvestcraft.ai/internal/sim/terrain/chunk"
	"harvestcraft.ai/internal/sim/terrain/gen"
	"harvestcraft.ai/internal/sim/terrain/ore"
)

type Tree struct {
	ID     string      `json:"id"`
	X      int         `json:"x"`
	Z      int         `json:"z"`
	Height float64     `json:"height"`
	Biome  biome.Biome `json:"biome"`
}

type BlockRecord struct {
	Pos   chunk.BlockPos `json:"pos"`
	Block string         `json:"block"`
}

// Chunk is a generated snapshot of one 16x16 chunk. Cells are indexed
// x + z*16 in local coordinates.
type Chunk struct {
	Key         chunk.Key
	GroundColor string
	Heights     [chunk.Cells]float64
	Biomes      [chunk.Cells]biome.Biome
	Colors      [chunk.Cells]string
	Trees       []Tree
	// Blocks covers y=0 down to -Depth, ordered by y then x then z.
	Blocks []BlockRecord
	Depth  int

	digest [32]byte
}

func index(lx, lz int) int { return lx + lz*chunk.Size }

func (c *Chunk) Biome(lx, lz int) biome.Biome { return c.Biomes[index(lx, lz)] }
func (c *Chunk) Height(lx, lz int) float64    { return c.Heights[index(lx, lz)] }

// Digest is a sha256 over everything generated into the chunk.
func (c *Chunk) Digest() [32]byte { return c.digest }

func (c *Chunk) DigestHex() string { return fmt.Sprintf("%x", c.digest) }

func (c *Chunk) computeDigest() {
	h := sha256.New()
	var tmp [8]byte
	writeInt := func(v int) {
		binary.LittleEndian.PutUint64(tmp[:], uint64(int64(v)))
		h.Write(tmp[:])
	}
	writeInt(c.Key.CX)
	writeInt(c.Key.CZ)
	for i := 0; i < chunk.Cells; i++ {
		binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(c.Heights[i]))
		h.Write(tmp[:])
		h.Write([]byte(c.Biomes[i]))
		h.Write([]byte{0})
	}
	for _, t := range c.Trees {
		writeInt(t.X)
		writeInt(t.Z)
	}
	for _, b := range c.Blocks {
		writeInt(b.Pos.X)
		writeInt(b.Pos.Y)
		writeInt(b.Pos.Z)
		h.Write([]byte(b.Block))
		h.Write([]byte{0})
	}
	copy(c.digest[:], h.Sum(nil))
}

// Generate synthesizes chunk k. It is a pure function of the generators and
// k, so dropped chunks regenerate identically.
func Generate(g *gen.Generator, ores *ore.Layer, k chunk.Key, depth int) *Chunk {
	if depth < 0 {
		depth = 0
	}
	if depth > -ore.FloorY {
		depth = -ore.FloorY
	}
	c := &Chunk{Key: k, Depth: depth}
	ox, oz := k.Origin()
	for lz := 0; lz < chunk.Size; lz++ {
		for lx := 0; lx < chunk.Size; lx++ {
			wx, wz := ox+lx, oz+lz
			s := g.Sample(wx, wz)
			i := index(lx, lz)
			c.Heights[i] = s.Height
			c.Biomes[i] = s.Biome
			c.Colors[i] = s.Color
			if s.Tree {
				c.Trees = append(c.Trees, Tree{
					ID:     fmt.Sprintf("tree_%d_%d", wx, wz),
					X:      wx,
					Z:      wz,
					Height: s.Height,
					Biome:  s.Biome,
				})
			}
		}
	}
	c.GroundColor = c.Colors[index(chunk.Size/2, chunk.Size/2)]

	if ores != nil {
		c.Blocks = make([]BlockRecord, 0, chunk.Cells*(depth+1))
		for y := 0; y >= -depth; y-- {
			for lx := 0; lx < chunk.Size; lx++ {
				for lz := 0; lz < chunk.Size; lz++ {
					wx, wz := ox+lx, oz+lz
					c.Blocks = append(c.Blocks, BlockRecord{
						Pos:   chunk.BlockPos{X: wx, Y: y, Z: wz},
						Block: ores.BlockAt(wx, y, wz),
					})
				}
			}
		}
	}
	c.computeDigest()
	return c
}
