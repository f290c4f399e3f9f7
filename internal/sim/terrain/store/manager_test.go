package store

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"harvestcraft.ai/internal/sim/catalogs"
	"harvestcraft.ai/internal/sim/overlay"
	"harvestcraft.ai/internal/sim/terrain/chunk"
	"harvestcraft.ai/internal/sim/terrain/gen"
	"harvestcraft.ai/internal/sim/terrain/ore"
)

func newManager(t *testing.T, opts Options) (*Manager, *overlay.Store, *overlay.MemoryBackend) {
	t.Helper()
	backend := overlay.NewMemoryBackend()
	ov := overlay.NewStore(backend, nil)
	m := NewManager(gen.New(42, gen.DefaultOptions()), ore.NewLayer(42), ov, opts, nil)
	return m, ov, backend
}

func TestWindowKeysNegativeCoordinates(t *testing.T) {
	keys := WindowKeys(-5, 0, 1)
	want := []chunk.Key{
		{CX: -1, CZ: 0},
		{CX: -2, CZ: 0}, {CX: -1, CZ: -1}, {CX: -1, CZ: 1}, {CX: 0, CZ: 0},
		{CX: -2, CZ: -1}, {CX: -2, CZ: 1}, {CX: 0, CZ: -1}, {CX: 0, CZ: 1},
	}
	if len(keys) != len(want) {
		t.Fatalf("len=%d want %d", len(keys), len(want))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys[%d]=%v want %v (all=%v)", i, keys[i], want[i], keys)
		}
	}
}

func TestWindowKeysRadius(t *testing.T) {
	for r := 0; r <= 4; r++ {
		keys := WindowKeys(100.5, -33.2, r)
		side := 2*r + 1
		if len(keys) != side*side {
			t.Fatalf("r=%d: len=%d", r, len(keys))
		}
		seen := map[chunk.Key]bool{}
		for _, k := range keys {
			if seen[k] {
				t.Fatalf("r=%d: duplicate %v", r, k)
			}
			seen[k] = true
			if k.CX < 6-r || k.CX > 6+r || k.CZ < -3-r || k.CZ > -3+r {
				t.Fatalf("r=%d: %v outside window", r, k)
			}
		}
	}
	if got := WindowKeys(0, 0, -3); len(got) != 1 || got[0] != (chunk.Key{}) {
		t.Fatalf("negative radius: %v", got)
	}
}

func TestGenerateIsReproducible(t *testing.T) {
	k := chunk.Key{CX: -3, CZ: 7}
	a := Generate(gen.New(42, gen.DefaultOptions()), ore.NewLayer(42), k, 3)
	b := Generate(gen.New(42, gen.DefaultOptions()), ore.NewLayer(42), k, 3)
	require.Equal(t, a.Digest(), b.Digest())
	require.Equal(t, a.Trees, b.Trees)
	require.Equal(t, a.Blocks, b.Blocks)

	c := Generate(gen.New(43, gen.DefaultOptions()), ore.NewLayer(43), k, 3)
	require.NotEqual(t, a.Digest(), c.Digest())
}

func TestGenerateContents(t *testing.T) {
	g := gen.New(42, gen.DefaultOptions())
	c := Generate(g, ore.NewLayer(42), chunk.Key{}, 2)
	require.Len(t, c.Blocks, chunk.Cells*3)
	require.Equal(t, catalogs.Grass, c.Blocks[0].Block)
	require.Equal(t, chunk.BlockPos{}, c.Blocks[0].Pos)
	require.Equal(t, c.Colors[8+8*chunk.Size], c.GroundColor)
	require.Equal(t, g.GroundColor(8, 8), c.GroundColor)
	for lz := 0; lz < chunk.Size; lz++ {
		for lx := 0; lx < chunk.Size; lx++ {
			require.Equal(t, g.BiomeAt(lx, lz), c.Biome(lx, lz))
			require.Equal(t, g.Height(lx, lz), c.Height(lx, lz))
		}
	}
	for _, tr := range c.Trees {
		require.False(t, gen.WithinSpawnClear(tr.X, tr.Z, g.Options().SpawnClearRadius), "tree %s in spawn clear", tr.ID)
	}
}

func TestUpdateMovesWindow(t *testing.T) {
	ctx := context.Background()
	m, ov, _ := newManager(t, Options{RenderDistance: 1})

	w, err := m.Update(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, w.Chunks, 9)
	require.Len(t, w.Entered, 9)
	require.Empty(t, w.Left)
	require.Equal(t, chunk.Key{}, w.Entered[0])
	require.Equal(t, 9, ov.Resident())

	w, err = m.Update(ctx, 3, 12)
	require.NoError(t, err)
	require.Empty(t, w.Entered, "same chunk, nothing to do")

	w, err = m.Update(ctx, 16, 0)
	require.NoError(t, err)
	require.Len(t, w.Chunks, 9)
	require.Equal(t, []chunk.Key{{CX: -1, CZ: -1}, {CX: -1, CZ: 0}, {CX: -1, CZ: 1}}, w.Left)
	require.Len(t, w.Entered, 3)
	for _, k := range w.Entered {
		require.Equal(t, 2, k.CX)
	}
	require.Equal(t, 9, ov.Resident())
	require.Equal(t, chunk.Key{CX: 1}, m.Center())
}

func TestStepAmortizesGeneration(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newManager(t, Options{RenderDistance: 2, ChunksPerStep: 4})

	w, err := m.Step(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, w.Chunks, 4)
	require.Equal(t, 21, w.Pending)
	require.Equal(t, chunk.Key{}, w.Entered[0])

	steps := 1
	for w.Pending > 0 {
		w, err = m.Step(ctx, 0, 0)
		require.NoError(t, err)
		steps++
		require.LessOrEqual(t, len(w.Entered), 4)
	}
	require.Equal(t, 7, steps)
	require.Len(t, w.Chunks, 25)
}

func TestPrefetchFeedsUpdate(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newManager(t, Options{RenderDistance: 1, Workers: 3})
	var generated atomic.Int64
	m.SetGenerateHook(func(*Chunk, time.Duration) { generated.Add(1) })

	require.NoError(t, m.Prefetch(ctx, WindowKeys(0, 0, 1)))
	require.EqualValues(t, 9, generated.Load())

	w, err := m.Update(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, w.Entered, 9)
	require.EqualValues(t, 9, generated.Load(), "prefetched chunks are reused")

	require.NoError(t, m.Prefetch(ctx, WindowKeys(0, 0, 1)))
	require.EqualValues(t, 9, generated.Load(), "active chunks are not prefetched")
}

func TestPrefetchHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m, _, _ := newManager(t, Options{RenderDistance: 1})
	var generated atomic.Int64
	m.SetGenerateHook(func(*Chunk, time.Duration) { generated.Add(1) })

	err := m.Prefetch(ctx, WindowKeys(0, 0, 3))
	require.True(t, errors.Is(err, context.Canceled))
	require.Zero(t, generated.Load())
}

func TestUndergroundFiltersMinedBlocks(t *testing.T) {
	ctx := context.Background()
	m, ov, _ := newManager(t, Options{RenderDistance: 1})
	_, err := m.Update(ctx, 0.5, 0.5)
	require.NoError(t, err)

	blocks, err := m.Underground(ctx, 0.5, 0.5)
	require.NoError(t, err)
	require.Len(t, blocks, 9*chunk.Cells)
	require.Equal(t, chunk.BlockPos{}, blocks[0].Pos)
	for _, b := range blocks {
		require.Equal(t, 0, b.Pos.Y)
	}

	require.NoError(t, ov.Mine(ctx, chunk.BlockPos{}))
	blocks, err = m.Underground(ctx, 0.5, 0.5)
	require.NoError(t, err)
	require.Len(t, blocks, 9*chunk.Cells-1)
	for _, b := range blocks {
		require.NotEqual(t, chunk.BlockPos{}, b.Pos)
	}
}

func TestUndergroundDepthAndCap(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newManager(t, Options{RenderDistance: 0, UndergroundRadius: 0, SubsurfaceDepth: 3, MaxUndergroundBlocks: 10})
	blocks, err := m.Underground(ctx, 8.5, 8.5)
	require.NoError(t, err)
	require.Len(t, blocks, 10)
	require.Equal(t, chunk.BlockPos{X: 8, Y: 0, Z: 8}, blocks[0].Pos)

	m, _, _ = newManager(t, Options{UndergroundRadius: 0, SubsurfaceDepth: 3})
	blocks, err = m.Underground(ctx, 8.5, 8.5)
	require.NoError(t, err)
	require.Len(t, blocks, chunk.Cells*4)
	for _, b := range blocks {
		require.GreaterOrEqual(t, b.Pos.Y, -3)
	}
}

func TestLeavingChunkEvictsOverlay(t *testing.T) {
	ctx := context.Background()
	m, ov, backend := newManager(t, Options{RenderDistance: 0})
	_, err := m.Update(ctx, 1, 1)
	require.NoError(t, err)
	require.NoError(t, ov.Mine(ctx, chunk.BlockPos{X: 1, Y: 0, Z: 1}))

	w, err := m.Update(ctx, 1000, 1000)
	require.NoError(t, err)
	require.Equal(t, []chunk.Key{{}}, w.Left)
	require.Equal(t, 1, ov.Resident())
	require.Equal(t, 1, backend.Len())

	require.NoError(t, m.Close(ctx))
	require.Equal(t, 0, ov.Resident())
}
