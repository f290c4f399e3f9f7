package world

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"harvestcraft.ai/internal/sim/catalogs"
	"harvestcraft.ai/internal/sim/overlay"
	"harvestcraft.ai/internal/sim/terrain/chunk"
	"harvestcraft.ai/internal/sim/terrain/store"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newSession(t *testing.T, seed int64) (*Session, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := New(Config{
		Seed:  seed,
		Store: store.Options{RenderDistance: 1},
		Now:   clk.Now,
	})
	return s, clk
}

func joinAt(t *testing.T, s *Session, id string, x, z float64) *Viewer {
	t.Helper()
	v, err := s.Join(id, id)
	require.NoError(t, err)
	_, err = v.Move(context.Background(), x, z)
	require.NoError(t, err)
	return v
}

func TestJoinRejectsDuplicate(t *testing.T) {
	s, _ := newSession(t, 42)
	_, err := s.Join("a", "alice")
	require.NoError(t, err)
	_, err = s.Join("a", "again")
	require.ErrorIs(t, err, ErrViewerExists)
	require.Equal(t, []string{"a"}, s.ViewerIDs())
	require.ErrorIs(t, s.Leave(context.Background(), "missing"), ErrUnknownViewer)
}

func TestMine(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession(t, 42)
	v := joinAt(t, s, "a", 0.5, 0.5)

	res, err := v.Mine(ctx, chunk.BlockPos{}, "shovel")
	require.NoError(t, err)
	require.Equal(t, catalogs.Grass, res.Block)
	require.Equal(t, "DIRT", res.Drop)
	require.Equal(t, 0.6, res.Seconds)

	_, err = v.Mine(ctx, chunk.BlockPos{}, "shovel")
	require.ErrorIs(t, err, overlay.ErrAlreadyMined)

	res, err = v.Mine(ctx, chunk.BlockPos{X: 1, Y: 0, Z: 0}, "")
	require.NoError(t, err)
	require.Equal(t, 1.2, res.Seconds, "bare hands take twice as long")

	_, err = v.Mine(ctx, chunk.BlockPos{X: 1000, Y: 0, Z: 0}, "")
	require.ErrorIs(t, err, ErrOutOfRange)
	_, err = v.Mine(ctx, chunk.BlockPos{X: 3, Y: -10, Z: 3}, "pickaxe")
	require.ErrorIs(t, err, ErrNotMineable)
	_, err = v.Mine(ctx, chunk.BlockPos{X: 3, Y: 1, Z: 3}, "")
	require.ErrorIs(t, err, ErrNotMineable)
	_, err = v.Mine(ctx, chunk.BlockPos{X: 3, Y: 0, Z: 3}, "spoon")
	require.ErrorIs(t, err, catalogs.ErrUnknownTool)

	blocks, err := v.Underground(ctx)
	require.NoError(t, err)
	for _, b := range blocks {
		require.NotEqual(t, chunk.BlockPos{}, b.Pos)
	}
}

func TestFarmingCycle(t *testing.T) {
	ctx := context.Background()
	s, clk := newSession(t, 42)
	v := joinAt(t, s, "a", 0.5, 0.5)
	cell := chunk.CellPos{X: 1, Z: 1}

	_, err := v.Plant(ctx, cell, "WHEAT")
	require.ErrorIs(t, err, overlay.ErrNotTilled)

	p, err := v.Till(ctx, cell)
	require.NoError(t, err)
	require.Equal(t, overlay.PlotTilled, p.State)

	_, err = v.Plant(ctx, cell, "WHEET")
	require.ErrorIs(t, err, catalogs.ErrUnknownCrop)

	p, err = v.Plant(ctx, cell, "WHEAT")
	require.NoError(t, err)
	require.Equal(t, overlay.PlotPlanted, p.State)
	require.True(t, p.ReadyAt().IsZero(), "crops only grow once watered")

	clk.Advance(10 * time.Minute)
	_, err = v.Harvest(ctx, cell)
	require.ErrorIs(t, err, overlay.ErrNotReady)

	_, err = v.Water(ctx, cell)
	require.NoError(t, err)
	clk.Advance(59 * time.Second)
	require.Zero(t, s.Tick())
	clk.Advance(time.Second)
	require.Equal(t, 1, s.Tick())

	got, err := v.Harvest(ctx, cell)
	require.NoError(t, err)
	require.Equal(t, HarvestResult{Crop: "WHEAT", Item: "WHEAT", Count: 2}, got)

	plot, err := s.Overlays().Plot(ctx, cell)
	require.NoError(t, err)
	require.Equal(t, overlay.PlotTilled, plot.State)
}

func TestTillRejectsMinedGround(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession(t, 42)
	v := joinAt(t, s, "a", 0.5, 0.5)
	_, err := v.Mine(ctx, chunk.BlockPos{X: 2, Y: 0, Z: 2}, "shovel")
	require.NoError(t, err)
	_, err = v.Till(ctx, chunk.CellPos{X: 2, Z: 2})
	require.ErrorIs(t, err, overlay.ErrGroundMined)
	_, err = v.Till(ctx, chunk.CellPos{X: 500, Z: 2})
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestHooks(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession(t, 42)
	var mu sync.Mutex
	chunks := 0
	var actions []Action
	s.SetHooks(Hooks{
		OnChunk: func(viewer string, c *store.Chunk, _ time.Duration) {
			mu.Lock()
			chunks++
			mu.Unlock()
			require.Equal(t, "a", viewer)
		},
		OnAction: func(a Action) {
			mu.Lock()
			actions = append(actions, a)
			mu.Unlock()
		},
	})
	v := joinAt(t, s, "a", 0.5, 0.5)
	require.Equal(t, 9, chunks)

	_, _ = v.Mine(ctx, chunk.BlockPos{}, "")
	_, _ = v.Mine(ctx, chunk.BlockPos{}, "")
	require.Len(t, actions, 2)
	require.Equal(t, "MINE", actions[0].Kind)
	require.NoError(t, actions[0].Err)
	require.True(t, errors.Is(actions[1].Err, overlay.ErrAlreadyMined))
}

func TestChunkHookSetAfterJoin(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession(t, 42)
	v, err := s.Join("a", "alice")
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []chunk.Key
	s.SetHooks(Hooks{OnChunk: func(viewer string, c *store.Chunk, _ time.Duration) {
		mu.Lock()
		seen = append(seen, c.Key)
		mu.Unlock()
	}})
	_, err = v.Move(ctx, 0.5, 0.5)
	require.NoError(t, err)
	require.Len(t, seen, 9)

	s.SetHooks(Hooks{})
	_, err = v.Move(ctx, 40.5, 0.5)
	require.NoError(t, err)
	require.Len(t, seen, 9, "cleared hook still fired")
	require.Equal(t, int64(15), s.Metrics().ChunksGenerated)
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "world.snap.zst")

	a, _ := newSession(t, 7)
	va := joinAt(t, a, "a", 0.5, 0.5)
	_, err := va.Mine(ctx, chunk.BlockPos{X: 4, Y: 0, Z: 4}, "shovel")
	require.NoError(t, err)
	_, err = va.Till(ctx, chunk.CellPos{X: 5, Z: 5})
	require.NoError(t, err)
	require.NoError(t, a.Save(ctx, path))

	b, _ := newSession(t, 7)
	require.NoError(t, b.Load(ctx, path))
	mined, err := b.Overlays().IsMined(ctx, chunk.BlockPos{X: 4, Y: 0, Z: 4})
	require.NoError(t, err)
	require.True(t, mined)
	plot, err := b.Overlays().Plot(ctx, chunk.CellPos{X: 5, Z: 5})
	require.NoError(t, err)
	require.Equal(t, overlay.PlotTilled, plot.State)

	c, _ := newSession(t, 8)
	require.ErrorIs(t, c.Load(ctx, path), ErrSeedMismatch)
}

func TestLoadKeepsEditsNewerThanSnapshot(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "world.snap.zst")
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cfg := Config{
		Seed:    42,
		Store:   store.Options{RenderDistance: 1},
		Backend: overlay.NewMemoryBackend(),
		Now:     clk.Now,
	}

	a := New(cfg)
	v := joinAt(t, a, "a", 0.5, 0.5)
	_, err := v.Mine(ctx, chunk.BlockPos{X: 1, Y: 0, Z: 1}, "shovel")
	require.NoError(t, err)
	require.NoError(t, a.Save(ctx, path))

	clk.Advance(time.Minute)
	_, err = v.Mine(ctx, chunk.BlockPos{X: 2, Y: 0, Z: 2}, "shovel")
	require.NoError(t, err)
	require.NoError(t, a.Leave(ctx, "a"))
	require.Equal(t, 0, a.Overlays().Resident())

	b := New(cfg)
	require.NoError(t, b.Load(ctx, path))
	for _, pos := range []chunk.BlockPos{{X: 1, Y: 0, Z: 1}, {X: 2, Y: 0, Z: 2}} {
		mined, err := b.Overlays().IsMined(ctx, pos)
		require.NoError(t, err)
		require.True(t, mined, "%s reverted by load", pos)
	}
}

func TestLeaveReleasesOverlays(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession(t, 42)
	joinAt(t, s, "a", 0.5, 0.5)
	joinAt(t, s, "b", 20, 0.5)
	require.Equal(t, 12, s.Overlays().Resident())

	require.NoError(t, s.Leave(ctx, "a"))
	require.Equal(t, 9, s.Overlays().Resident())
	require.NoError(t, s.Close(ctx))
	require.Equal(t, 0, s.Overlays().Resident())
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession(t, 42)
	v := joinAt(t, s, "a", 0.5, 0.5)
	_, _ = v.Mine(ctx, chunk.BlockPos{}, "")
	_, _ = v.Mine(ctx, chunk.BlockPos{}, "")
	m := s.Metrics()
	require.Equal(t, Metrics{
		Viewers:          1,
		ActiveChunks:     9,
		ResidentOverlays: 9,
		ChunksGenerated:  9,
		Actions:          2,
		ActionsRejected:  1,
	}, m)
}
