package world

import (
	"context"
	"fmt"
	"sync"

	"harvestcraft.ai/internal/sim/catalogs"
	"harvestcraft.ai/internal/sim/overlay"
	"harvestcraft.ai/internal/sim/terrain/biome"
	"harvestcraft.ai/internal/sim/terrain/chunk"
	"harvestcraft.ai/internal/sim/terrain/store"
)

type Viewer struct {
	ID   string
	Name string

	s   *Session
	mgr *store.Manager

	mu     sync.Mutex
	x, z   float64
	placed bool
}

func (v *Viewer) Pos() (x, z float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.x, v.z
}

func (v *Viewer) setPos(x, z float64) {
	v.mu.Lock()
	v.x, v.z, v.placed = x, z, true
	v.mu.Unlock()
}

func (v *Viewer) Manager() *store.Manager { return v.mgr }

// Move places the viewer and generates its whole window.
func (v *Viewer) Move(ctx context.Context, x, z float64) (store.Window, error) {
	v.setPos(x, z)
	return v.mgr.Update(ctx, x, z)
}

// MoveStep places the viewer and generates at most ChunksPerStep chunks.
func (v *Viewer) MoveStep(ctx context.Context, x, z float64) (store.Window, error) {
	v.setPos(x, z)
	return v.mgr.Step(ctx, x, z)
}

// Continue resumes amortized generation at the current position.
func (v *Viewer) Continue(ctx context.Context) (store.Window, error) {
	x, z := v.Pos()
	return v.mgr.Step(ctx, x, z)
}

// PrefetchAhead generates the ring just outside the render distance.
func (v *Viewer) PrefetchAhead(ctx context.Context) error {
	x, z := v.Pos()
	keys := store.WindowKeys(x, z, v.mgr.Options().RenderDistance+1)
	return v.mgr.Prefetch(ctx, keys)
}

func (v *Viewer) Underground(ctx context.Context) ([]store.BlockRecord, error) {
	x, z := v.Pos()
	return v.mgr.Underground(ctx, x, z)
}

func (v *Viewer) inWindow(k chunk.Key) (*store.Chunk, error) {
	c, ok := v.mgr.Active(k)
	if !ok {
		return nil, fmt.Errorf("%w: chunk %s", ErrOutOfRange, k)
	}
	return c, nil
}

type MineResult struct {
	Pos     chunk.BlockPos
	Block   string
	Drop    string
	Seconds float64
}

// Mine removes a block inside the viewer's window.
func (v *Viewer) Mine(ctx context.Context, pos chunk.BlockPos, tool string) (res MineResult, err error) {
	defer func() {
		v.s.report(Action{Time: v.s.now(), Viewer: v.ID, Kind: "MINE", Pos: pos.String(), Detail: res.Block, Err: err})
	}()
	tool, err = catalogs.NormalizeTool(tool)
	if err != nil {
		return MineResult{}, err
	}
	if _, err := v.inWindow(pos.Chunk()); err != nil {
		return MineResult{}, err
	}
	block := v.s.ores.BlockAt(pos.X, pos.Y, pos.Z)
	def, err := v.s.cats.Blocks.Lookup(block)
	if err != nil {
		return MineResult{}, err
	}
	if !def.Breakable {
		return MineResult{}, fmt.Errorf("%w: %s at %s", ErrNotMineable, block, pos)
	}
	secs, err := v.s.cats.Blocks.MiningTime(block, tool)
	if err != nil {
		return MineResult{}, err
	}
	if err := v.s.overlays.Mine(ctx, pos); err != nil {
		return MineResult{}, err
	}
	return MineResult{Pos: pos, Block: block, Drop: def.DropsItem, Seconds: secs}, nil
}

func (v *Viewer) farmable(c chunk.CellPos) error {
	ch, err := v.inWindow(c.Chunk())
	if err != nil {
		return err
	}
	lx, lz := chunk.Local(c.X, c.Z)
	if b := ch.Biome(lx, lz); b == biome.River {
		return fmt.Errorf("%w: %s is %s", ErrNotFarmable, c, b)
	}
	return nil
}

func (v *Viewer) plotAction(kind string, c chunk.CellPos, detail string, op func() (overlay.Plot, error)) (p overlay.Plot, err error) {
	defer func() {
		v.s.report(Action{Time: v.s.now(), Viewer: v.ID, Kind: kind, Pos: c.String(), Detail: detail, Err: err})
	}()
	if err := v.farmable(c); err != nil {
		return overlay.Plot{}, err
	}
	return op()
}

func (v *Viewer) Till(ctx context.Context, c chunk.CellPos) (overlay.Plot, error) {
	return v.plotAction("TILL", c, "", func() (overlay.Plot, error) {
		return v.s.overlays.Till(ctx, c)
	})
}

func (v *Viewer) Water(ctx context.Context, c chunk.CellPos) (overlay.Plot, error) {
	return v.plotAction("WATER", c, "", func() (overlay.Plot, error) {
		return v.s.overlays.Water(ctx, c, v.s.now())
	})
}

func (v *Viewer) Plant(ctx context.Context, c chunk.CellPos, crop string) (overlay.Plot, error) {
	return v.plotAction("PLANT", c, crop, func() (overlay.Plot, error) {
		def, err := v.s.cats.Crops.Lookup(crop)
		if err != nil {
			return overlay.Plot{}, err
		}
		return v.s.overlays.Plant(ctx, c, def.ID, def.GrowTime(), v.s.now())
	})
}

type HarvestResult struct {
	Crop  string
	Item  string
	Count int
}

func (v *Viewer) Harvest(ctx context.Context, c chunk.CellPos) (res HarvestResult, err error) {
	_, err = v.plotAction("HARVEST", c, "", func() (overlay.Plot, error) {
		crop, err := v.s.overlays.Harvest(ctx, c, v.s.now())
		if err != nil {
			return overlay.Plot{}, err
		}
		def, err := v.s.cats.Crops.Lookup(crop)
		if err != nil {
			return overlay.Plot{}, err
		}
		res = HarvestResult{Crop: def.ID, Item: def.YieldItem, Count: def.YieldCount}
		return overlay.Plot{}, nil
	})
	if err != nil {
		return HarvestResult{}, err
	}
	return res, nil
}
