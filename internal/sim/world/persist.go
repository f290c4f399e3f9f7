package world

import (
	"context"
	"fmt"
	"time"

	"harvestcraft.ai/internal/persistence/snapshot"
	"harvestcraft.ai/internal/sim/overlay"
	"harvestcraft.ai/internal/sim/terrain/gen"
)

// Save writes the seed, generator options and every overlay record.
func (s *Session) Save(ctx context.Context, path string) error {
	records, err := s.overlays.Export(ctx)
	if err != nil {
		return fmt.Errorf("export overlays: %w", err)
	}
	opts := s.gen.Options()
	snap := snapshot.WorldV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: s.cfg.WorldID,
			SavedAt: s.now().Unix(),
		},
		Seed:             s.cfg.Seed,
		ConfigDigest:     s.cfg.ConfigDigest,
		BlocksDigest:     s.cats.Blocks.DefsDigest,
		SpawnClearRadius: opts.SpawnClearRadius,
		VillageGrid:      opts.VillageGrid,
		VillageRadius:    opts.VillageRadius,
		VillagePermille:  opts.VillagePermille,
		Overlays:         make([]snapshot.OverlayV1, 0, len(records)),
	}
	for _, r := range records {
		snap.Overlays = append(snap.Overlays, overlayToSnapshot(r))
	}
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	s.logf("saved %s: %d overlay chunks", path, len(records))
	return nil
}

// Load imports the overlays of a snapshot taken from a world with the same
// seed and generator options. Chunks edited after the snapshot was taken
// keep their newer state.
func (s *Session) Load(ctx context.Context, path string) error {
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return err
	}
	if snap.Seed != s.cfg.Seed {
		return fmt.Errorf("%w: snapshot %d, world %d", ErrSeedMismatch, snap.Seed, s.cfg.Seed)
	}
	want := gen.Options{
		SpawnClearRadius: snap.SpawnClearRadius,
		VillageGrid:      snap.VillageGrid,
		VillageRadius:    snap.VillageRadius,
		VillagePermille:  snap.VillagePermille,
	}
	if want != s.gen.Options() {
		return fmt.Errorf("%w: generator options differ", ErrSeedMismatch)
	}
	if snap.ConfigDigest != s.cfg.ConfigDigest {
		s.logf("load %s: config digest %q differs from %q", path, snap.ConfigDigest, s.cfg.ConfigDigest)
	}
	records := make([]overlay.RecordV1, 0, len(snap.Overlays))
	for _, o := range snap.Overlays {
		r, err := overlayFromSnapshot(o)
		if err != nil {
			return err
		}
		records = append(records, r)
	}
	if err := s.overlays.Import(ctx, records); err != nil {
		return err
	}
	s.logf("loaded %s: %d overlay chunks", path, len(records))
	return nil
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func overlayToSnapshot(r overlay.RecordV1) snapshot.OverlayV1 {
	out := snapshot.OverlayV1{CX: r.CX, CZ: r.CZ, Mined: r.Mined, UpdatedMs: r.UpdatedMs}
	for _, p := range r.Plots {
		out.Plots = append(out.Plots, snapshot.PlotV1{
			Pos:       p.Pos,
			State:     string(p.State),
			Crop:      p.Crop,
			Watered:   p.Watered,
			PlantedAt: unixMilli(p.PlantedAt),
			GrowStart: unixMilli(p.GrowStart),
			GrowForMs: p.GrowFor.Milliseconds(),
		})
	}
	return out
}

func overlayFromSnapshot(o snapshot.OverlayV1) (overlay.RecordV1, error) {
	out := overlay.RecordV1{CX: o.CX, CZ: o.CZ, Mined: o.Mined, UpdatedMs: o.UpdatedMs}
	for _, p := range o.Plots {
		switch overlay.PlotState(p.State) {
		case overlay.PlotEmpty, overlay.PlotTilled, overlay.PlotWatered, overlay.PlotPlanted, overlay.PlotReady:
		default:
			return overlay.RecordV1{}, fmt.Errorf("plot %s: unknown state %q", p.Pos, p.State)
		}
		out.Plots = append(out.Plots, overlay.PlotV1{
			Pos: p.Pos,
			Plot: overlay.Plot{
				State:     overlay.PlotState(p.State),
				Crop:      p.Crop,
				Watered:   p.Watered,
				PlantedAt: fromUnixMilli(p.PlantedAt),
				GrowStart: fromUnixMilli(p.GrowStart),
				GrowFor:   time.Duration(p.GrowForMs) * time.Millisecond,
			},
		})
	}
	return out, nil
}
