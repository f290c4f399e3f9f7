package ws

import (
	"context"
	"errors"
	"sort"

	"harvestcraft.ai/internal/protocol"
	"harvestcraft.ai/internal/sim/catalogs"
	"harvestcraft.ai/internal/sim/overlay"
	"harvestcraft.ai/internal/sim/terrain/chunk"
	"harvestcraft.ai/internal/sim/terrain/store"
	"harvestcraft.ai/internal/sim/world"
)

func chunkPayload(c *store.Chunk, plots map[chunk.CellPos]overlay.Plot) protocol.ChunkPayload {
	p := protocol.ChunkPayload{
		Key:         c.Key.String(),
		CX:          c.Key.CX,
		CZ:          c.Key.CZ,
		GroundColor: c.GroundColor,
		Heights:     make([]float64, chunk.Cells),
		Biomes:      make([]string, chunk.Cells),
		Colors:      make([]string, chunk.Cells),
		Trees:       make([]protocol.TreeInfo, 0, len(c.Trees)),
		Digest:      c.DigestHex(),
	}
	for i := 0; i < chunk.Cells; i++ {
		p.Heights[i] = c.Heights[i]
		p.Biomes[i] = string(c.Biomes[i])
		p.Colors[i] = c.Colors[i]
	}
	for _, t := range c.Trees {
		p.Trees = append(p.Trees, protocol.TreeInfo{ID: t.ID, X: t.X, Z: t.Z, Height: t.Height, Biome: string(t.Biome)})
	}
	cells := make([]chunk.CellPos, 0, len(plots))
	for cell := range plots {
		cells = append(cells, cell)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].X != cells[j].X {
			return cells[i].X < cells[j].X
		}
		return cells[i].Z < cells[j].Z
	})
	for _, cell := range cells {
		pl := plots[cell]
		p.Plots = append(p.Plots, protocol.PlotInfo{Pos: [2]int{cell.X, cell.Z}, State: string(pl.State), Crop: pl.Crop})
	}
	return p
}

func chunksMsg(ctx context.Context, ov *overlay.Store, w store.Window) (protocol.ChunksMsg, error) {
	msg := protocol.ChunksMsg{
		Type:            protocol.TypeChunks,
		ProtocolVersion: protocol.Version,
		Center:          [2]int{w.Center.CX, w.Center.CZ},
		Entered:         make([]protocol.ChunkPayload, 0, len(w.Entered)),
		Left:            make([]string, 0, len(w.Left)),
		Pending:         w.Pending,
	}
	for _, k := range w.Entered {
		plots, err := ov.PlotsIn(ctx, k)
		if err != nil {
			return msg, err
		}
		msg.Entered = append(msg.Entered, chunkPayload(w.Chunks[k], plots))
	}
	for _, k := range w.Left {
		msg.Left = append(msg.Left, k.String())
	}
	return msg, nil
}

func undergroundMsg(blocks []store.BlockRecord) protocol.UndergroundMsg {
	msg := protocol.UndergroundMsg{
		Type:            protocol.TypeUnderground,
		ProtocolVersion: protocol.Version,
		Blocks:          make([]protocol.BlockCell, 0, len(blocks)),
	}
	for _, b := range blocks {
		msg.Blocks = append(msg.Blocks, protocol.BlockCell{Pos: [3]int{b.Pos.X, b.Pos.Y, b.Pos.Z}, Block: b.Block})
	}
	return msg
}

func welcomeMsg(s *world.Session, sessionID, tuningDigest string) protocol.WelcomeMsg {
	cats := s.Catalogs()
	msg := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		WorldID:         s.ID(),
		Seed:            s.Seed(),
		ChunkSize:       chunk.Size,
		RenderDistance:  s.StoreOptions().RenderDistance,
		Crops:           append([]string(nil), cats.Crops.IDs...),
		PaletteDigest:   cats.Blocks.PaletteDigest,
		TuningDigest:    tuningDigest,
	}
	for _, id := range cats.Blocks.Palette {
		d := cats.Blocks.Defs[id]
		msg.BlockPalette = append(msg.BlockPalette, protocol.BlockInfo{ID: d.ID, Color: d.Color, Hardness: d.Hardness, Tool: d.Tool})
	}
	return msg
}

// CodeFor maps domain errors to protocol error codes. nil maps to "".
func CodeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, world.ErrOutOfRange):
		return protocol.ErrOutOfRange
	case errors.Is(err, world.ErrNotMineable),
		errors.Is(err, world.ErrNotFarmable),
		errors.Is(err, catalogs.ErrUnbreakable),
		errors.Is(err, overlay.ErrGroundMined):
		return protocol.ErrInvalidTarget
	case errors.Is(err, catalogs.ErrUnknownBlock),
		errors.Is(err, catalogs.ErrUnknownTool),
		errors.Is(err, catalogs.ErrUnknownCrop):
		return protocol.ErrUnknownID
	case errors.Is(err, overlay.ErrAlreadyMined),
		errors.Is(err, overlay.ErrAlreadyTilled),
		errors.Is(err, overlay.ErrAlreadyWatered),
		errors.Is(err, overlay.ErrOccupied):
		return protocol.ErrConflict
	case errors.Is(err, overlay.ErrNotTilled),
		errors.Is(err, overlay.ErrNotReady):
		return protocol.ErrNotReady
	default:
		return protocol.ErrInternal
	}
}
