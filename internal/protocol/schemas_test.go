package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"harvestcraft.ai/internal/protocol"
)

func compile(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

func asJSON(t *testing.T, v any) any {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func validate(t *testing.T, s *jsonschema.Schema, v any) {
	t.Helper()
	if err := s.Validate(asJSON(t, v)); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func chunkPayload() protocol.ChunkPayload {
	c := protocol.ChunkPayload{
		Key:         "-1,0",
		CX:          -1,
		CZ:          0,
		GroundColor: "#5a8f3d",
		Digest:      strings.Repeat("ab", 32),
		Trees:       []protocol.TreeInfo{{ID: "tree_-7_3", X: -7, Z: 3, Height: 1.2, Biome: "grassland"}},
		Plots:       []protocol.PlotInfo{{Pos: [2]int{-3, 4}, State: "planted", Crop: "WHEAT"}},
	}
	for i := 0; i < 256; i++ {
		c.Heights = append(c.Heights, 1.0)
		c.Biomes = append(c.Biomes, "grassland")
		c.Colors = append(c.Colors, "#5a8f3d")
	}
	return c
}

func TestSchemas_ValidateMessages(t *testing.T) {
	x := 3.5
	validate(t, compile(t, "hello.schema.json"), protocol.HelloMsg{
		Type: protocol.TypeHello, ProtocolVersion: protocol.Version, Name: "bot1", X: &x,
	})
	validate(t, compile(t, "welcome.schema.json"), protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       "s-1",
		WorldID:         "world_1",
		Seed:            42,
		ChunkSize:       16,
		RenderDistance:  2,
		BlockPalette:    []protocol.BlockInfo{{ID: "GRASS", Color: "#5a8f3d", Hardness: 0.6, Tool: "shovel"}},
		Crops:           []string{"WHEAT"},
		PaletteDigest:   "deadbeef",
	})
	validate(t, compile(t, "move.schema.json"), protocol.MoveMsg{
		Type: protocol.TypeMove, ProtocolVersion: protocol.Version, X: -5, Z: 0,
	})
	validate(t, compile(t, "chunks.schema.json"), protocol.ChunksMsg{
		Type:            protocol.TypeChunks,
		ProtocolVersion: protocol.Version,
		Center:          [2]int{-1, 0},
		Entered:         []protocol.ChunkPayload{chunkPayload()},
		Left:            []string{"1,0"},
		Pending:         3,
	})
	validate(t, compile(t, "underground.schema.json"), protocol.UndergroundMsg{
		Type:            protocol.TypeUnderground,
		ProtocolVersion: protocol.Version,
		Blocks:          []protocol.BlockCell{{Pos: [3]int{0, -2, 0}, Block: "COAL_ORE"}},
	})
	validate(t, compile(t, "act.schema.json"), protocol.ActMsg{
		Type: protocol.TypeAct, ProtocolVersion: protocol.Version, ID: "a1", Kind: protocol.ActMine, Pos: []int{0, 0, 0}, Tool: "shovel",
	})
	validate(t, compile(t, "act_result.schema.json"), protocol.ActResultMsg{
		Type: protocol.TypeActResult, ProtocolVersion: protocol.Version, ID: "a1", Kind: protocol.ActMine,
		OK: true, Block: "GRASS", Drop: "DIRT", Seconds: 0.6,
	})
}

func TestSchemas_RejectMalformed(t *testing.T) {
	act := compile(t, "act.schema.json")
	bad := []string{
		`{"type":"ACT","protocol_version":"1.0","id":"a","kind":"DANCE","pos":[0,0]}`,
		`{"type":"ACT","protocol_version":"1.0","id":"a","kind":"MINE","pos":[0,0]}`,
		`{"type":"ACT","protocol_version":"1.0","id":"a","kind":"PLANT","pos":[0,0]}`,
	}
	for _, raw := range bad {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			t.Fatalf("sample %s: %v", raw, err)
		}
		if err := act.Validate(v); err == nil {
			t.Fatalf("expected %s to be rejected", raw)
		}
	}

	chunks := compile(t, "chunks.schema.json")
	c := chunkPayload()
	c.Heights = c.Heights[:10]
	msg := protocol.ChunksMsg{Type: protocol.TypeChunks, ProtocolVersion: protocol.Version, Entered: []protocol.ChunkPayload{c}, Left: []string{}}
	if err := chunks.Validate(asJSON(t, msg)); err == nil {
		t.Fatalf("expected short heights to be rejected")
	}
}
