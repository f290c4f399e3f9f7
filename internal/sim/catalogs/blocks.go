package catalogs

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Block ids.
const (
	Air        = "AIR"
	Grass      = "GRASS"
	Dirt       = "DIRT"
	Stone      = "STONE"
	CoalOre    = "COAL_ORE"
	IronOre    = "IRON_ORE"
	GoldOre    = "GOLD_ORE"
	DiamondOre = "DIAMOND_ORE"
	Bedrock    = "BEDROCK"
	Wood       = "WOOD"
)

// Tools. NoTool is mining bare-handed.
const (
	NoTool  = ""
	Shovel  = "shovel"
	Pickaxe = "pickaxe"
	Axe     = "axe"
)

var knownTools = []string{Shovel, Pickaxe, Axe}

type BlockDef struct {
	ID        string  `json:"id"`
	Color     string  `json:"color"`
	Hardness  float64 `json:"hardness"` // seconds with the right tool
	Tool      string  `json:"tool,omitempty"`
	DropsItem string  `json:"drops_item,omitempty"`
	Breakable bool    `json:"breakable"`
}

func DefaultBlocks() []BlockDef {
	return []BlockDef{
		{ID: Air, Color: "#000000"},
		{ID: Grass, Color: "#5a8f3d", Hardness: 0.6, Tool: Shovel, DropsItem: "DIRT", Breakable: true},
		{ID: Dirt, Color: "#8b5a2b", Hardness: 0.5, Tool: Shovel, DropsItem: "DIRT", Breakable: true},
		{ID: Stone, Color: "#7f7f7f", Hardness: 1.5, Tool: Pickaxe, DropsItem: "STONE", Breakable: true},
		{ID: CoalOre, Color: "#363636", Hardness: 3, Tool: Pickaxe, DropsItem: "COAL", Breakable: true},
		{ID: IronOre, Color: "#c9a27e", Hardness: 3, Tool: Pickaxe, DropsItem: "IRON", Breakable: true},
		{ID: GoldOre, Color: "#f2d14b", Hardness: 3, Tool: Pickaxe, DropsItem: "GOLD", Breakable: true},
		{ID: DiamondOre, Color: "#5fe3e8", Hardness: 5, Tool: Pickaxe, DropsItem: "DIAMOND", Breakable: true},
		{ID: Bedrock, Color: "#1c1c1c"},
		{ID: Wood, Color: "#8b6a2f", Hardness: 2, Tool: Axe, DropsItem: "WOOD", Breakable: true},
	}
}

type BlockCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]BlockDef
	PaletteDigest string
	DefsDigest    string
}

func (c *BlockCatalog) build(defs []BlockDef, raw []byte) error {
	if raw == nil {
		raw, _ = json.Marshal(defs)
	}
	out := BlockCatalog{
		Defs:       make(map[string]BlockDef, len(defs)),
		DefsDigest: sha256Hex(raw),
	}
	for _, d := range defs {
		d.ID = strings.ToUpper(strings.TrimSpace(d.ID))
		if d.ID == "" {
			return fmt.Errorf("empty id")
		}
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("duplicate id %s", d.ID)
		}
		if d.Hardness < 0 {
			return fmt.Errorf("%s: negative hardness", d.ID)
		}
		if d.Tool != NoTool && !isKnownTool(d.Tool) {
			return fmt.Errorf("%s: %w", d.ID, unknown(ErrUnknownTool, d.Tool, knownTools))
		}
		out.Defs[d.ID] = d
	}

	// AIR is palette id 0.
	if _, ok := out.Defs[Air]; !ok {
		return fmt.Errorf("missing AIR")
	}
	ids := append([]string{Air}, filterOut(sortedKeys(out.Defs), Air)...)
	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)

	*c = out
	return nil
}

// Lookup returns the definition of id, suggesting a close match when the id
// is unknown.
func (c *BlockCatalog) Lookup(id string) (BlockDef, error) {
	if d, ok := c.Defs[id]; ok {
		return d, nil
	}
	if d, ok := c.Defs[strings.ToUpper(strings.TrimSpace(id))]; ok {
		return d, nil
	}
	return BlockDef{}, unknown(ErrUnknownBlock, id, c.Palette)
}

// MiningTime is the block's hardness with its required tool and twice that
// with any other tool or bare hands. Blocks without a required tool always
// take their base hardness.
func (c *BlockCatalog) MiningTime(blockID, tool string) (float64, error) {
	d, err := c.Lookup(blockID)
	if err != nil {
		return 0, err
	}
	if !d.Breakable {
		return 0, fmt.Errorf("%w: %s", ErrUnbreakable, d.ID)
	}
	tool, err = NormalizeTool(tool)
	if err != nil {
		return 0, err
	}
	if d.Tool == NoTool || tool == d.Tool {
		return d.Hardness, nil
	}
	return d.Hardness * 2, nil
}

// NormalizeTool lowercases tool names; "" and "none" mean bare hands.
func NormalizeTool(tool string) (string, error) {
	t := strings.ToLower(strings.TrimSpace(tool))
	if t == "" || t == "none" || t == "hand" {
		return NoTool, nil
	}
	if isKnownTool(t) {
		return t, nil
	}
	return "", unknown(ErrUnknownTool, tool, knownTools)
}

func isKnownTool(t string) bool {
	for _, k := range knownTools {
		if k == t {
			return true
		}
	}
	return false
}
