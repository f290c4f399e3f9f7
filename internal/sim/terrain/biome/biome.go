package biome

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

type Biome string

const (
	Grassland  Biome = "grassland"
	Desert     Biome = "desert"
	Snow       Biome = "snow"
	Rainforest Biome = "rainforest"
	River      Biome = "river"
	Village    Biome = "village"
)

// All lists every biome in a fixed order.
var All = []Biome{Grassland, Desert, Snow, Rainforest, River, Village}

type Def struct {
	Color      string  `json:"color"`
	TreeChance float64 `json:"tree_chance"`
}

var defs = map[Biome]Def{
	Grassland:  {Color: "#5a8f3d", TreeChance: 0.05},
	Desert:     {Color: "#e2c98f", TreeChance: 0.01},
	Snow:       {Color: "#eef3f7", TreeChance: 0.03},
	Rainforest: {Color: "#2f6b2a", TreeChance: 0.20},
	River:      {Color: "#3f7cc0", TreeChance: 0},
	Village:    {Color: "#9c8462", TreeChance: 0},
}

func (b Biome) Valid() bool {
	_, ok := defs[b]
	return ok
}

// Color falls back to grassland for unknown biomes.
func (b Biome) Color() string {
	if d, ok := defs[b]; ok {
		return d.Color
	}
	return defs[Grassland].Color
}

func (b Biome) TreeChance() float64 {
	return defs[b].TreeChance
}

func (b Biome) String() string { return string(b) }

// Parse resolves a biome name case-insensitively. Unknown names report the
// closest known biome.
func Parse(s string) (Biome, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if b := Biome(name); b.Valid() {
		return b, nil
	}
	best := ""
	bestDist := -1
	for _, b := range All {
		d := levenshtein.ComputeDistance(name, string(b))
		if bestDist < 0 || d < bestDist {
			best, bestDist = string(b), d
		}
	}
	if bestDist >= 0 && bestDist <= 3 {
		return "", fmt.Errorf("unknown biome %q (did you mean %q?)", s, best)
	}
	return "", fmt.Errorf("unknown biome %q", s)
}
