package biome

import (
	"strings"
	"testing"
)

func TestTreeChanceTable(t *testing.T) {
	want := map[Biome]float64{
		Grassland:  0.05,
		Desert:     0.01,
		Snow:       0.03,
		Rainforest: 0.20,
		River:      0,
		Village:    0,
	}
	for b, p := range want {
		if got := b.TreeChance(); got != p {
			t.Fatalf("%s tree chance = %v want %v", b, got, p)
		}
	}
}

func TestColorsDistinct(t *testing.T) {
	seen := map[string]Biome{}
	for _, b := range All {
		c := b.Color()
		if prev, ok := seen[c]; ok {
			t.Fatalf("%s and %s share color %s", prev, b, c)
		}
		seen[c] = b
	}
	if Biome("swamp").Color() != Grassland.Color() {
		t.Fatalf("unknown biome should fall back to grassland color")
	}
}

func TestParse(t *testing.T) {
	b, err := Parse(" Desert ")
	if err != nil || b != Desert {
		t.Fatalf("Parse(Desert) = %q, %v", b, err)
	}
	_, err = Parse("rainfrest")
	if err == nil || !strings.Contains(err.Error(), `"rainforest"`) {
		t.Fatalf("expected suggestion for rainfrest, got %v", err)
	}
	_, err = Parse("xxxxxxxxxxxx")
	if err == nil || strings.Contains(err.Error(), "did you mean") {
		t.Fatalf("expected plain error, got %v", err)
	}
}
