package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestDefaultsValidate(t *testing.T) {
	d := Defaults()
	if err := d.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	got, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if got.Digest() != d.Digest() {
		t.Fatalf("empty path should yield defaults")
	}
}

func TestLoadRepoConfig(t *testing.T) {
	got, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Digest() != Defaults().Digest() {
		t.Fatalf("configs/tuning.yaml drifted from Defaults: %+v", got)
	}
}

func TestLoadPartialFillsDefaults(t *testing.T) {
	got, err := Load(writeYAML(t, "seed: 7\nchunks:\n  render_distance: 3\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Seed != 7 || got.Chunks.RenderDistance != 3 {
		t.Fatalf("overrides lost: %+v", got)
	}
	if got.Chunks.ChunksPerStep != 4 || got.Terrain.VillageGrid != 256 {
		t.Fatalf("defaults not kept: %+v", got)
	}
	if o := got.StoreOptions(); o.RenderDistance != 3 || o.Workers != 4 {
		t.Fatalf("store options: %+v", o)
	}
	if o := got.GenOptions(); o.SpawnClearRadius != 6 {
		t.Fatalf("gen options: %+v", o)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"render distance":  "chunks:\n  render_distance: 40\n",
		"negative depth":   "chunks:\n  subsurface_depth: -1\n",
		"deep":             "chunks:\n  subsurface_depth: 11\n",
		"permille":         "terrain:\n  village_permille: 1200\n",
		"village radius":   "terrain:\n  village_grid: 32\n  village_radius: 20\n",
		"underground":      "chunks:\n  render_distance: 1\n  underground_radius: 2\n",
		"protocol":         "protocol_version: \"2.0\"\n",
		"world id":         "world_id: \"bad id!\"\n",
		"negative workers": "chunks:\n  prefetch_workers: -2\n",
	}
	for name, body := range cases {
		if _, err := Load(writeYAML(t, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadReportsYAMLErrors(t *testing.T) {
	_, err := Load(writeYAML(t, "chunks: [1, 2\n"))
	if err == nil || !strings.Contains(err.Error(), "tuning.yaml") {
		t.Fatalf("err=%v", err)
	}
}
