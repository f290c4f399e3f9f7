package tuning

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"harvestcraft.ai/internal/sim/terrain/gen"
	"harvestcraft.ai/internal/sim/terrain/store"
)

const ProtocolVersion = "1.0"

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version" json:"protocol_version"`
	WorldID         string `yaml:"world_id" json:"world_id"`
	Seed            int64  `yaml:"seed" json:"seed"`
	TickRateHz      int    `yaml:"tick_rate_hz" json:"tick_rate_hz"`

	Terrain Terrain `yaml:"terrain" json:"terrain"`
	Chunks  Chunks  `yaml:"chunks" json:"chunks"`
}

type Terrain struct {
	SpawnClearRadius int `yaml:"spawn_clear_radius" json:"spawn_clear_radius"`
	VillageGrid      int `yaml:"village_grid" json:"village_grid"`
	VillageRadius    int `yaml:"village_radius" json:"village_radius"`
	VillagePermille  int `yaml:"village_permille" json:"village_permille"`
}

type Chunks struct {
	RenderDistance       int `yaml:"render_distance" json:"render_distance"`
	ChunksPerStep        int `yaml:"chunks_per_step" json:"chunks_per_step"`
	PrefetchWorkers      int `yaml:"prefetch_workers" json:"prefetch_workers"`
	UndergroundRadius    int `yaml:"underground_radius" json:"underground_radius"`
	SubsurfaceDepth      int `yaml:"subsurface_depth" json:"subsurface_depth"`
	MaxUndergroundBlocks int `yaml:"max_underground_blocks" json:"max_underground_blocks"`
}

func Defaults() Tuning {
	g := gen.DefaultOptions()
	s := store.DefaultOptions()
	return Tuning{
		ProtocolVersion: ProtocolVersion,
		WorldID:         "world_1",
		Seed:            42,
		TickRateHz:      5,
		Terrain: Terrain{
			SpawnClearRadius: g.SpawnClearRadius,
			VillageGrid:      g.VillageGrid,
			VillageRadius:    g.VillageRadius,
			VillagePermille:  g.VillagePermille,
		},
		Chunks: Chunks{
			RenderDistance:       s.RenderDistance,
			ChunksPerStep:        s.ChunksPerStep,
			PrefetchWorkers:      s.Workers,
			UndergroundRadius:    s.UndergroundRadius,
			SubsurfaceDepth:      s.SubsurfaceDepth,
			MaxUndergroundBlocks: s.MaxUndergroundBlocks,
		},
	}
}

// Load reads a tuning file over the defaults. An empty path yields the
// defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return t, err
		}
		if err := yaml.Unmarshal(raw, &t); err != nil {
			return t, fmt.Errorf("tuning.yaml: %w", err)
		}
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Normalize fills zero values with defaults. Values that are invalid rather
// than unset are left for Validate.
func (t *Tuning) Normalize() {
	d := Defaults()
	t.ProtocolVersion = strings.TrimSpace(t.ProtocolVersion)
	if t.ProtocolVersion == "" {
		t.ProtocolVersion = d.ProtocolVersion
	}
	t.WorldID = strings.TrimSpace(t.WorldID)
	if t.WorldID == "" {
		t.WorldID = d.WorldID
	}
	if t.TickRateHz == 0 {
		t.TickRateHz = d.TickRateHz
	}
	if t.Terrain.VillageGrid == 0 {
		t.Terrain.VillageGrid = d.Terrain.VillageGrid
	}
	if t.Terrain.VillageRadius == 0 {
		t.Terrain.VillageRadius = d.Terrain.VillageRadius
	}
	if t.Chunks.ChunksPerStep == 0 {
		t.Chunks.ChunksPerStep = d.Chunks.ChunksPerStep
	}
	if t.Chunks.PrefetchWorkers == 0 {
		t.Chunks.PrefetchWorkers = d.Chunks.PrefetchWorkers
	}
	if t.Chunks.MaxUndergroundBlocks == 0 {
		t.Chunks.MaxUndergroundBlocks = d.Chunks.MaxUndergroundBlocks
	}
}

//go:embed tuning.schema.json
var schemaJSON string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("tuning.schema.json", schemaJSON)
	})
	return schema, schemaErr
}

func (t Tuning) Validate() error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return err
	}
	if err := s.Validate(doc); err != nil {
		return err
	}
	if t.ProtocolVersion != ProtocolVersion {
		return fmt.Errorf("protocol_version %q not supported (want %q)", t.ProtocolVersion, ProtocolVersion)
	}
	if t.Terrain.VillageRadius*2 >= t.Terrain.VillageGrid {
		return fmt.Errorf("terrain.village_radius must be < village_grid/2")
	}
	if t.Chunks.UndergroundRadius > t.Chunks.RenderDistance {
		return fmt.Errorf("chunks.underground_radius must be <= render_distance")
	}
	return nil
}

// Digest identifies the effective configuration in snapshots.
func (t Tuning) Digest() string {
	b, _ := json.Marshal(t)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (t Tuning) GenOptions() gen.Options {
	return gen.Options{
		SpawnClearRadius: t.Terrain.SpawnClearRadius,
		VillageGrid:      t.Terrain.VillageGrid,
		VillageRadius:    t.Terrain.VillageRadius,
		VillagePermille:  t.Terrain.VillagePermille,
	}
}

func (t Tuning) StoreOptions() store.Options {
	return store.Options{
		RenderDistance:       t.Chunks.RenderDistance,
		ChunksPerStep:        t.Chunks.ChunksPerStep,
		Workers:              t.Chunks.PrefetchWorkers,
		UndergroundRadius:    t.Chunks.UndergroundRadius,
		SubsurfaceDepth:      t.Chunks.SubsurfaceDepth,
		MaxUndergroundBlocks: t.Chunks.MaxUndergroundBlocks,
	}
}
