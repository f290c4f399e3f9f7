package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

var (
	ErrUnknownBlock = errors.New("unknown block")
	ErrUnknownTool  = errors.New("unknown tool")
	ErrUnknownCrop  = errors.New("unknown crop")
	ErrUnbreakable  = errors.New("block is unbreakable")
)

type Catalogs struct {
	Blocks BlockCatalog
	Crops  CropCatalog
}

// Defaults returns the built-in tables without touching the filesystem.
func Defaults() *Catalogs {
	c := &Catalogs{}
	if err := c.Blocks.build(DefaultBlocks(), nil); err != nil {
		panic(err)
	}
	if err := c.Crops.build(DefaultCrops(), nil); err != nil {
		panic(err)
	}
	return c
}

// Load reads blocks.json and crops.json from configDir. A missing file keeps
// the built-in table for that catalog.
func Load(configDir string) (*Catalogs, error) {
	c := Defaults()
	if configDir == "" {
		return c, nil
	}
	if err := loadJSON(filepath.Join(configDir, "blocks.json"), func(raw []byte) error {
		var defs []BlockDef
		if err := json.Unmarshal(raw, &defs); err != nil {
			return err
		}
		return c.Blocks.build(defs, raw)
	}); err != nil {
		return nil, fmt.Errorf("blocks.json: %w", err)
	}
	if err := loadJSON(filepath.Join(configDir, "crops.json"), func(raw []byte) error {
		var defs []CropDef
		if err := json.Unmarshal(raw, &defs); err != nil {
			return err
		}
		return c.Crops.build(defs, raw)
	}); err != nil {
		return nil, fmt.Errorf("crops.json: %w", err)
	}
	return c, nil
}

func loadJSON(path string, apply func([]byte) error) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return apply(raw)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// suggest returns the candidate closest to name when it is a plausible typo.
func suggest(name string, candidates []string) (string, bool) {
	best := ""
	bestDist := -1
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(strings.ToUpper(name), strings.ToUpper(c))
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	if bestDist < 0 || bestDist > 3 {
		return "", false
	}
	return best, true
}

func unknown(kind error, name string, candidates []string) error {
	if s, ok := suggest(name, candidates); ok {
		return fmt.Errorf("%w %q (did you mean %q?)", kind, name, s)
	}
	return fmt.Errorf("%w %q", kind, name)
}

func filterOut(in []string, remove string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == remove {
			continue
		}
		out = append(out, s)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
