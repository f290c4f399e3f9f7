package catalogs

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type CropDef struct {
	ID          string `json:"id"`
	GrowSeconds int    `json:"grow_seconds"`
	YieldItem   string `json:"yield_item"`
	YieldCount  int    `json:"yield_count"`
}

func (d CropDef) GrowTime() time.Duration {
	return time.Duration(d.GrowSeconds) * time.Second
}

func DefaultCrops() []CropDef {
	return []CropDef{
		{ID: "WHEAT", GrowSeconds: 60, YieldItem: "WHEAT", YieldCount: 2},
		{ID: "CARROT", GrowSeconds: 90, YieldItem: "CARROT", YieldCount: 3},
		{ID: "POTATO", GrowSeconds: 120, YieldItem: "POTATO", YieldCount: 3},
		{ID: "PUMPKIN", GrowSeconds: 240, YieldItem: "PUMPKIN", YieldCount: 1},
	}
}

type CropCatalog struct {
	ByID   map[string]CropDef
	IDs    []string
	Digest string
}

func (c *CropCatalog) build(defs []CropDef, raw []byte) error {
	if raw == nil {
		raw, _ = json.Marshal(defs)
	}
	out := CropCatalog{
		ByID:   make(map[string]CropDef, len(defs)),
		Digest: sha256Hex(raw),
	}
	for _, d := range defs {
		d.ID = strings.ToUpper(strings.TrimSpace(d.ID))
		if d.ID == "" {
			return fmt.Errorf("empty id")
		}
		if d.GrowSeconds <= 0 {
			return fmt.Errorf("%s: grow_seconds must be positive", d.ID)
		}
		if d.YieldItem == "" {
			d.YieldItem = d.ID
		}
		if d.YieldCount <= 0 {
			d.YieldCount = 1
		}
		out.ByID[d.ID] = d
	}
	out.IDs = sortedKeys(out.ByID)
	*c = out
	return nil
}

func (c *CropCatalog) Lookup(id string) (CropDef, error) {
	if d, ok := c.ByID[strings.ToUpper(strings.TrimSpace(id))]; ok {
		return d, nil
	}
	return CropDef{}, unknown(ErrUnknownCrop, id, c.IDs)
}
