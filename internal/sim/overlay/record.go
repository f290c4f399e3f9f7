package overlay

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"

	"harvestcraft.ai/internal/sim/terrain/chunk"
)

// Record holds the player edits inside one chunk. Updated is the time of the
// last edit and decides which copy wins when a snapshot is imported.
type Record struct {
	Key     chunk.Key
	Mined   map[chunk.BlockPos]struct{}
	Plots   map[chunk.CellPos]*Plot
	Updated time.Time
}

func newRecord(k chunk.Key) *Record {
	return &Record{
		Key:   k,
		Mined: map[chunk.BlockPos]struct{}{},
		Plots: map[chunk.CellPos]*Plot{},
	}
}

func (r *Record) Empty() bool {
	if len(r.Mined) > 0 {
		return false
	}
	for _, p := range r.Plots {
		if !p.isEmpty() {
			return false
		}
	}
	return true
}

// RecordV1 is the serialized form: positions become "x,y,z" / "x,z" strings
// and entries are sorted so equal records encode identically.
type RecordV1 struct {
	CX        int      `json:"cx"`
	CZ        int      `json:"cz"`
	Mined     []string `json:"mined,omitempty"`
	Plots     []PlotV1 `json:"plots,omitempty"`
	UpdatedMs int64    `json:"updated_ms,omitempty"`
}

type PlotV1 struct {
	Pos string `json:"pos"`
	Plot
}

func (r *Record) V1() RecordV1 {
	out := RecordV1{CX: r.Key.CX, CZ: r.Key.CZ}
	if !r.Updated.IsZero() {
		out.UpdatedMs = r.Updated.UnixMilli()
	}
	mined := make([]chunk.BlockPos, 0, len(r.Mined))
	for p := range r.Mined {
		mined = append(mined, p)
	}
	sort.Slice(mined, func(i, j int) bool {
		a, b := mined[i], mined[j]
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Z != b.Z {
			return a.Z < b.Z
		}
		return a.Y < b.Y
	})
	for _, p := range mined {
		out.Mined = append(out.Mined, p.String())
	}

	cells := make([]chunk.CellPos, 0, len(r.Plots))
	for c, p := range r.Plots {
		if p.isEmpty() {
			continue
		}
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].X != cells[j].X {
			return cells[i].X < cells[j].X
		}
		return cells[i].Z < cells[j].Z
	})
	for _, c := range cells {
		out.Plots = append(out.Plots, PlotV1{Pos: c.String(), Plot: *r.Plots[c]})
	}
	return out
}

func FromV1(v RecordV1) (*Record, error) {
	r := newRecord(chunk.Key{CX: v.CX, CZ: v.CZ})
	if v.UpdatedMs != 0 {
		r.Updated = time.UnixMilli(v.UpdatedMs).UTC()
	}
	for _, s := range v.Mined {
		p, err := chunk.ParseBlockPos(s)
		if err != nil {
			return nil, err
		}
		if p.Chunk() != r.Key {
			return nil, fmt.Errorf("mined block %s outside chunk %s", s, r.Key)
		}
		r.Mined[p] = struct{}{}
	}
	for _, pv := range v.Plots {
		c, err := chunk.ParseCellPos(pv.Pos)
		if err != nil {
			return nil, err
		}
		if c.Chunk() != r.Key {
			return nil, fmt.Errorf("plot %s outside chunk %s", pv.Pos, r.Key)
		}
		plot := pv.Plot
		r.Plots[c] = &plot
	}
	return r, nil
}

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil)
)

// Encode serializes a record as zstd-compressed JSON.
func Encode(r *Record) ([]byte, error) {
	b, err := json.Marshal(r.V1())
	if err != nil {
		return nil, err
	}
	return encoder.EncodeAll(b, nil), nil
}

func Decode(data []byte) (*Record, error) {
	b, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	var v RecordV1
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("record decode: %w", err)
	}
	return FromV1(v)
}
