package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

var ErrVersion = errors.New("unsupported snapshot version")

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	SavedAt int64  `json:"saved_at_unix"`
}

// WorldV1 is everything needed to resume a world: the seed and generator
// options rebuild the terrain, the overlays carry what players changed.
type WorldV1 struct {
	Header Header `json:"header"`

	Seed         int64  `json:"seed"`
	ConfigDigest string `json:"config_digest"`
	BlocksDigest string `json:"blocks_digest"`

	SpawnClearRadius int `json:"spawn_clear_radius"`
	VillageGrid      int `json:"village_grid"`
	VillageRadius    int `json:"village_radius"`
	VillagePermille  int `json:"village_permille"`

	Overlays []OverlayV1 `json:"overlays"`
}

type OverlayV1 struct {
	CX        int      `json:"cx"`
	CZ        int      `json:"cz"`
	Mined     []string `json:"mined,omitempty"`
	Plots     []PlotV1 `json:"plots,omitempty"`
	UpdatedMs int64    `json:"updated_ms,omitempty"`
}

type PlotV1 struct {
	Pos       string `json:"pos"`
	State     string `json:"state"`
	Crop      string `json:"crop,omitempty"`
	Watered   bool   `json:"watered,omitempty"`
	PlantedAt int64  `json:"planted_at,omitempty"`
	GrowStart int64  `json:"grow_start,omitempty"`
	GrowForMs int64  `json:"grow_for_ms,omitempty"`
}

func WriteSnapshot(path string, snap WorldV1) error {
	if snap.Header.Version == 0 {
		snap.Header.Version = Version
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := writeFile(tmp, snap); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeFile(path string, snap WorldV1) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return enc.Close()
}

func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()
	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

func ReadSnapshot(path string) (WorldV1, error) {
	var snap WorldV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The gob body repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("%w: %d", ErrVersion, snap.Header.Version)
	}
	return snap, nil
}
