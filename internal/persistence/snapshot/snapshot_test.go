package snapshot

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots", "world.snap.zst")
	in := WorldV1{
		Header:       Header{WorldID: "w1", SavedAt: 1700000000},
		Seed:         42,
		ConfigDigest: "abc",
		BlocksDigest: "def",
		VillageGrid:  256,
		Overlays: []OverlayV1{{
			CX:    -1,
			CZ:    2,
			Mined: []string{"-3,-4,40"},
			Plots: []PlotV1{{Pos: "-2,33", State: "planted", Crop: "WHEAT", Watered: true, GrowForMs: 60000}},
		}},
	}
	if err := WriteSnapshot(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if h.Version != Version || h.WorldID != "w1" {
		t.Fatalf("header=%+v", h)
	}
	out, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	in.Header.Version = Version
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch:\n in=%+v\nout=%+v", in, out)
	}
}

func TestSnapshotRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "w.snap.zst")
	if err := WriteSnapshot(path, WorldV1{Header: Header{Version: 9}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadSnapshot(path); !errors.Is(err, ErrVersion) {
		t.Fatalf("err=%v want ErrVersion", err)
	}
}

func TestLatestSkipsNonTimestampNames(t *testing.T) {
	worldDir := t.TempDir()
	if got := Latest(worldDir); got != "" {
		t.Fatalf("empty world: %q", got)
	}
	for _, ts := range []int64{100, 300, 200} {
		if err := WriteSnapshot(PathAt(worldDir, ts), WorldV1{Header: Header{SavedAt: ts}}); err != nil {
			t.Fatalf("write %d: %v", ts, err)
		}
	}
	if err := WriteSnapshot(filepath.Join(Dir(worldDir), "400.rollback.snap.zst"), WorldV1{}); err != nil {
		t.Fatalf("write rollback: %v", err)
	}
	if got, want := Latest(worldDir), PathAt(worldDir, 300); got != want {
		t.Fatalf("Latest=%q want %q", got, want)
	}
}
