package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	persistlog "harvestcraft.ai/internal/persistence/log"
	"harvestcraft.ai/internal/persistence/snapshot"
	"harvestcraft.ai/internal/sim/terrain/chunk"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "rollback":
			rollbackCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "map":
			mapCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		case "sample":
			sampleCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	if *worldID != "" {
		base = filepath.Join(base, *worldID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

// rollbackCmd restores blocks mined inside an AABB since a point in time,
// using the audit log, and writes a new snapshot.
func rollbackCmd(args []string) {
	fs := flag.NewFlagSet("rollback", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	snapPath := fs.String("snapshot", "", "snapshot path to rollback from (optional; defaults to latest)")
	aabb := fs.String("aabb", "", "AABB filter: x1,y1,z1:x2,y2,z2 (required)")
	since := fs.String("since", "", "rollback mines at or after this RFC3339 time (optional)")
	viewer := fs.String("session", "", "only mines by this session id (optional)")
	outPath := fs.String("out", "", "output snapshot path (optional)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	if strings.TrimSpace(*aabb) == "" {
		fmt.Fprintln(os.Stderr, "missing -aabb")
		os.Exit(2)
	}
	var sinceT time.Time
	if s := strings.TrimSpace(*since); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -since:", err)
			os.Exit(2)
		}
		sinceT = t
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" {
		snapshotToLoad = snapshot.Latest(worldDir)
	}
	if snapshotToLoad == "" {
		fmt.Fprintln(os.Stderr, "no snapshot found; provide -snapshot or run server until it writes one")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(snapshotToLoad)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}

	min, max, err := parseAABB(*aabb)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad -aabb:", err)
		os.Exit(2)
	}

	recs, err := readAudit(worldDir, auditFilter{
		Since:   sinceT,
		Until:   time.Unix(snap.Header.SavedAt, 0),
		Session: strings.TrimSpace(*viewer),
		Min:     min,
		Max:     max,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	if len(recs) == 0 {
		fmt.Println("no matching audit entries; nothing to rollback")
		return
	}

	applied, skipped := applyRollback(&snap, recs, time.Now())

	if strings.TrimSpace(*outPath) == "" {
		*outPath = filepath.Join(snapshot.Dir(worldDir), fmt.Sprintf("%d.rollback.snap.zst", snap.Header.SavedAt))
	}
	if err := snapshot.WriteSnapshot(*outPath, snap); err != nil {
		fmt.Fprintln(os.Stderr, "write snapshot:", err)
		os.Exit(1)
	}

	fmt.Printf("rollback ok: snapshot=%s aabb=%s entries=%d applied=%d skipped=%d out=%s\n",
		filepath.Base(snapshotToLoad), *aabb, len(recs), applied, skipped, *outPath)
}

type auditFilter struct {
	Since, Until time.Time
	Session      string
	Min, Max     [3]int
}

// readAudit returns successful MINE actions matching f, oldest file first.
func readAudit(worldDir string, f auditFilter) ([]chunk.BlockPos, error) {
	files, err := persistlog.AuditFiles(worldDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no audit files under %s", filepath.Join(worldDir, "audit"))
	}

	var out []chunk.BlockPos
	for _, path := range files {
		err := scanAudit(path, func(e persistlog.ActionEvent) {
			if p, ok := f.match(e); ok {
				out = append(out, p)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	return out, nil
}

func (f auditFilter) match(e persistlog.ActionEvent) (chunk.BlockPos, bool) {
	if e.Kind != "MINE" || e.Code != "" {
		return chunk.BlockPos{}, false
	}
	if (!f.Since.IsZero() && e.Time.Before(f.Since)) || (!f.Until.IsZero() && e.Time.After(f.Until)) {
		return chunk.BlockPos{}, false
	}
	if f.Session != "" && e.Session != f.Session {
		return chunk.BlockPos{}, false
	}
	p, err := chunk.ParseBlockPos(e.Pos)
	if err != nil || !withinAABB([3]int{p.X, p.Y, p.Z}, f.Min, f.Max) {
		return chunk.BlockPos{}, false
	}
	return p, true
}

func scanAudit(path string, fn func(persistlog.ActionEvent)) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	dec, err := zstd.NewReader(file)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var e persistlog.ActionEvent
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		fn(e)
	}
	return sc.Err()
}

// applyRollback removes the given positions from the snapshot's mined sets.
// Touched chunks are stamped with at so the rollback outranks the stored
// copies when the snapshot is loaded.
func applyRollback(snap *snapshot.WorldV1, positions []chunk.BlockPos, at time.Time) (applied, skipped int) {
	if snap == nil || len(positions) == 0 {
		return 0, 0
	}
	byChunk := map[chunk.Key]*snapshot.OverlayV1{}
	for i := range snap.Overlays {
		o := &snap.Overlays[i]
		byChunk[chunk.Key{CX: o.CX, CZ: o.CZ}] = o
	}
	for _, p := range positions {
		o := byChunk[p.Chunk()]
		if o == nil {
			skipped++
			continue
		}
		key := p.String()
		idx := -1
		for i, m := range o.Mined {
			if m == key {
				idx = i
				break
			}
		}
		if idx < 0 {
			skipped++
			continue
		}
		o.Mined = append(o.Mined[:idx], o.Mined[idx+1:]...)
		o.UpdatedMs = at.UnixMilli()
		applied++
	}
	return applied, skipped
}

func withinAABB(pos [3]int, min, max [3]int) bool {
	return pos[0] >= min[0] && pos[0] <= max[0] &&
		pos[1] >= min[1] && pos[1] <= max[1] &&
		pos[2] >= min[2] && pos[2] <= max[2]
}

func parseAABB(s string) (min, max [3]int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return min, max, fmt.Errorf("expected x1,y1,z1:x2,y2,z2")
	}
	a, err := chunk.ParseBlockPos(parts[0])
	if err != nil {
		return min, max, err
	}
	b, err := chunk.ParseBlockPos(parts[1])
	if err != nil {
		return min, max, err
	}
	av, bv := [3]int{a.X, a.Y, a.Z}, [3]int{b.X, b.Y, b.Z}
	for i := 0; i < 3; i++ {
		if av[i] <= bv[i] {
			min[i], max[i] = av[i], bv[i]
		} else {
			min[i], max[i] = bv[i], av[i]
		}
	}
	return min, max, nil
}
