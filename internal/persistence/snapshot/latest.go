package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const fileSuffix = ".snap.zst"

// Dir is where a world keeps its snapshots.
func Dir(worldDir string) string { return filepath.Join(worldDir, "snapshots") }

// PathAt names the regular snapshot taken at unix second ts.
func PathAt(worldDir string, ts int64) string {
	return filepath.Join(Dir(worldDir), fmt.Sprintf("%d%s", ts, fileSuffix))
}

// Latest returns the newest regular snapshot of the world, or "" when there
// is none. Files whose stem is not a unix timestamp (rollback outputs) are
// skipped.
func Latest(worldDir string) string {
	ents, err := os.ReadDir(Dir(worldDir))
	if err != nil {
		return ""
	}
	var best string
	var bestTS int64
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		ts, err := strconv.ParseInt(strings.TrimSuffix(name, fileSuffix), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || ts > bestTS {
			best, bestTS = name, ts
		}
	}
	if best == "" {
		return ""
	}
	return filepath.Join(Dir(worldDir), best)
}
