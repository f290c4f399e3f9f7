package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"harvestcraft.ai/internal/persistence/overlaydb"
	"harvestcraft.ai/internal/sim/overlay"
	"harvestcraft.ai/internal/sim/terrain/chunk"
)

// dbCmd inspects the overlay store: stats | chunks | chunk.
func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	key := fs.String("chunk", "", "chunk key cx,cz (chunk query)")
	limit := fs.Int("limit", 50, "result limit (chunks query)")
	_ = fs.Parse(args)

	q := "stats"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "overlays", "overlays.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}

	db, err := overlaydb.Open(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	enc := json.NewEncoder(os.Stdout)
	switch q {
	case "stats":
		st, err := db.Stats(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "stats:", err)
			os.Exit(1)
		}
		_ = enc.Encode(map[string]any{"path": path, "chunks": st.Chunks, "bytes": st.Bytes})
	case "chunks":
		keys, err := db.Keys(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "keys:", err)
			os.Exit(1)
		}
		if *limit > 0 && len(keys) > *limit {
			keys = keys[:*limit]
		}
		for _, k := range keys {
			fmt.Println(k.String())
		}
	case "chunk":
		k, err := chunk.ParseKey(*key)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -chunk:", err)
			os.Exit(2)
		}
		v, ok, err := loadRecord(ctx, db, k)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load:", err)
			os.Exit(1)
		}
		if !ok {
			fmt.Fprintln(os.Stderr, "no overlay for chunk", k.String())
			os.Exit(2)
		}
		_ = enc.Encode(v)
	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		os.Exit(2)
	}
}

func loadRecord(ctx context.Context, b overlay.Backend, k chunk.Key) (overlay.RecordV1, bool, error) {
	data, ok, err := b.Load(ctx, k)
	if err != nil || !ok {
		return overlay.RecordV1{}, ok, err
	}
	rec, err := overlay.Decode(data)
	if err != nil {
		return overlay.RecordV1{}, false, err
	}
	return rec.V1(), true, nil
}
