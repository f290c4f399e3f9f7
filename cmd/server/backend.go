package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"harvestcraft.ai/internal/persistence/overlaydb"
	"harvestcraft.ai/internal/sim/overlay"
)

type overlayBackend interface {
	overlay.Backend
	Close() error
}

type memoryBackend struct{ *overlay.MemoryBackend }

func (memoryBackend) Close() error { return nil }

// openOverlayBackend picks where evicted chunk overlays live. sqlite keeps
// edits across restarts even without a snapshot.
func openOverlayBackend(ctx context.Context, worldDir string, seed int64, logger *log.Logger) (overlayBackend, error) {
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("HC_OVERLAY_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "memory", "none", "off":
		logger.Printf("overlay backend: memory")
		return memoryBackend{overlay.NewMemoryBackend()}, nil
	case "sqlite":
		dbPath := filepath.Join(worldDir, "overlays", "overlays.sqlite")
		db, err := overlaydb.Open(dbPath)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureSeed(ctx, seed); err != nil {
			_ = db.Close()
			return nil, err
		}
		st, err := db.Stats(ctx)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.Printf("overlay backend: sqlite %s (%d chunks, %d bytes)", dbPath, st.Chunks, st.Bytes)
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported HC_OVERLAY_BACKEND: %s", backend)
	}
}
