package main

import (
	"context"
	"encoding/hex"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	persistlog "harvestcraft.ai/internal/persistence/log"
	"harvestcraft.ai/internal/persistence/snapshot"
	"harvestcraft.ai/internal/sim/catalogs"
	"harvestcraft.ai/internal/sim/terrain/store"
	"harvestcraft.ai/internal/sim/tuning"
	"harvestcraft.ai/internal/sim/world"
	"harvestcraft.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		seedFlag   = flag.String("seed", "", "override the tuning seed")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
		saveEvery  = flag.Duration("save_every", 5*time.Minute, "autosave interval (0 disables)")
		noChunkLog = flag.Bool("disable_chunk_log", false, "disable the chunk generation log")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	if s := strings.TrimSpace(*seedFlag); s != "" {
		seed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			logger.Fatalf("bad -seed: %v", err)
		}
		tune.Seed = seed
	}

	worldDir := filepath.Join(*dataDir, "worlds", tune.WorldID)
	_ = os.MkdirAll(worldDir, 0o755)

	ctx, cancel := signalContext()
	defer cancel()

	backend, err := openOverlayBackend(ctx, worldDir, tune.Seed, logger)
	if err != nil {
		logger.Fatalf("open overlay backend: %v", err)
	}
	defer backend.Close()

	sess := world.New(world.Config{
		WorldID:      tune.WorldID,
		Seed:         tune.Seed,
		Gen:          tune.GenOptions(),
		Store:        tune.StoreOptions(),
		Catalogs:     cats,
		Backend:      backend,
		ConfigDigest: tune.Digest(),
		Logger:       logger,
	})

	auditLog := persistlog.NewAuditLogger(worldDir)
	defer auditLog.Close()
	hooks := world.Hooks{
		OnAction: func(a world.Action) {
			if err := auditLog.WriteAudit(auditEvent(a)); err != nil {
				logger.Printf("audit log: %v", err)
			}
		},
	}
	if !*noChunkLog {
		chunkLog := persistlog.NewChunkLogger(worldDir)
		defer chunkLog.Close()
		hooks.OnChunk = func(viewer string, c *store.Chunk, took time.Duration) {
			d := c.Digest()
			if err := chunkLog.WriteChunk(persistlog.ChunkEvent{
				Time:    time.Now().UTC(),
				CX:      c.Key.CX,
				CZ:      c.Key.CZ,
				Digest:  hex.EncodeToString(d[:]),
				Trees:   len(c.Trees),
				Blocks:  len(c.Blocks),
				TookUs:  took.Microseconds(),
				Session: viewer,
			}); err != nil {
				logger.Printf("chunk log: %v", err)
			}
		}
	}
	sess.SetHooks(hooks)

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = snapshot.Latest(worldDir)
	}
	if snapshotToLoad != "" {
		if err := sess.Load(ctx, snapshotToLoad); err != nil {
			logger.Fatalf("load snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s", filepath.Base(snapshotToLoad))
	}

	save := func() {
		path := snapshot.PathAt(worldDir, time.Now().Unix())
		if err := sess.Save(context.Background(), path); err != nil {
			logger.Printf("snapshot write: %v", err)
		}
	}

	// Crop growth and autosave.
	go func() {
		tick := time.NewTicker(time.Second / time.Duration(tune.TickRateHz))
		defer tick.Stop()
		var autosave <-chan time.Time
		if *saveEvery > 0 {
			t := time.NewTicker(*saveEvery)
			defer t.Stop()
			autosave = t.C
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				if n := sess.Tick(); n > 0 {
					logger.Printf("%d crops ready", n)
				}
			case <-autosave:
				save()
			}
		}
	}()

	wsSrv := ws.NewServer(sess, logger)
	wsSrv.TuningDigest = tune.Digest()
	mux := buildMux(sess, wsSrv, save, logger)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (world=%s seed=%d)", *addr, tune.WorldID, tune.Seed)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	closeCtx, cancelClose := context.WithTimeout(context.Background(), 5*time.Second)
	if err := wsSrv.Close(closeCtx); err != nil {
		logger.Printf("close websockets: %v", err)
	}
	cancelClose()
	if err := sess.Close(context.Background()); err != nil {
		logger.Printf("close world: %v", err)
	}
	save()
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

// auditEvent records failures by protocol code; the error text goes to
// Detail so rollback tooling can filter on Code alone.
func auditEvent(a world.Action) persistlog.ActionEvent {
	ev := persistlog.ActionEvent{Time: a.Time.UTC(), Session: a.Viewer, Kind: a.Kind, Pos: a.Pos, Detail: a.Detail}
	if a.Err != nil {
		ev.Code = ws.CodeFor(a.Err)
		if ev.Detail != "" {
			ev.Detail += ": "
		}
		ev.Detail += a.Err.Error()
	}
	return ev
}
