// Package world ties the terrain generator, the chunk manager and the
// mutation overlays into a shared world that viewers join.
package world

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"harvestcraft.ai/internal/sim/catalogs"
	"harvestcraft.ai/internal/sim/overlay"
	"harvestcraft.ai/internal/sim/terrain/gen"
	"harvestcraft.ai/internal/sim/terrain/ore"
	"harvestcraft.ai/internal/sim/terrain/store"
)

var (
	ErrViewerExists  = errors.New("viewer already joined")
	ErrUnknownViewer = errors.New("unknown viewer")
	ErrOutOfRange    = errors.New("target outside the active window")
	ErrNotMineable   = errors.New("block cannot be mined")
	ErrNotFarmable   = errors.New("cell cannot be farmed")
	ErrSeedMismatch  = errors.New("snapshot seed does not match world")
)

type Config struct {
	WorldID      string
	Seed         int64
	Gen          gen.Options
	Store        store.Options
	Catalogs     *catalogs.Catalogs
	Backend      overlay.Backend
	ConfigDigest string
	Logger       *log.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Action is reported for every edit a viewer attempts.
type Action struct {
	Time   time.Time
	Viewer string
	Kind   string
	Pos    string
	Detail string
	Err    error
}

type Hooks struct {
	OnChunk  func(viewer string, c *store.Chunk, took time.Duration)
	OnAction func(Action)
}

type Session struct {
	cfg      Config
	gen      *gen.Generator
	ores     *ore.Layer
	cats     *catalogs.Catalogs
	overlays *overlay.Store
	logger   *log.Logger
	now      func() time.Time

	generated atomic.Int64
	actions   atomic.Int64
	rejected  atomic.Int64

	mu      sync.Mutex
	viewers map[string]*Viewer
	hooks   Hooks
}

type Metrics struct {
	Viewers          int   `json:"viewers"`
	ActiveChunks     int   `json:"active_chunks"`
	ResidentOverlays int   `json:"resident_overlays"`
	ChunksGenerated  int64 `json:"chunks_generated"`
	Actions          int64 `json:"actions"`
	ActionsRejected  int64 `json:"actions_rejected"`
}

func (s *Session) Metrics() Metrics {
	s.mu.Lock()
	m := Metrics{Viewers: len(s.viewers)}
	for _, v := range s.viewers {
		m.ActiveChunks += len(v.mgr.ActiveKeys())
	}
	s.mu.Unlock()
	m.ResidentOverlays = s.overlays.Resident()
	m.ChunksGenerated = s.generated.Load()
	m.Actions = s.actions.Load()
	m.ActionsRejected = s.rejected.Load()
	return m
}

func New(cfg Config) *Session {
	if cfg.WorldID == "" {
		cfg.WorldID = "world_1"
	}
	if cfg.Gen == (gen.Options{}) {
		cfg.Gen = gen.DefaultOptions()
	}
	if cfg.Store == (store.Options{}) {
		cfg.Store = store.DefaultOptions()
	}
	if cfg.Catalogs == nil {
		cfg.Catalogs = catalogs.Defaults()
	}
	if cfg.Backend == nil {
		cfg.Backend = overlay.NewMemoryBackend()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	overlays := overlay.NewStore(cfg.Backend, cfg.Logger)
	overlays.SetClock(now)
	return &Session{
		cfg:      cfg,
		gen:      gen.New(cfg.Seed, cfg.Gen),
		ores:     ore.NewLayer(cfg.Seed),
		cats:     cfg.Catalogs,
		overlays: overlays,
		logger:   cfg.Logger,
		now:      now,
		viewers:  map[string]*Viewer{},
	}
}

func (s *Session) ID() string                   { return s.cfg.WorldID }
func (s *Session) Seed() int64                  { return s.cfg.Seed }
func (s *Session) Generator() *gen.Generator    { return s.gen }
func (s *Session) Ores() *ore.Layer             { return s.ores }
func (s *Session) Catalogs() *catalogs.Catalogs { return s.cats }
func (s *Session) Overlays() *overlay.Store     { return s.overlays }
func (s *Session) StoreOptions() store.Options  { return s.cfg.Store }
func (s *Session) Now() time.Time               { return s.now() }

func (s *Session) SetHooks(h Hooks) {
	s.mu.Lock()
	s.hooks = h
	s.mu.Unlock()
}

func (s *Session) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

// Join registers a viewer. Its window is empty until the first Move.
func (s *Session) Join(id, name string) (*Viewer, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrUnknownViewer)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.viewers[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrViewerExists, id)
	}
	v := &Viewer{
		ID:   id,
		Name: name,
		s:    s,
		mgr:  store.NewManager(s.gen, s.ores, s.overlays, s.cfg.Store, s.logger),
	}
	v.mgr.SetGenerateHook(func(c *store.Chunk, took time.Duration) {
		s.generated.Add(1)
		s.mu.Lock()
		h := s.hooks.OnChunk
		s.mu.Unlock()
		if h != nil {
			h(id, c, took)
		}
	})
	s.viewers[id] = v
	s.logf("join %s (%s), %d viewers", id, name, len(s.viewers))
	return v, nil
}

func (s *Session) Viewer(id string) (*Viewer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.viewers[id]
	return v, ok
}

func (s *Session) ViewerIDs() []string {
	s.mu.Lock()
	ids := make([]string, 0, len(s.viewers))
	for id := range s.viewers {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Leave releases the viewer's chunks.
func (s *Session) Leave(ctx context.Context, id string) error {
	s.mu.Lock()
	v, ok := s.viewers[id]
	delete(s.viewers, id)
	n := len(s.viewers)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownViewer, id)
	}
	s.logf("leave %s, %d viewers", id, n)
	return v.mgr.Close(ctx)
}

// Tick ripens crops whose grow time has elapsed.
func (s *Session) Tick() int {
	return len(s.overlays.Advance(s.now()))
}

// Close releases every viewer and flushes the overlays.
func (s *Session) Close(ctx context.Context) error {
	for _, id := range s.ViewerIDs() {
		if err := s.Leave(ctx, id); err != nil && !errors.Is(err, ErrUnknownViewer) {
			return err
		}
	}
	return s.overlays.Flush(ctx)
}

func (s *Session) report(a Action) {
	s.actions.Add(1)
	if a.Err != nil {
		s.rejected.Add(1)
	}
	s.mu.Lock()
	h := s.hooks.OnAction
	s.mu.Unlock()
	if h != nil {
		h(a)
	}
}
