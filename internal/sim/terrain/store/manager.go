// Package store keeps the window of generated chunks around a viewer.
package store

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"harvestcraft.ai/internal/sim/overlay"
	"harvestcraft.ai/internal/sim/terrain/chunk"
	"harvestcraft.ai/internal/sim/terrain/gen"
	"harvestcraft.ai/internal/sim/terrain/ore"
)

type Options struct {
	RenderDistance       int
	ChunksPerStep        int
	Workers              int
	UndergroundRadius    int
	SubsurfaceDepth      int
	MaxUndergroundBlocks int
}

func DefaultOptions() Options {
	return Options{
		RenderDistance:       2,
		ChunksPerStep:        4,
		Workers:              4,
		UndergroundRadius:    1,
		SubsurfaceDepth:      0,
		MaxUndergroundBlocks: 4096,
	}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.RenderDistance < 0 {
		o.RenderDistance = 0
	}
	if o.ChunksPerStep <= 0 {
		o.ChunksPerStep = d.ChunksPerStep
	}
	if o.Workers <= 0 {
		o.Workers = d.Workers
	}
	if o.UndergroundRadius < 0 {
		o.UndergroundRadius = 0
	}
	if o.SubsurfaceDepth < 0 {
		o.SubsurfaceDepth = 0
	}
	if o.SubsurfaceDepth > -ore.FloorY {
		o.SubsurfaceDepth = -ore.FloorY
	}
	if o.MaxUndergroundBlocks <= 0 {
		o.MaxUndergroundBlocks = d.MaxUndergroundBlocks
	}
	return o
}

// Window is the result of one Update or Step.
type Window struct {
	Center  chunk.Key
	Chunks  map[chunk.Key]*Chunk
	Entered []chunk.Key
	Left    []chunk.Key
	// Pending counts window chunks not generated yet.
	Pending int
}

// GenerateHook observes every freshly generated chunk.
type GenerateHook func(c *Chunk, took time.Duration)

type Manager struct {
	gen      *gen.Generator
	ores     *ore.Layer
	overlays *overlay.Store
	opts     Options
	logger   *log.Logger
	hook     GenerateHook

	mu       sync.Mutex
	active   map[chunk.Key]*Chunk
	prefetch map[chunk.Key]*Chunk
	center   chunk.Key
}

// NewManager builds a manager. overlays may be nil when no mutation state
// is tracked.
func NewManager(g *gen.Generator, ores *ore.Layer, overlays *overlay.Store, opts Options, logger *log.Logger) *Manager {
	return &Manager{
		gen:      g,
		ores:     ores,
		overlays: overlays,
		opts:     opts.normalized(),
		logger:   logger,
		active:   map[chunk.Key]*Chunk{},
		prefetch: map[chunk.Key]*Chunk{},
	}
}

func (m *Manager) Options() Options { return m.opts }

func (m *Manager) SetGenerateHook(h GenerateHook) {
	m.mu.Lock()
	m.hook = h
	m.mu.Unlock()
}

func (m *Manager) logf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}

func (m *Manager) generate(k chunk.Key) *Chunk {
	start := time.Now()
	c := Generate(m.gen, m.ores, k, m.opts.SubsurfaceDepth)
	m.mu.Lock()
	h := m.hook
	m.mu.Unlock()
	if h != nil {
		h(c, time.Since(start))
	}
	return c
}

// Update generates every missing chunk of the window around (px,pz).
func (m *Manager) Update(ctx context.Context, px, pz float64) (Window, error) {
	return m.step(ctx, px, pz, -1)
}

// Step is Update with at most ChunksPerStep chunks generated per call,
// nearest first.
func (m *Manager) Step(ctx context.Context, px, pz float64) (Window, error) {
	return m.step(ctx, px, pz, m.opts.ChunksPerStep)
}

func (m *Manager) step(ctx context.Context, px, pz float64, budget int) (Window, error) {
	center := chunk.KeyAt(px, pz)
	keys := windowAround(center, m.opts.RenderDistance)
	want := make(map[chunk.Key]struct{}, len(keys))
	for _, k := range keys {
		want[k] = struct{}{}
	}

	m.mu.Lock()
	prev := m.active
	cached := make(map[chunk.Key]*Chunk, len(m.prefetch))
	for k, c := range m.prefetch {
		cached[k] = c
	}
	m.mu.Unlock()

	next := make(map[chunk.Key]*Chunk, len(keys))
	var entered []chunk.Key
	pending := 0
	for _, k := range keys {
		if c, ok := prev[k]; ok {
			next[k] = c
			continue
		}
		c, ok := cached[k]
		if !ok {
			if budget == 0 {
				pending++
				continue
			}
			c = m.generate(k)
			if budget > 0 {
				budget--
			}
		}
		if m.overlays != nil {
			if err := m.overlays.Acquire(ctx, k); err != nil {
				for _, done := range entered {
					_ = m.overlays.Release(ctx, done)
				}
				return Window{}, fmt.Errorf("acquire overlay %s: %w", k, err)
			}
		}
		next[k] = c
		entered = append(entered, k)
	}

	var left []chunk.Key
	for k := range prev {
		if _, ok := want[k]; !ok {
			left = append(left, k)
		}
	}
	chunk.SortKeys(left)

	m.mu.Lock()
	m.active = next
	m.center = center
	for k := range m.prefetch {
		_, inWindow := want[k]
		if _, isActive := next[k]; isActive || !inWindow {
			delete(m.prefetch, k)
		}
	}
	m.mu.Unlock()

	var firstErr error
	if m.overlays != nil {
		for _, k := range left {
			if err := m.overlays.Release(ctx, k); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("release overlay %s: %w", k, err)
			}
		}
	}
	if len(entered) > 0 || len(left) > 0 {
		m.logf("window %s: +%d -%d pending=%d", center, len(entered), len(left), pending)
	}
	return Window{
		Center:  center,
		Chunks:  next,
		Entered: entered,
		Left:    left,
		Pending: pending,
	}, firstErr
}

// Prefetch generates keys on a bounded worker pool. Results are picked up by
// the next Update or Step while they stay inside the window.
func (m *Manager) Prefetch(ctx context.Context, keys []chunk.Key) error {
	m.mu.Lock()
	todo := make([]chunk.Key, 0, len(keys))
	seen := map[chunk.Key]struct{}{}
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		if _, ok := m.active[k]; ok {
			continue
		}
		if _, ok := m.prefetch[k]; ok {
			continue
		}
		todo = append(todo, k)
	}
	m.mu.Unlock()
	if len(todo) == 0 {
		return nil
	}

	jobs := make(chan chunk.Key)
	results := make(chan *Chunk, len(todo))
	workers := m.opts.Workers
	if workers > len(todo) {
		workers = len(todo)
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := range jobs {
				if ctx.Err() != nil {
					continue
				}
				results <- m.generate(k)
			}
		}()
	}

feed:
	for _, k := range todo {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- k:
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	m.mu.Lock()
	for c := range results {
		if _, ok := m.active[c.Key]; !ok {
			m.prefetch[c.Key] = c
		}
	}
	m.mu.Unlock()
	return ctx.Err()
}

// Active returns the chunk if it is in the current window.
func (m *Manager) Active(k chunk.Key) (*Chunk, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.active[k]
	return c, ok
}

func (m *Manager) ActiveKeys() []chunk.Key {
	m.mu.Lock()
	keys := make([]chunk.Key, 0, len(m.active))
	for k := range m.active {
		keys = append(keys, k)
	}
	m.mu.Unlock()
	chunk.SortKeys(keys)
	return keys
}

func (m *Manager) Center() chunk.Key {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.center
}

func (m *Manager) lookup(k chunk.Key) *Chunk {
	m.mu.Lock()
	c, ok := m.active[k]
	if !ok {
		c, ok = m.prefetch[k]
	}
	m.mu.Unlock()
	if ok {
		return c
	}
	return m.generate(k)
}

// Underground lists the unmined blocks from y=0 down to -SubsurfaceDepth
// within UndergroundRadius chunks of (px,pz), nearest first, truncated at
// MaxUndergroundBlocks.
func (m *Manager) Underground(ctx context.Context, px, pz float64) ([]BlockRecord, error) {
	keys := WindowKeys(px, pz, m.opts.UndergroundRadius)
	var out []BlockRecord
	for _, k := range keys {
		c := m.lookup(k)
		var mined map[chunk.BlockPos]struct{}
		if m.overlays != nil {
			var err error
			mined, err = m.overlays.MinedIn(ctx, k)
			if err != nil {
				return nil, fmt.Errorf("mined blocks %s: %w", k, err)
			}
		}
		for _, b := range c.Blocks {
			if b.Pos.Y < -m.opts.SubsurfaceDepth {
				continue
			}
			if _, gone := mined[b.Pos]; gone {
				continue
			}
			out = append(out, b)
		}
	}
	dist := func(p chunk.BlockPos) float64 {
		dx := float64(p.X) + 0.5 - px
		dz := float64(p.Z) + 0.5 - pz
		return math.Sqrt(dx*dx + dz*dz + float64(p.Y*p.Y))
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := dist(out[i].Pos), dist(out[j].Pos)
		if di != dj {
			return di < dj
		}
		a, b := out[i].Pos, out[j].Pos
		if a.Y != b.Y {
			return a.Y > b.Y
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Z < b.Z
	})
	if len(out) > m.opts.MaxUndergroundBlocks {
		out = out[:m.opts.MaxUndergroundBlocks]
	}
	return out, nil
}

// Close releases the overlays of every active chunk.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	keys := make([]chunk.Key, 0, len(m.active))
	for k := range m.active {
		keys = append(keys, k)
	}
	m.active = map[chunk.Key]*Chunk{}
	m.prefetch = map[chunk.Key]*Chunk{}
	m.mu.Unlock()
	chunk.SortKeys(keys)
	var firstErr error
	if m.overlays != nil {
		for _, k := range keys {
			if err := m.overlays.Release(ctx, k); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
