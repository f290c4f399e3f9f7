// Package overlay keeps player edits (mined blocks, farming plots) per chunk.
// Records are resident while some viewer holds the chunk and are written to a
// Backend when the last viewer releases it, so memory tracks the active
// windows instead of the whole play session.
package overlay

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"harvestcraft.ai/internal/sim/terrain/chunk"
)

type entry struct {
	rec   *Record
	refs  int
	dirty bool
}

type Store struct {
	backend Backend
	log     *log.Logger
	now     func() time.Time

	mu       sync.Mutex
	resident map[chunk.Key]*entry
}

func NewStore(backend Backend, logger *log.Logger) *Store {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	return &Store{
		backend:  backend,
		log:      logger,
		now:      time.Now,
		resident: map[chunk.Key]*entry{},
	}
}

// SetClock replaces the clock that stamps record updates.
func (s *Store) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *Store) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

func (s *Store) loadLocked(ctx context.Context, k chunk.Key) (*Record, error) {
	data, ok, err := s.backend.Load(ctx, k)
	if err != nil {
		return nil, fmt.Errorf("overlay load %s: %w", k, err)
	}
	if !ok {
		return newRecord(k), nil
	}
	rec, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("overlay load %s: %w", k, err)
	}
	return rec, nil
}

func (s *Store) persistLocked(ctx context.Context, rec *Record) error {
	if rec.Empty() {
		return s.backend.Delete(ctx, rec.Key)
	}
	data, err := Encode(rec)
	if err != nil {
		return fmt.Errorf("overlay encode %s: %w", rec.Key, err)
	}
	return s.backend.Save(ctx, rec.Key, data)
}

// Acquire makes the chunk's record resident and counts one more holder.
func (s *Store) Acquire(ctx context.Context, k chunk.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.resident[k]; ok {
		e.refs++
		return nil
	}
	rec, err := s.loadLocked(ctx, k)
	if err != nil {
		return err
	}
	s.resident[k] = &entry{rec: rec, refs: 1}
	return nil
}

// Release drops one holder. The last release writes the record back and
// evicts it.
func (s *Store) Release(ctx context.Context, k chunk.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.resident[k]
	if !ok {
		return nil
	}
	e.refs--
	if e.refs > 0 {
		return nil
	}
	if e.dirty {
		if err := s.persistLocked(ctx, e.rec); err != nil {
			e.refs = 0
			return err
		}
	}
	delete(s.resident, k)
	return nil
}

// Resident is the number of records held in memory.
func (s *Store) Resident() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.resident)
}

// with runs fn against the record for k. Non-resident records are loaded for
// the call and written straight back when fn reports a change.
func (s *Store) with(ctx context.Context, k chunk.Key, fn func(*Record) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.resident[k]; ok {
		changed, err := fn(e.rec)
		if changed {
			e.rec.Updated = s.now()
			e.dirty = true
		}
		return err
	}
	rec, err := s.loadLocked(ctx, k)
	if err != nil {
		return err
	}
	changed, err := fn(rec)
	if err != nil {
		return err
	}
	if changed {
		rec.Updated = s.now()
		return s.persistLocked(ctx, rec)
	}
	return nil
}

// Mine records pos as mined. Mining the surface layer clears the plot above it.
func (s *Store) Mine(ctx context.Context, pos chunk.BlockPos) error {
	return s.with(ctx, pos.Chunk(), func(r *Record) (bool, error) {
		if _, ok := r.Mined[pos]; ok {
			return false, ErrAlreadyMined
		}
		r.Mined[pos] = struct{}{}
		if pos.Y == 0 {
			delete(r.Plots, pos.Cell())
		}
		return true, nil
	})
}

func (s *Store) IsMined(ctx context.Context, pos chunk.BlockPos) (bool, error) {
	var mined bool
	err := s.with(ctx, pos.Chunk(), func(r *Record) (bool, error) {
		_, mined = r.Mined[pos]
		return false, nil
	})
	return mined, err
}

// MinedIn returns a copy of the mined set of chunk k.
func (s *Store) MinedIn(ctx context.Context, k chunk.Key) (map[chunk.BlockPos]struct{}, error) {
	out := map[chunk.BlockPos]struct{}{}
	err := s.with(ctx, k, func(r *Record) (bool, error) {
		for p := range r.Mined {
			out[p] = struct{}{}
		}
		return false, nil
	})
	return out, err
}

// PlotsIn returns a copy of the non-empty plots of chunk k.
func (s *Store) PlotsIn(ctx context.Context, k chunk.Key) (map[chunk.CellPos]Plot, error) {
	out := map[chunk.CellPos]Plot{}
	err := s.with(ctx, k, func(r *Record) (bool, error) {
		for c, p := range r.Plots {
			if !p.isEmpty() {
				out[c] = *p
			}
		}
		return false, nil
	})
	return out, err
}

func (s *Store) Plot(ctx context.Context, c chunk.CellPos) (Plot, error) {
	out := Plot{State: PlotEmpty}
	err := s.with(ctx, c.Chunk(), func(r *Record) (bool, error) {
		if p, ok := r.Plots[c]; ok {
			out = *p
		}
		return false, nil
	})
	return out, err
}

func (s *Store) plotOp(ctx context.Context, c chunk.CellPos, op func(*Plot) error) (Plot, error) {
	var out Plot
	err := s.with(ctx, c.Chunk(), func(r *Record) (bool, error) {
		if _, mined := r.Mined[chunk.BlockPos{X: c.X, Y: 0, Z: c.Z}]; mined {
			return false, ErrGroundMined
		}
		p, ok := r.Plots[c]
		if !ok {
			p = &Plot{State: PlotEmpty}
		}
		next := *p
		if err := op(&next); err != nil {
			return false, err
		}
		*p = next
		r.Plots[c] = p
		out = next
		return true, nil
	})
	return out, err
}

func (s *Store) Till(ctx context.Context, c chunk.CellPos) (Plot, error) {
	return s.plotOp(ctx, c, func(p *Plot) error { return p.till() })
}

func (s *Store) Water(ctx context.Context, c chunk.CellPos, now time.Time) (Plot, error) {
	return s.plotOp(ctx, c, func(p *Plot) error { return p.water(now) })
}

func (s *Store) Plant(ctx context.Context, c chunk.CellPos, crop string, growFor time.Duration, now time.Time) (Plot, error) {
	return s.plotOp(ctx, c, func(p *Plot) error { return p.plant(crop, growFor, now) })
}

// Harvest returns the crop of a ready plot and leaves the soil tilled.
func (s *Store) Harvest(ctx context.Context, c chunk.CellPos, now time.Time) (string, error) {
	var crop string
	_, err := s.plotOp(ctx, c, func(p *Plot) error {
		var err error
		crop, err = p.harvest(now)
		return err
	})
	return crop, err
}

// Advance promotes grown crops in resident chunks and returns their cells.
func (s *Store) Advance(now time.Time) []chunk.CellPos {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ready []chunk.CellPos
	for _, e := range s.resident {
		for c, p := range e.rec.Plots {
			if p.advance(now) {
				ready = append(ready, c)
				e.rec.Updated = now
				e.dirty = true
			}
		}
	}
	return ready
}

// Flush writes every dirty resident record to the backend.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.resident {
		if !e.dirty {
			continue
		}
		if err := s.persistLocked(ctx, e.rec); err != nil {
			return err
		}
		e.dirty = false
	}
	return nil
}

// Export flushes and returns every stored record, sorted by chunk.
func (s *Store) Export(ctx context.Context) ([]RecordV1, error) {
	if err := s.Flush(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	keys, err := s.backend.Keys(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RecordV1, 0, len(keys))
	for _, k := range keys {
		rec, err := s.loadLocked(ctx, k)
		if err != nil {
			return nil, err
		}
		out = append(out, rec.V1())
	}
	return out, nil
}

// Import writes records into the backend and replaces resident copies. A
// record is skipped when the store already holds a newer edit of the chunk,
// so loading an old snapshot over a live backend keeps later work.
func (s *Store) Import(ctx context.Context, records []RecordV1) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	skipped := 0
	for _, v := range records {
		rec, err := FromV1(v)
		if err != nil {
			return fmt.Errorf("import %d,%d: %w", v.CX, v.CZ, err)
		}
		e, resident := s.resident[rec.Key]
		var cur *Record
		if resident {
			cur = e.rec
		} else if cur, err = s.loadLocked(ctx, rec.Key); err != nil {
			return err
		}
		if cur.Updated.After(rec.Updated) {
			skipped++
			continue
		}
		if resident {
			e.rec = rec
			e.dirty = false
		}
		if err := s.persistLocked(ctx, rec); err != nil {
			return err
		}
	}
	s.logf("overlay: imported %d chunk records, kept %d newer", len(records)-skipped, skipped)
	return nil
}
