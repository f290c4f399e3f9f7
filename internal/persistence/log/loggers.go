// Package log writes the per-world event streams: chunk generation records
// and the action audit trail. Each stream is a directory of hourly files,
// <prefix>-<YYYY-MM-DD-HH>.jsonl.zst, holding one JSON object per line.
package log

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const hourLayout = "2006-01-02-15"

// hourlyLog files each event under the UTC hour of its own timestamp, so a
// replayed or late event lands next to its neighbours.
type hourlyLog struct {
	dir    string
	prefix string

	mu   sync.Mutex
	hour string
	file *os.File
	zw   *zstd.Encoder
}

func newHourlyLog(dir, prefix string) *hourlyLog {
	return &hourlyLog{dir: dir, prefix: prefix}
}

func (l *hourlyLog) path(hour string) string {
	return filepath.Join(l.dir, l.prefix+"-"+hour+".jsonl.zst")
}

func (l *hourlyLog) append(at time.Time, v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s log: %w", l.prefix, err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.switchTo(at.UTC().Format(hourLayout)); err != nil {
		return err
	}
	if _, err := l.zw.Write(line); err != nil {
		return fmt.Errorf("%s log: %w", l.prefix, err)
	}
	// Flush ends the block so readers see every line written so far.
	return l.zw.Flush()
}

func (l *hourlyLog) switchTo(hour string) error {
	if l.zw != nil && hour == l.hour {
		return nil
	}
	if err := l.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	l.hour, l.file, l.zw = hour, f, zw
	return nil
}

func (l *hourlyLog) closeLocked() error {
	if l.zw == nil {
		return nil
	}
	err := l.zw.Close()
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.hour, l.file, l.zw = "", nil, nil
	return err
}

func (l *hourlyLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeLocked()
}

// ChunkEvent records one chunk generation.
type ChunkEvent struct {
	Time    time.Time `json:"time"`
	CX      int       `json:"cx"`
	CZ      int       `json:"cz"`
	Digest  string    `json:"digest"`
	Trees   int       `json:"trees"`
	Blocks  int       `json:"blocks"`
	TookUs  int64     `json:"took_us"`
	Session string    `json:"session,omitempty"`
}

type ChunkLogger struct{ l *hourlyLog }

func NewChunkLogger(worldDir string) *ChunkLogger {
	return &ChunkLogger{l: newHourlyLog(filepath.Join(worldDir, "chunks"), "chunks")}
}

func (c *ChunkLogger) WriteChunk(v ChunkEvent) error { return c.l.append(v.Time, v) }
func (c *ChunkLogger) Close() error                  { return c.l.Close() }

// ActionEvent records one world edit made by a viewer. Code is the protocol
// error code of a rejected action and empty on success.
type ActionEvent struct {
	Time    time.Time `json:"time"`
	Session string    `json:"session"`
	Kind    string    `json:"kind"`
	Pos     string    `json:"pos"`
	Detail  string    `json:"detail,omitempty"`
	Code    string    `json:"code,omitempty"`
}

type AuditLogger struct{ l *hourlyLog }

func NewAuditLogger(worldDir string) *AuditLogger {
	return &AuditLogger{l: newHourlyLog(filepath.Join(worldDir, "audit"), "audit")}
}

func (a *AuditLogger) WriteAudit(v ActionEvent) error { return a.l.append(v.Time, v) }
func (a *AuditLogger) Close() error                   { return a.l.Close() }

// AuditFiles lists the audit files of a world, oldest hour first.
func AuditFiles(worldDir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(worldDir, "audit", "audit-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
