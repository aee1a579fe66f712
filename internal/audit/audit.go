// Package audit provides a durable, append-only record of every dispatch
// outcome. Entries are written as JSON lines to a rotating file so operators
// can review which providers served which capabilities, including failures
// later hidden by a successful fallback.
package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/relaygate/relaygate/internal/gateway"
)

// Config holds audit sink settings.
type Config struct {
	// Enabled toggles audit logging. A disabled sink is a no-op.
	Enabled bool

	// Path is the audit log file path.
	Path string

	// MaxSizeMB is the rotation threshold. Default 100.
	MaxSizeMB int

	// MaxBackups is how many rotated files to keep. Default 10.
	MaxBackups int

	// MaxAgeDays is how long rotated files are kept. Default 30.
	MaxAgeDays int

	// Compress rotated files. Default true is applied by the caller's
	// configuration layer, not here.
	Compress bool
}

// Sink writes gateway events as JSON lines. It implements gateway.EventSink
// and is safe for concurrent use.
type Sink struct {
	mu      sync.Mutex
	encoder *json.Encoder
	file    *lumberjack.Logger
	enabled bool
}

// NewSink creates the audit sink. When cfg.Enabled is false the sink
// discards everything.
func NewSink(cfg Config) (*Sink, error) {
	if !cfg.Enabled {
		return &Sink{enabled: false}, nil
	}

	if cfg.MaxSizeMB == 0 {
		cfg.MaxSizeMB = 100
	}
	if cfg.MaxBackups == 0 {
		cfg.MaxBackups = 10
	}
	if cfg.MaxAgeDays == 0 {
		cfg.MaxAgeDays = 30
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	file := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}

	return &Sink{
		encoder: json.NewEncoder(file),
		file:    file,
		enabled: true,
	}, nil
}

// Emit implements gateway.EventSink.
func (s *Sink) Emit(ev gateway.Event) {
	if !s.enabled {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.encoder.Encode(ev); err != nil {
		// The dispatch already happened; losing the audit line must not fail
		// the call. Fall back to the application log.
		log.Warnf("audit write failed: %v", err)
	}
}

// Close flushes and closes the underlying file.
func (s *Sink) Close() error {
	if !s.enabled || s.file == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
