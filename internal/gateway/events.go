package gateway

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// Result sources recorded on events and in result meta.
const (
	SourceAPI   = "api"
	SourceCache = "cache"
)

// Event is one structured observability record. The gateway emits an event
// for every dispatch outcome, including failures that a later fallback hides
// from the caller.
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	DispatchID string    `json:"dispatch_id"`
	Provider   string    `json:"provider"`
	Capability string    `json:"capability"`
	Attempt    int       `json:"attempt,omitempty"`
	Success    bool      `json:"success"`
	Source     string    `json:"source"`
	LatencyMS  int64     `json:"latency_ms"`
	// FallbackFrom names the provider whose failure routed this dispatch
	// here, when applicable.
	FallbackFrom string `json:"fallback_from,omitempty"`
	Error        string `json:"error,omitempty"`
	ErrorKind    string `json:"error_kind,omitempty"`
}

// EventSink receives structured dispatch events. Implementations must be
// safe for concurrent use and must not block the dispatch path for long.
type EventSink interface {
	Emit(Event)
}

// NopSink discards all events.
type NopSink struct{}

// Emit implements EventSink.
func (NopSink) Emit(Event) {}

// LogSink writes events as structured logrus entries.
type LogSink struct{}

// Emit implements EventSink.
func (LogSink) Emit(ev Event) {
	entry := log.WithFields(log.Fields{
		"dispatch_id": ev.DispatchID,
		"provider":    ev.Provider,
		"capability":  ev.Capability,
		"success":     ev.Success,
		"source":      ev.Source,
		"latency_ms":  ev.LatencyMS,
	})
	if ev.FallbackFrom != "" {
		entry = entry.WithField("fallback_from", ev.FallbackFrom)
	}
	if ev.Success {
		entry.Info("dispatch event")
		return
	}
	entry.WithFields(log.Fields{"error": ev.Error, "error_kind": ev.ErrorKind}).Warn("dispatch event")
}

// MultiSink fans one event out to several sinks.
type MultiSink []EventSink

// Emit implements EventSink.
func (m MultiSink) Emit(ev Event) {
	for _, s := range m {
		s.Emit(ev)
	}
}
