package goSession

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Audit event types emitted by the client.
const (
	EventBootstrap     = "session_bootstrap"
	EventLogin         = "login"
	EventRegister      = "register"
	EventLogout        = "logout"
	EventRefresh       = "session_refresh"
	EventForcedLogout  = "session_forced_logout"
	EventRetryRejected = "request_retry_rejected"
	EventApplySession  = "session_applied"
)

// AuditEvent is one session lifecycle transition.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Email     string            `json:"email,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards every event.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// MultiSink delivers each event to every sink in order.
type MultiSink []AuditSink

func (m MultiSink) Emit(ctx context.Context, event AuditEvent) {
	for _, sink := range m {
		if sink != nil {
			sink.Emit(ctx, event)
		}
	}
}

// ChannelSink forwards events to a buffered channel. Emit blocks while the
// channel is full unless ctx ends first.
type ChannelSink struct {
	events chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{events: make(chan AuditEvent, max(buffer, 1))}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON object per line. After the first failed
// write it stops writing and reports the failure through Err.
type JSONWriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
	err error
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	if w == nil {
		w = io.Discard
	}
	return &JSONWriterSink{enc: json.NewEncoder(w)}
}

func (s *JSONWriterSink) Emit(_ context.Context, event AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	s.err = s.enc.Encode(event)
}

// Err returns the write error that stopped the sink, if any.
func (s *JSONWriterSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// LogrusSink logs each event as a structured entry. Failed events log at warn.
type LogrusSink struct {
	log *logrus.Entry
}

func NewLogrusSink(log *logrus.Entry) *LogrusSink {
	return &LogrusSink{log: log}
}

func (s *LogrusSink) Emit(_ context.Context, event AuditEvent) {
	if s == nil || s.log == nil {
		return
	}
	fields := logrus.Fields{
		"event":   event.EventType,
		"success": event.Success,
	}
	if event.UserID != "" {
		fields["user_id"] = event.UserID
	}
	if event.Error != "" {
		fields["error"] = event.Error
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := s.log.WithTime(event.Timestamp).WithFields(fields)
	if event.Success {
		entry.Info("audit")
		return
	}
	entry.Warn("audit")
}
