package goSession

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Metadata keys that never reach a sink.
var secretMetadataKeys = map[string]struct{}{
	"access_token":  {},
	"refresh_token": {},
	"token":         {},
	"password":      {},
	"authorization": {},
	"cookie":        {},
}

// auditDispatcher hands audit events to the sink on a single goroutine, so a
// slow sink delays audit delivery and never a session transition.
type auditDispatcher struct {
	sink  AuditSink
	log   *logrus.Entry
	block bool

	queue   chan AuditEvent
	stop    chan struct{}
	drained sync.WaitGroup
	once    sync.Once
	closing atomic.Bool

	dropped   atomic.Uint64
	delivered atomic.Uint64
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink, log *logrus.Entry) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	d := &auditDispatcher{
		sink:  sink,
		log:   log,
		block: !cfg.DropIfFull,
		queue: make(chan AuditEvent, size),
		stop:  make(chan struct{}),
	}
	d.drained.Add(1)
	go d.loop()
	return d
}

func (d *auditDispatcher) loop() {
	defer d.drained.Done()

	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.stop:
			for {
				select {
				case ev := <-d.queue:
					d.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

// deliver isolates the dispatcher from a panicking sink.
func (d *auditDispatcher) deliver(ev AuditEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.log.WithField("event", ev.EventType).Errorf("audit sink panicked: %v", r)
		}
	}()
	d.sink.Emit(context.Background(), ev)
	d.delivered.Add(1)
}

// Emit queues ev. Blocking dispatchers wait for room or ctx; the others count
// the event as dropped when the buffer is full.
func (d *auditDispatcher) Emit(ctx context.Context, ev AuditEvent) {
	if d == nil || d.closing.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	ev.Metadata = scrubMetadata(ev.Metadata)

	if !d.block {
		select {
		case d.queue <- ev:
		case <-d.stop:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- ev:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.stop:
	}
}

// Close stops intake and waits until every queued event reached the sink.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.closing.Store(true)
		close(d.stop)
		d.drained.Wait()
	})
}

func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (d *auditDispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}

// scrubMetadata returns a copy of meta without credential-bearing keys.
func scrubMetadata(meta map[string]string) map[string]string {
	if len(meta) == 0 {
		return meta
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		if _, secret := secretMetadataKeys[strings.ToLower(k)]; secret {
			continue
		}
		out[k] = v
	}
	return out
}
