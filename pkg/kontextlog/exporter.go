package kontextlog

import (
	"log/slog"
	"sync/atomic"

	"github.com/kontext-systems/audit-core/pkg/kontextmodel"
)

// Exporter receives a fire-and-forget copy of every logged event. A
// failing exporter must never affect the Logger's return value.
type Exporter interface {
	Export(ev kontextmodel.Event)
}

// queuedExporter drains a bounded channel on a single dedicated goroutine,
// per the design note that asynchronous notification must never block the
// producer: queue-full policy is drop-newest with a counter incremented.
type queuedExporter struct {
	next    Exporter
	queue   chan kontextmodel.Event
	dropped atomic.Uint64
	log     *slog.Logger
}

// newQueuedExporter wraps next with a bounded, non-blocking queue of the
// given capacity and starts its drain loop.
func newQueuedExporter(next Exporter, capacity int) *queuedExporter {
	if capacity <= 0 {
		capacity = 256
	}
	q := &queuedExporter{
		next:  next,
		queue: make(chan kontextmodel.Event, capacity),
		log:   slog.Default().With("component", "kontextlog.exporter"),
	}
	go q.drain()
	return q
}

func (q *queuedExporter) drain() {
	for ev := range q.queue {
		q.safeExport(ev)
	}
}

// safeExport isolates a panicking exporter so it cannot take down the
// drain goroutine or, transitively, the logging path that enqueued it.
func (q *queuedExporter) safeExport(ev kontextmodel.Event) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("exporter panicked", "event_id", ev.ID, "recover", r)
		}
	}()
	q.next.Export(ev)
}

// enqueue never blocks: a full queue increments Dropped and discards ev.
func (q *queuedExporter) enqueue(ev kontextmodel.Event) {
	select {
	case q.queue <- ev:
	default:
		n := q.dropped.Add(1)
		q.log.Warn("exporter queue full, dropping event", "event_id", ev.ID, "dropped_total", n)
	}
}

// Dropped returns the number of events discarded due to a full queue.
func (q *queuedExporter) Dropped() uint64 {
	return q.dropped.Load()
}
