package eventstore

import "github.com/kontext-systems/audit-core/pkg/kontextmodel"

// defaultMaxSize is the per-collection retention ceiling before eviction.
const defaultMaxSize = 10000

// boundedList is an ordered, append-only collection with bounded
// retention: once it exceeds max entries, the oldest ceil(10% of max) are
// evicted. Eviction never touches the digest chain — the chain's links
// still hash the same bytes, but re-verification locally is no longer
// possible for the evicted entries.
type boundedList struct {
	entries []kontextmodel.Event
	max     int
	evicted int
}

func newBoundedList(max int) *boundedList {
	if max <= 0 {
		max = defaultMaxSize
	}
	return &boundedList{max: max}
}

// add appends ev and returns the number of entries evicted as a result,
// so the caller can surface the condition (e.g. via slog).
func (b *boundedList) add(ev kontextmodel.Event) int {
	b.entries = append(b.entries, ev)
	return b.evictIfNeeded()
}

func (b *boundedList) evictIfNeeded() int {
	if len(b.entries) <= b.max {
		return 0
	}
	evictCount := (b.max + 9) / 10 // ceil(10% of max)
	if evictCount > len(b.entries) {
		evictCount = len(b.entries)
	}
	b.entries = append([]kontextmodel.Event(nil), b.entries[evictCount:]...)
	b.evicted += evictCount
	return evictCount
}

func (b *boundedList) snapshot() []kontextmodel.Event {
	out := make([]kontextmodel.Event, len(b.entries))
	copy(out, b.entries)
	return out
}

func (b *boundedList) replace(entries []kontextmodel.Event) {
	b.entries = append([]kontextmodel.Event(nil), entries...)
}
