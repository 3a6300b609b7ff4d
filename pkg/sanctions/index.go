// Package sanctions implements the Sanctions Index (C10): a read-only,
// atomically-swappable snapshot of normalized addresses queried by the
// Compliance Verifier. There is no teacher file that models a hot-swap
// snapshot pointer directly; this uses sync/atomic.Pointer, the standard
// library's dedicated tool for exactly this shape (torn-free pointer swap
// under concurrent readers), which no dependency in the corpus improves on.
package sanctions

import (
	"strings"
	"sync/atomic"

	"github.com/kontext-systems/audit-core/pkg/addrnorm"
)

// Reason describes why an address is sanctioned.
type Reason struct {
	EntityName string   `json:"entity_name"`
	Lists      []string `json:"lists"`
	SourceID   string   `json:"source_id"`
}

// Entry is one normalized address record in a snapshot.
type Entry struct {
	Address string
	Chain   string
	Reason  Reason
}

// snapshot is the immutable data a pointer swap replaces wholesale.
type snapshot struct {
	// byAddress indexes exact normalized-address matches (non-EVM, where
	// chain identity matters since case is preserved per chain).
	byAddress map[string]Reason
	// evmAddresses holds every EVM-format address sanctioned under any
	// currency, lowercased, for cross-chain propagation: an address
	// sanctioned on one EVM chain is sanctioned on all EVM chains.
	evmAddresses map[string]Reason
}

// Index is read-only to consumers; Reload is the only mutator, and it
// swaps the whole snapshot atomically so an in-flight IsSanctioned call
// observes either the entirely-old or entirely-new data, never a torn
// state.
type Index struct {
	current atomic.Pointer[snapshot]
}

// New constructs an empty index.
func New() *Index {
	idx := &Index{}
	idx.current.Store(&snapshot{byAddress: map[string]Reason{}, evmAddresses: map[string]Reason{}})
	return idx
}

// Reload atomically replaces the index contents with entries.
func (idx *Index) Reload(entries []Entry) {
	snap := &snapshot{
		byAddress:    make(map[string]Reason, len(entries)),
		evmAddresses: make(map[string]Reason, len(entries)),
	}
	for _, e := range entries {
		if addrnorm.IsEVM(e.Address) {
			snap.evmAddresses[strings.ToLower(e.Address)] = e.Reason
		} else {
			snap.byAddress[e.Chain+":"+e.Address] = e.Reason
		}
	}
	idx.current.Store(snap)
}

// IsSanctioned reports whether address on chain is sanctioned, applying
// EVM lowercasing and cross-chain EVM propagation; non-EVM addresses
// preserve case and are scoped to chain.
func (idx *Index) IsSanctioned(address, chain string) bool {
	_, ok := idx.lookup(address, chain)
	return ok
}

// Reason returns the sanction metadata for address, if any.
func (idx *Index) Reason(address, chain string) (Reason, bool) {
	return idx.lookup(address, chain)
}

func (idx *Index) lookup(address, chain string) (Reason, bool) {
	snap := idx.current.Load()
	if addrnorm.IsEVM(address) {
		r, ok := snap.evmAddresses[strings.ToLower(address)]
		return r, ok
	}
	r, ok := snap.byAddress[chain+":"+address]
	return r, ok
}
