// Package chain implements the rolling SHA-256 digest chain, grounded on
// the teacher's store.AuditStore append/VerifyChain pattern (sequence
// counter, chainHead carried forward, computeEntryHash recomputation on
// verify) but re-keyed to the precision-timestamp salt and
// prior_digest/digest/salt triple the audit model requires.
package chain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/kontext-systems/audit-core/pkg/canonform"
	"github.com/kontext-systems/audit-core/pkg/kontextmodel"
)

// Genesis is the prior_digest of the first event ever appended: sixty-four
// ASCII zero characters, never a real SHA-256 output.
const Genesis = "0000000000000000000000000000000000000000000000000000000000000000"

// Link is one entry in the chain's ordered, append-only link list. The
// chain owns links; it never owns the event body (the Store does).
type Link struct {
	Sequence    int    `json:"sequence"`
	Digest      string `json:"digest"`
	PriorDigest string `json:"prior_digest"`
	Salt        string `json:"salt"`
	EventID     string `json:"event_id"`
}

// Snapshot is the cloned, immutable export of a Chain's state.
type Snapshot struct {
	Genesis  string `json:"genesis_hash"`
	Links    []Link `json:"links"`
	Terminal string `json:"terminal_digest"`
}

// VerifyResult is the structured, non-throwing outcome of Verify.
type VerifyResult struct {
	Valid             bool   `json:"valid"`
	LinksVerified     int    `json:"links_verified"`
	FirstInvalidIndex int    `json:"first_invalid_index"`
	ElapsedMS         int64  `json:"elapsed_ms"`
	Terminal          string `json:"terminal"`
}

// Chain is a single-producer rolling digest commitment. All mutating
// operations must run under the single-writer discipline described by the
// append critical section; Chain's own mutex enforces that within one
// process, matching AuditStore's sync.RWMutex-guarded append path.
type Chain struct {
	mu       sync.RWMutex
	terminal string
	links    []Link
	base     time.Time
	counter  uint64
	source   func() uint64
}

// New constructs an empty chain seeded at Genesis. base anchors the
// monotonic precision counter used solely for salt derivation; passing the
// zero value defaults to time.Now(), matching the teacher's WithClock
// injection pattern used throughout escalation and store/ledger.
func New(base time.Time) *Chain {
	if base.IsZero() {
		base = time.Now()
	}
	return &Chain{terminal: Genesis, base: base}
}

// NewWithPrecisionSource constructs a chain whose precision-timestamp
// values come from source instead of a monotonic clock, the same WithClock
// style of dependency injection the teacher uses for escalation and
// store/ledger, so salt derivation is exactly reproducible in tests.
func NewWithPrecisionSource(source func() uint64) *Chain {
	return &Chain{terminal: Genesis, source: source}
}

// precisionValue returns a strictly increasing counter value, the
// high-resolution analogue of a monotonic timer with a fixed base: wall
// clocks are not used directly because they may not be monotonic.
func (c *Chain) precisionValue() uint64 {
	if c.source != nil {
		return c.source()
	}
	c.counter++
	return uint64(time.Since(c.base).Nanoseconds()) + c.counter
}

// saltFor derives the salt for a precision-timestamp value: SHA-256 of its
// decimal-ASCII encoding.
func saltFor(precisionValue uint64) string {
	h := sha256.Sum256([]byte(strconv.FormatUint(precisionValue, 10)))
	return hex.EncodeToString(h[:])
}

// digestFor computes SHA256(priorDigest || serialized-event || salt).
func digestFor(priorDigest string, serialized []byte, salt string) string {
	h := sha256.New()
	h.Write([]byte(priorDigest))
	h.Write(serialized)
	h.Write([]byte(salt))
	return hex.EncodeToString(h.Sum(nil))
}

// Append captures a precision-timestamp value, computes the salt and
// digest, pushes a new link, and writes digest/prior_digest/salt back onto
// a copy of ev which it returns. Append never fails: it is pure compute
// plus an in-memory push.
func (c *Chain) Append(ev kontextmodel.Event) (kontextmodel.Event, Link) {
	c.mu.Lock()
	defer c.mu.Unlock()

	precision := c.precisionValue()
	ev.PrecisionTimestamp = precision
	salt := saltFor(precision)

	serialized, err := canonform.SerializeEvent(ev)
	if err != nil {
		// SerializeEvent only fails on non-JSON-marshalable Go values, which
		// never occurs for a well-formed Event; treat as a hard invariant
		// violation rather than widen Append's signature with an error path
		// the spec says never triggers in practice.
		panic(fmt.Sprintf("chain: event %s failed to serialize: %v", ev.ID, err))
	}

	prior := c.terminal
	digest := digestFor(prior, serialized, salt)

	link := Link{
		Sequence:    len(c.links),
		Digest:      digest,
		PriorDigest: prior,
		Salt:        salt,
		EventID:     ev.ID,
	}
	c.links = append(c.links, link)
	c.terminal = digest

	ev.Digest = digest
	ev.PriorDigest = prior
	ev.Salt = salt
	return ev, link
}

// Terminal returns the current terminal digest.
func (c *Chain) Terminal() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.terminal
}

// Len returns the number of links recorded so far.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.links)
}

// Verify recomputes each event's digest from Genesis using the salt and
// prior digest recorded in this chain's live link list (the event's own
// digest/prior_digest/salt fields are not consulted), and reports a
// structured, non-throwing result.
func (c *Chain) Verify(events []kontextmodel.Event) VerifyResult {
	c.mu.RLock()
	links := make([]Link, len(c.links))
	copy(links, c.links)
	c.mu.RUnlock()

	return verifyAgainst(Genesis, links, events)
}

// VerifyLink performs an isolated check that link is the correct
// commitment of ev given expectedPrior.
func VerifyLink(link Link, ev kontextmodel.Event, expectedPrior string) bool {
	if link.PriorDigest != expectedPrior {
		return false
	}
	serialized, err := canonform.SerializeEvent(ev)
	if err != nil {
		return false
	}
	want := digestFor(expectedPrior, serialized, link.Salt)
	return want == link.Digest
}

// RebuildFromEvents repopulates the link list from a restored event
// history, deriving each link from the event's own digest/prior_digest/salt
// fields (written back by a prior Append) rather than from any separately
// persisted link state — the Store restores events, never links directly.
// The terminal digest becomes the last event's digest, or Genesis if events
// is empty. Callers should follow this with Verify to confirm the restored
// chain is intact before trusting it for further Append calls.
func (c *Chain) RebuildFromEvents(events []kontextmodel.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	links := make([]Link, len(events))
	terminal := Genesis
	for i, ev := range events {
		links[i] = Link{
			Sequence:    i,
			Digest:      ev.Digest,
			PriorDigest: ev.PriorDigest,
			Salt:        ev.Salt,
			EventID:     ev.ID,
		}
		terminal = ev.Digest
	}
	c.links = links
	c.terminal = terminal
}

// Export returns a cloned, immutable snapshot of the chain's state.
func (c *Chain) Export() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	links := make([]Link, len(c.links))
	copy(links, c.links)
	return Snapshot{Genesis: Genesis, Links: links, Terminal: c.terminal}
}

// VerifyExported is a pure function with no dependence on any live chain:
// it recomputes every digest from snapshot.Genesis using the snapshot's
// own links and the supplied events, and additionally confirms the
// recomputed final digest equals snapshot.Terminal.
func VerifyExported(snapshot Snapshot, events []kontextmodel.Event) VerifyResult {
	result := verifyAgainst(snapshot.Genesis, snapshot.Links, events)
	if result.Valid && result.Terminal != snapshot.Terminal {
		result.Valid = false
	}
	return result
}

func verifyAgainst(genesis string, links []Link, events []kontextmodel.Event) VerifyResult {
	start := time.Now()
	if len(events) != len(links) {
		return VerifyResult{Valid: false, FirstInvalidIndex: 0, ElapsedMS: elapsedMS(start)}
	}

	prior := genesis
	verified := 0
	for i, link := range links {
		if !VerifyLink(link, events[i], prior) {
			return VerifyResult{
				Valid:             false,
				LinksVerified:     verified,
				FirstInvalidIndex: i,
				ElapsedMS:         elapsedMS(start),
			}
		}
		prior = link.Digest
		verified++
	}

	return VerifyResult{
		Valid:             true,
		LinksVerified:     verified,
		FirstInvalidIndex: -1,
		ElapsedMS:         elapsedMS(start),
		Terminal:          prior,
	}
}

func elapsedMS(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
