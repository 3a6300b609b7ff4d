// Package anomaly implements the Anomaly Engine (C7): a deterministic
// rule bank evaluated in fixed order against an agent's transaction
// history, grounded on the teacher's governance.JurisdictionResolver
// (WithClock injection, mutex-guarded evaluation state) and
// governance.PolicyEngine's ordered, fail-open rule evaluation shape.
// Firing rules append chained anomaly events through the Logger and
// notify subscribed callbacks afterward.
package anomaly

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kontext-systems/audit-core/pkg/kontextlog"
	"github.com/kontext-systems/audit-core/pkg/kontextmodel"
)

// RuleName identifies one of the six deterministic rules.
type RuleName string

const (
	RuleUnusualAmount   RuleName = "unusual_amount"
	RuleFrequencySpike  RuleName = "frequency_spike"
	RuleNewDestination  RuleName = "new_destination"
	RuleOffHours        RuleName = "off_hours"
	RuleRapidSuccession RuleName = "rapid_succession"
	RuleRoundAmount     RuleName = "round_amount"
)

// ruleOrder is the fixed evaluation order; all firing rules yield
// distinct anomaly events in this order.
var ruleOrder = []RuleName{
	RuleUnusualAmount,
	RuleFrequencySpike,
	RuleNewDestination,
	RuleOffHours,
	RuleRapidSuccession,
	RuleRoundAmount,
}

// Config parameterizes the rule bank. Severity is looked up per rule
// name; a rule with no configured severity defaults to "medium".
type Config struct {
	MaxAmount           decimal.Decimal
	MaxFrequencyPerHour int
	OffHours            map[int]bool // UTC hour -> off-hours
	MinIntervalSeconds  int
	StructuringAmount   decimal.Decimal
	Severity            map[RuleName]string
}

// TransactionInput is the proposed transaction the rule bank evaluates.
type TransactionInput struct {
	AgentID   string
	SessionID string
	Chain     string
	Amount    string
	Token     string
	From      string
	To        string
}

// Callback is invoked after an anomaly event has been appended and
// stored. Callbacks must not mutate the event.
type Callback func(ev kontextmodel.Event)

// Engine evaluates the rule bank against an agent's recent history
// tracked in-memory (destinations seen, last transaction time, hourly
// transaction counts), independent of the Event Store's own indexes so
// evaluation stays O(1) per rule instead of rescanning all events.
type Engine struct {
	mu     sync.Mutex
	cfg    Config
	logger *kontextlog.Logger
	clock  func() time.Time

	seenDestinations map[string]map[string]bool // agentID -> destination set
	lastTxAt         map[string]time.Time       // agentID -> last transaction time
	recentTxTimes    map[string][]time.Time     // agentID -> timestamps within the last hour

	callbacks []Callback
}

// New constructs an Engine with the given config, logging through logger.
func New(cfg Config, logger *kontextlog.Logger) *Engine {
	return &Engine{
		cfg:              cfg,
		logger:           logger,
		clock:            time.Now,
		seenDestinations: make(map[string]map[string]bool),
		lastTxAt:         make(map[string]time.Time),
		recentTxTimes:    make(map[string][]time.Time),
	}
}

// WithClock overrides the clock for deterministic testing.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// Subscribe registers a callback fired after every anomaly event this
// engine appends.
func (e *Engine) Subscribe(cb Callback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callbacks = append(e.callbacks, cb)
}

// Evaluate runs the rule bank against input in fixed order, appending a
// chained anomaly event for every rule that fires, and returns the
// fired events in evaluation order. This also updates the engine's
// in-memory history so subsequent calls see this transaction.
func (e *Engine) Evaluate(input TransactionInput) ([]kontextmodel.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock()
	amount, err := decimal.NewFromString(input.Amount)
	if err != nil {
		amount = decimal.Zero
	}

	var fired []kontextmodel.Event
	for _, name := range ruleOrder {
		triggered, detail := e.check(name, input, amount, now)
		if !triggered {
			continue
		}
		ev, err := e.logger.Log(kontextlog.Input{
			AgentID:     input.AgentID,
			SessionID:   input.SessionID,
			Type:        kontextmodel.EventAnomaly,
			Description: string(name) + ": " + detail,
			Anomaly: &kontextmodel.AnomalyPayload{
				Rule:     string(name),
				Severity: e.severityFor(name),
				Data:     map[string]any{"detail": detail},
			},
		})
		if err != nil {
			return fired, err
		}
		fired = append(fired, ev)
		for _, cb := range e.callbacks {
			cb(ev)
		}
	}

	e.recordHistory(input, now)
	return fired, nil
}

func (e *Engine) severityFor(name RuleName) string {
	if s, ok := e.cfg.Severity[name]; ok {
		return s
	}
	return "medium"
}

func (e *Engine) check(name RuleName, input TransactionInput, amount decimal.Decimal, now time.Time) (bool, string) {
	switch name {
	case RuleUnusualAmount:
		if !e.cfg.MaxAmount.IsZero() && amount.GreaterThan(e.cfg.MaxAmount) {
			return true, "amount " + amount.String() + " exceeds max " + e.cfg.MaxAmount.String()
		}
		return false, ""

	case RuleFrequencySpike:
		if e.cfg.MaxFrequencyPerHour <= 0 {
			return false, ""
		}
		count := 0
		for _, t := range e.recentTxTimes[input.AgentID] {
			if now.Sub(t) <= time.Hour {
				count++
			}
		}
		if count >= e.cfg.MaxFrequencyPerHour {
			return true, "more than configured transactions in the last hour"
		}
		return false, ""

	case RuleNewDestination:
		seen := e.seenDestinations[input.AgentID]
		if seen != nil && seen[input.To] {
			return false, ""
		}
		return true, "destination " + input.To + " not seen before for this agent"

	case RuleOffHours:
		if len(e.cfg.OffHours) == 0 {
			return false, ""
		}
		if e.cfg.OffHours[now.UTC().Hour()] {
			return true, "transaction occurred during a configured off-hours window"
		}
		return false, ""

	case RuleRapidSuccession:
		if e.cfg.MinIntervalSeconds <= 0 {
			return false, ""
		}
		last, ok := e.lastTxAt[input.AgentID]
		if !ok {
			return false, ""
		}
		if now.Sub(last) < time.Duration(e.cfg.MinIntervalSeconds)*time.Second {
			return true, "interval since last transaction is below the configured minimum"
		}
		return false, ""

	case RuleRoundAmount:
		if e.cfg.StructuringAmount.IsZero() {
			return false, ""
		}
		hundred := decimal.NewFromInt(100)
		if amount.Mod(hundred).IsZero() && amount.GreaterThanOrEqual(e.cfg.StructuringAmount) {
			return true, "amount is a round multiple of 100 at or above the structuring threshold"
		}
		return false, ""
	}
	return false, ""
}

func (e *Engine) recordHistory(input TransactionInput, now time.Time) {
	if e.seenDestinations[input.AgentID] == nil {
		e.seenDestinations[input.AgentID] = make(map[string]bool)
	}
	e.seenDestinations[input.AgentID][input.To] = true
	e.lastTxAt[input.AgentID] = now

	times := e.recentTxTimes[input.AgentID]
	times = append(times, now)
	cutoff := now.Add(-time.Hour)
	trimmed := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			trimmed = append(trimmed, t)
		}
	}
	e.recentTxTimes[input.AgentID] = trimmed
}
