// Package trustscore implements the Trust Scorer (C12): a deterministic
// weighted scalar in [0, 100] per agent, grounded on the teacher's
// trust.ComputeTrustScore (fixed-weight factor breakdown summing to 1,
// a Breakdown map for auditability) applied to this core's five
// factors: action count, confirmed/failed task ratio, anomaly count,
// transaction consistency, and compliance adherence. It is a pure
// function of an Event Store snapshot.
package trustscore

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/kontext-systems/audit-core/pkg/eventstore"
	"github.com/kontext-systems/audit-core/pkg/kontextmodel"
)

// Weights sum to 1; each factor is bounded to [0, 100] before weighting.
const (
	weightActionVolume    = 0.20
	weightTaskRatio       = 0.25
	weightAnomalyCount    = 0.20
	weightTxConsistency   = 0.15
	weightComplianceAdher = 0.20

	// actionVolumeSaturation is the action count at which the volume
	// factor reaches its maximum of 100; beyond it the factor is capped.
	actionVolumeSaturation = 500.0
)

// Score is the computed trust score and its auditable breakdown.
type Score struct {
	AgentID   string             `json:"agent_id"`
	Overall   float64            `json:"overall"`
	Breakdown map[string]float64 `json:"breakdown"`
}

// Compute derives a Score for agentID purely from store's current
// contents; calling it twice against an unchanged store yields an
// identical result.
func Compute(store *eventstore.Store, agentID string) Score {
	events := store.ByAgent(agentID)

	actionCount := 0
	var amounts []decimal.Decimal
	confirmed, failed := 0, 0
	anomalyCount := 0
	compliantVerifies, totalVerifies := 0, 0

	for _, ev := range events {
		switch ev.Type {
		case kontextmodel.EventAction:
			actionCount++
			if ev.Action != nil {
				switch ev.Action.Status {
				case "confirmed", "success":
					confirmed++
				case "failed", "error":
					failed++
				}
			}
		case kontextmodel.EventTransaction:
			if ev.Transaction != nil {
				if amt, err := decimal.NewFromString(ev.Transaction.Amount); err == nil {
					amounts = append(amounts, amt)
				}
			}
		case kontextmodel.EventAnomaly:
			anomalyCount++
		case kontextmodel.EventVerifyResult:
			if ev.Verify != nil {
				totalVerifies++
				if ev.Verify.Compliant {
					compliantVerifies++
				}
			}
		}
	}

	actionVolumeFactor := clamp(100 * float64(actionCount) / actionVolumeSaturation)

	taskRatioFactor := 100.0
	if confirmed+failed > 0 {
		taskRatioFactor = clamp(100 * float64(confirmed) / float64(confirmed+failed))
	}

	anomalyFactor := clamp(100 - 10*float64(anomalyCount))

	consistencyFactor := clamp(100 - transactionVariance(amounts))

	complianceFactor := 100.0
	if totalVerifies > 0 {
		complianceFactor = clamp(100 * float64(compliantVerifies) / float64(totalVerifies))
	}

	overall := actionVolumeFactor*weightActionVolume +
		taskRatioFactor*weightTaskRatio +
		anomalyFactor*weightAnomalyCount +
		consistencyFactor*weightTxConsistency +
		complianceFactor*weightComplianceAdher

	return Score{
		AgentID: agentID,
		Overall: clamp(overall),
		Breakdown: map[string]float64{
			"action_volume":     actionVolumeFactor,
			"task_ratio":        taskRatioFactor,
			"anomaly_count":     anomalyFactor,
			"tx_consistency":    consistencyFactor,
			"compliance_adhere": complianceFactor,
		},
	}
}

// transactionVariance returns a [0,100]-scaled penalty derived from the
// coefficient of variation (stddev / mean) of amounts, so tighter
// amount distributions score a smaller penalty.
func transactionVariance(amounts []decimal.Decimal) float64 {
	if len(amounts) < 2 {
		return 0
	}
	var sum float64
	floats := make([]float64, len(amounts))
	for i, a := range amounts {
		f, _ := a.Float64()
		floats[i] = f
		sum += f
	}
	mean := sum / float64(len(floats))
	if mean == 0 {
		return 0
	}
	var variance float64
	for _, f := range floats {
		variance += (f - mean) * (f - mean)
	}
	variance /= float64(len(floats))
	stddev := math.Sqrt(variance)
	coeffOfVariation := stddev / mean
	return clamp(coeffOfVariation * 100)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
