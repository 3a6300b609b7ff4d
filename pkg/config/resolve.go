package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kontext-systems/audit-core/pkg/anomaly"
	"github.com/kontext-systems/audit-core/pkg/approval"
	"github.com/kontext-systems/audit-core/pkg/compliance"
)

// ResolvedProfile holds a ComplianceProfile's YAML string thresholds
// converted into the typed Config values the anomaly, approval, and
// compliance packages expect.
type ResolvedProfile struct {
	Anomaly     anomaly.Config
	Policies    map[approval.PolicyName]*approval.Policy
	ApprovalTTL time.Duration
	Compliance  compliance.Config
}

// Resolve converts p's string/int YAML fields into the decimal/duration
// types the engines consume, failing if any amount string cannot be
// parsed as a decimal.
func Resolve(p *ComplianceProfile) (ResolvedProfile, error) {
	maxAmount, err := decimalOrZero(p.Anomaly.MaxAmount)
	if err != nil {
		return ResolvedProfile{}, fmt.Errorf("anomaly.max_amount: %w", err)
	}
	structuringAmount, err := decimalOrZero(p.Anomaly.StructuringAmount)
	if err != nil {
		return ResolvedProfile{}, fmt.Errorf("anomaly.structuring_amount: %w", err)
	}

	offHours := make(map[int]bool, len(p.Anomaly.OffHours))
	for _, h := range p.Anomaly.OffHours {
		offHours[h] = true
	}
	severity := make(map[anomaly.RuleName]string, len(p.Anomaly.Severity))
	for rule, sev := range p.Anomaly.Severity {
		severity[anomaly.RuleName(rule)] = sev
	}

	anomalyCfg := anomaly.Config{
		MaxAmount:           maxAmount,
		MaxFrequencyPerHour: p.Anomaly.MaxFrequencyPerHour,
		OffHours:            offHours,
		MinIntervalSeconds:  p.Anomaly.MinIntervalSeconds,
		StructuringAmount:   structuringAmount,
		Severity:            severity,
	}

	approvalThreshold, err := decimalOrZero(p.Approval.AmountThreshold)
	if err != nil {
		return ResolvedProfile{}, fmt.Errorf("approval.amount_threshold: %w", err)
	}
	policies := map[approval.PolicyName]*approval.Policy{
		approval.PolicyAmountThreshold: {
			Enabled:          true,
			Threshold:        approvalThreshold,
			RequiredEvidence: p.Approval.RequiredEvidence,
		},
		approval.PolicyLowTrustScore: {
			Enabled:          true,
			MinScore:         p.Approval.LowTrustMinScore,
			RequiredEvidence: p.Approval.RequiredEvidence,
		},
		approval.PolicyAnomalyDetected: {
			Enabled:          true,
			MinSeverityRank:  severityRankFor(p.Approval.AnomalyMinSeverity),
			RequiredEvidence: p.Approval.RequiredEvidence,
		},
		approval.PolicyNewDestination: {
			Enabled:          true,
			RequiredEvidence: p.Approval.RequiredEvidence,
		},
		approval.PolicyManual: {
			Enabled:          p.Approval.ManualAlwaysEnabled,
			RequiredEvidence: p.Approval.RequiredEvidence,
		},
	}

	complianceThreshold, err := decimalOrZero(p.Compliance.AmountThreshold)
	if err != nil {
		return ResolvedProfile{}, fmt.Errorf("compliance.amount_threshold: %w", err)
	}
	complianceCfg := compliance.Config{
		AmountThreshold: complianceThreshold,
		AnomalyWindow:   time.Duration(p.Compliance.AnomalyWindowSeconds) * time.Second,
	}

	return ResolvedProfile{
		Anomaly:     anomalyCfg,
		Policies:    policies,
		ApprovalTTL: time.Duration(p.Approval.TTLSeconds) * time.Second,
		Compliance:  complianceCfg,
	}, nil
}

func decimalOrZero(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func severityRankFor(s string) int {
	switch s {
	case "low":
		return 1
	case "medium":
		return 2
	case "high":
		return 3
	case "critical":
		return 4
	default:
		return 0
	}
}
