package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ComplianceProfile bundles the anomaly, approval, and compliance
// threshold configuration for one deployment tier (e.g. "default",
// "strict", "permissive"), grounded on the teacher's RegionalProfile
// YAML-per-jurisdiction loading pattern, repurposed here for audit
// threshold tuning instead of regional legal regime selection.
type ComplianceProfile struct {
	Name       string           `yaml:"name" json:"name"`
	Code       string           `yaml:"code" json:"code"`
	Anomaly    AnomalyProfile   `yaml:"anomaly" json:"anomaly"`
	Approval   ApprovalProfile  `yaml:"approval" json:"approval"`
	Compliance ComplianceTuning `yaml:"compliance" json:"compliance"`
}

// AnomalyProfile configures the six rule-bank thresholds.
type AnomalyProfile struct {
	MaxAmount           string            `yaml:"max_amount" json:"max_amount"`
	MaxFrequencyPerHour int               `yaml:"max_frequency_per_hour" json:"max_frequency_per_hour"`
	OffHours            []int             `yaml:"off_hours" json:"off_hours"`
	MinIntervalSeconds  int               `yaml:"min_interval_seconds" json:"min_interval_seconds"`
	StructuringAmount   string            `yaml:"structuring_amount" json:"structuring_amount"`
	Severity            map[string]string `yaml:"severity" json:"severity"`
}

// ApprovalProfile configures the policy table's typed parameters.
type ApprovalProfile struct {
	AmountThreshold     string   `yaml:"amount_threshold" json:"amount_threshold"`
	LowTrustMinScore    float64  `yaml:"low_trust_min_score" json:"low_trust_min_score"`
	AnomalyMinSeverity  string   `yaml:"anomaly_min_severity" json:"anomaly_min_severity"`
	ManualAlwaysEnabled bool     `yaml:"manual_always_enabled" json:"manual_always_enabled"`
	RequiredEvidence    []string `yaml:"required_evidence" json:"required_evidence"`
	TTLSeconds          int      `yaml:"ttl_seconds" json:"ttl_seconds"`
}

// ComplianceTuning configures the verifier's configurable thresholds.
type ComplianceTuning struct {
	AmountThreshold      string `yaml:"amount_threshold" json:"amount_threshold"`
	AnomalyWindowSeconds int    `yaml:"anomaly_window_seconds" json:"anomaly_window_seconds"`
}

// LoadComplianceProfile loads a profile YAML by code from profilesDir,
// searching for profile_<code>.yaml.
func LoadComplianceProfile(profilesDir, code string) (*ComplianceProfile, error) {
	code = strings.ToLower(code)
	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", code))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load compliance profile %q: %w", code, err)
	}

	var profile ComplianceProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse compliance profile %q: %w", code, err)
	}
	if profile.Code == "" {
		profile.Code = code
	}
	return &profile, nil
}

// LoadAllComplianceProfiles loads every profile_*.yaml file in profilesDir.
func LoadAllComplianceProfiles(profilesDir string) (map[string]*ComplianceProfile, error) {
	matches, err := filepath.Glob(filepath.Join(profilesDir, "profile_*.yaml"))
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]*ComplianceProfile, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		var profile ComplianceProfile
		if err := yaml.Unmarshal(data, &profile); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if profile.Code == "" {
			base := filepath.Base(path)
			profile.Code = strings.TrimSuffix(strings.TrimPrefix(base, "profile_"), ".yaml")
		}
		profiles[profile.Code] = &profile
	}
	return profiles, nil
}
