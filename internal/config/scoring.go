package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ScoringConfig holds every tunable used by the health score calculator
// and the benchmark aggregator. Defaults match the published scoring
// methodology; a YAML file can override individual values.
type ScoringConfig struct {
	// Component weights; must sum to 1.0.
	LoginWeight          float64 `yaml:"login_weight"`
	CaseResolutionWeight float64 `yaml:"case_resolution_weight"`
	CampaignWeight       float64 `yaml:"campaign_weight"`
	FeatureWeight        float64 `yaml:"feature_weight"`
	TicketWeight         float64 `yaml:"ticket_weight"`

	// Component targets: the ratio that earns a full 100.
	LoginTarget    float64 `yaml:"login_target"`
	CaseTarget     float64 `yaml:"case_target"`
	CampaignTarget float64 `yaml:"campaign_target"`
	FeatureTarget  float64 `yaml:"feature_target"`

	// TicketPenalty is deducted per support ticket in the window.
	TicketPenalty int `yaml:"ticket_penalty"`

	// TrackedFeatureTotal is the denominator for feature adoption.
	TrackedFeatureTotal int `yaml:"tracked_feature_total"`

	// TrendTolerance is the band (in points) within which a score change
	// counts as STABLE.
	TrendTolerance int `yaml:"trend_tolerance"`

	// Risk thresholds: score < HighRiskBelow is HIGH, < MediumRiskBelow
	// is MEDIUM, otherwise LOW.
	HighRiskBelow   int `yaml:"high_risk_below"`
	MediumRiskBelow int `yaml:"medium_risk_below"`

	// DecliningEscalationBelow escalates a MEDIUM tenant with a DECLINING
	// trend to HIGH when its score is below this value.
	DecliningEscalationBelow int `yaml:"declining_escalation_below"`

	// MinPeerCount is the benchmark privacy floor.
	MinPeerCount int `yaml:"min_peer_count"`

	// WindowDays is the trailing collection window.
	WindowDays int `yaml:"window_days"`

	// InterTenantDelay spaces sequential tenants in batch runs.
	InterTenantDelay time.Duration `yaml:"inter_tenant_delay"`
}

// DefaultScoringConfig returns the standard scoring configuration.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		LoginWeight:          0.20,
		CaseResolutionWeight: 0.25,
		CampaignWeight:       0.25,
		FeatureWeight:        0.15,
		TicketWeight:         0.15,

		LoginTarget:    0.70,
		CaseTarget:     0.90,
		CampaignTarget: 0.85,
		FeatureTarget:  0.60,

		TicketPenalty:       10,
		TrackedFeatureTotal: 20,

		TrendTolerance: 3,

		HighRiskBelow:            60,
		MediumRiskBelow:          80,
		DecliningEscalationBelow: 70,

		MinPeerCount: 5,
		WindowDays:   30,

		InterTenantDelay: 100 * time.Millisecond,
	}
}

// Validate checks the configuration is internally consistent.
func (c ScoringConfig) Validate() error {
	sum := c.LoginWeight + c.CaseResolutionWeight + c.CampaignWeight + c.FeatureWeight + c.TicketWeight
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("component weights must sum to 1.0, got %v", sum)
	}
	if c.LoginTarget <= 0 || c.CaseTarget <= 0 || c.CampaignTarget <= 0 || c.FeatureTarget <= 0 {
		return fmt.Errorf("component targets must be positive")
	}
	if c.TrackedFeatureTotal <= 0 {
		return fmt.Errorf("tracked_feature_total must be positive")
	}
	if c.HighRiskBelow >= c.MediumRiskBelow {
		return fmt.Errorf("high_risk_below (%d) must be less than medium_risk_below (%d)",
			c.HighRiskBelow, c.MediumRiskBelow)
	}
	if c.MinPeerCount < 1 {
		return fmt.Errorf("min_peer_count must be at least 1")
	}
	if c.WindowDays < 1 {
		return fmt.Errorf("window_days must be at least 1")
	}
	return nil
}

// LoadScoringConfig returns the defaults, overridden by the YAML file at
// path if one exists. An empty path or missing file yields the defaults.
func LoadScoringConfig(path string) (ScoringConfig, error) {
	cfg := DefaultScoringConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read scoring config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse scoring config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validate scoring config: %w", err)
	}
	return cfg, nil
}
