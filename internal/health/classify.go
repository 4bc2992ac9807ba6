// Package health computes weighted tenant health scores with trend and
// risk classification.
package health

import (
	"math"

	"github.com/avencora/tenantpulse/internal/config"
	"github.com/avencora/tenantpulse/internal/metrics"
	"github.com/avencora/tenantpulse/internal/models"
)

// componentScores holds the five bounded component scores.
type componentScores struct {
	Login          int
	CaseResolution int
	Campaign       int
	Feature        int
	Ticket         int
}

// clampScore bounds a computed score to [0, 100].
func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ratioScore maps an achieved/target ratio to a 0-100 score, capped at 100.
func ratioScore(achieved, target float64) int {
	return clampScore(int(math.Round(achieved / target * 100)))
}

// scoreComponents computes the five component scores from raw usage.
func scoreComponents(usage *metrics.RawUsage, cfg config.ScoringConfig) componentScores {
	var s componentScores

	if usage.TotalUsers == 0 {
		s.Login = 0
	} else {
		s.Login = ratioScore(float64(usage.ActiveUsers)/float64(usage.TotalUsers), cfg.LoginTarget)
	}

	// No closed cases means nothing to penalize.
	if usage.CasesClosed == 0 {
		s.CaseResolution = 100
	} else {
		s.CaseResolution = ratioScore(float64(usage.CasesOnTime)/float64(usage.CasesClosed), cfg.CaseTarget)
	}

	if usage.AssignmentsTotal == 0 {
		s.Campaign = 100
	} else {
		s.Campaign = ratioScore(float64(usage.AssignmentsCompleted)/float64(usage.AssignmentsTotal), cfg.CampaignTarget)
	}

	s.Feature = ratioScore(float64(usage.AdoptedFeatures)/float64(cfg.TrackedFeatureTotal), cfg.FeatureTarget)

	s.Ticket = clampScore(100 - usage.SupportTickets*cfg.TicketPenalty)

	return s
}

// overallScore combines the components with the configured weights.
func overallScore(s componentScores, cfg config.ScoringConfig) int {
	weighted := cfg.LoginWeight*float64(s.Login) +
		cfg.CaseResolutionWeight*float64(s.CaseResolution) +
		cfg.CampaignWeight*float64(s.Campaign) +
		cfg.FeatureWeight*float64(s.Feature) +
		cfg.TicketWeight*float64(s.Ticket)
	return clampScore(int(math.Round(weighted)))
}

// classifyTrend compares the new overall score to the previous one.
// Within the tolerance band the trend is STABLE; a first-ever score is
// always STABLE.
func classifyTrend(score int, previous *int, cfg config.ScoringConfig) models.Trend {
	if previous == nil {
		return models.TrendStable
	}
	delta := score - *previous
	switch {
	case delta > cfg.TrendTolerance:
		return models.TrendImproving
	case delta < -cfg.TrendTolerance:
		return models.TrendDeclining
	default:
		return models.TrendStable
	}
}

// classifyRisk derives the risk level from score and trend. A MEDIUM
// tenant that is declining escalates to HIGH when its score sits below
// the configured escalation threshold.
func classifyRisk(score int, trend models.Trend, cfg config.ScoringConfig) models.RiskLevel {
	switch {
	case score < cfg.HighRiskBelow:
		return models.RiskHigh
	case score < cfg.MediumRiskBelow:
		if trend == models.TrendDeclining && score < cfg.DecliningEscalationBelow {
			return models.RiskHigh
		}
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}
