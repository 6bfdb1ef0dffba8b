package ensemble

import (
	"github.com/ZanzyTHEbar/flash/internal/camp"
	"github.com/ZanzyTHEbar/flash/internal/verdict"
)

// Result is the outcome of one prediction.
type Result struct {
	SuccessProbability float64            `json:"success_probability"`
	Confidence         float64            `json:"confidence_score"`
	Verdict            verdict.Verdict    `json:"verdict"`
	VerdictStrength    verdict.Strength   `json:"verdict_strength"`
	RiskLevel          verdict.RiskLevel  `json:"risk_level"`
	PillarScores       map[string]float64 `json:"pillar_scores"`
	CAMP               camp.Scores        `json:"camp_analysis"`
	ModelPredictions   map[string]float64 `json:"model_predictions"`
	ModelAgreement     float64            `json:"model_agreement"`
	RiskFactors        []string           `json:"risk_factors"`
	KeyInsights        []string           `json:"key_insights"`
	GrowthIndicators   []string           `json:"growth_indicators"`
	Recommendations    []string           `json:"recommendations"`
	WeightsUsed        map[string]float64 `json:"weights_used"`
	Degraded           bool               `json:"degraded"`
	Mode               Mode               `json:"mode"`
	FundingStage       string             `json:"funding_stage"`
	Sector             string             `json:"sector"`
}

// Map flattens the result into the response mapping used by the CLI and
// batch writer.
func (r Result) Map() map[string]any {
	return map[string]any{
		"success_probability": r.SuccessProbability,
		"confidence_score":    r.Confidence,
		"verdict":             string(r.Verdict),
		"verdict_strength":    string(r.VerdictStrength),
		"risk_level":          string(r.RiskLevel),
		"pillar_scores":       r.PillarScores,
		"camp_analysis":       r.CAMP,
		"model_predictions":   r.ModelPredictions,
		"model_agreement":     r.ModelAgreement,
		"risk_factors":        r.RiskFactors,
		"key_insights":        r.KeyInsights,
		"growth_indicators":   r.GrowthIndicators,
		"recommendations":     r.Recommendations,
		"weights_used":        r.WeightsUsed,
		"degraded":            r.Degraded,
		"mode":                string(r.Mode),
		"funding_stage":       r.FundingStage,
		"sector":              r.Sector,
	}
}
