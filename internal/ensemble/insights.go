package ensemble

import (
	"fmt"

	"github.com/ZanzyTHEbar/flash/internal/camp"
	"github.com/ZanzyTHEbar/flash/internal/features"
)

// maxPerCategory caps each insight list.
const maxPerCategory = 3

type insights struct {
	risks           []string
	growth          []string
	insights        []string
	recommendations []string
}

// capped collects messages in rule order and keeps the first few.
type capped []string

func (c *capped) add(cond bool, format string, args ...any) {
	if cond && len(*c) < maxPerCategory {
		*c = append(*c, fmt.Sprintf(format, args...))
	}
}

func (c capped) list() []string {
	if c == nil {
		return []string{}
	}
	return []string(c)
}

var pillarAdvice = map[camp.Pillar]string{
	camp.Capital:   "Strengthen the capital position: extend runway and bring in a stronger lead investor",
	camp.Advantage: "Deepen the moat: invest in defensible technology, data or switching costs",
	camp.Market:    "Sharpen the market story: validate TAM and reduce customer concentration",
	camp.People:    "Round out the team: add experienced operators or advisors in key roles",
}

// buildInsights applies the ordered rule sets. Output depends only on its
// arguments.
func buildInsights(v features.Vector, scores camp.Scores, predictions map[string]float64, res Result, cfg Config) insights {
	var risks, growth, notes, recs capped

	runway := v.Float(features.RunwayMonths)
	burn := v.Float(features.BurnMultiple)
	revenue := v.Float(features.RevenueRunRate)
	weakest, weakScore := scores.Weakest()
	strongest, strongScore := scores.Strongest()

	risks.add(runway < 6, "Short runway: %.0f months of cash remaining", runway)
	risks.add(burn > 3, "High burn multiple (%.1fx): capital efficiency is weak", burn)
	for _, id := range sortedKeys(predictions) {
		p := predictions[id]
		risks.add(p < cfg.LowModelProbability, "%s predicts a low success probability (%.2f)", id, p)
	}
	risks.add(v.Bool(features.KeyPersonDependency), "Key person dependency in the founding team")
	risks.add(v.Float(features.CustomerConcentrate) > 40,
		"Customer concentration at %.0f%% of revenue", v.Float(features.CustomerConcentrate))
	risks.add(revenue <= 0 && features.StageOrdinal(v.Stage()) >= features.StageOrdinal("series_a"),
		"No revenue reported at %s stage", v.Stage())
	risks.add(v.Bool(features.HasDebt), "Outstanding debt on the balance sheet")
	risks.add(weakScore < 0.4, "Weak %s pillar (%.2f)", weakest, weakScore)

	growth.add(revenue > 0 && v.Float(features.RevenueGrowthRate) > 100,
		"Revenue growing %.0f%% year over year", v.Float(features.RevenueGrowthRate))
	growth.add(v.Float(features.UserGrowthRate) > 50, "User base growing %.0f%%", v.Float(features.UserGrowthRate))
	growth.add(revenue > 0 && v.Float(features.NetDollarRetention) > 120,
		"Net dollar retention of %.0f%% shows strong expansion", v.Float(features.NetDollarRetention))
	growth.add(revenue > 0 && v.Float(features.LTVCACRatio) > 3,
		"Healthy unit economics: LTV/CAC of %.1f", v.Float(features.LTVCACRatio))
	growth.add(v.Bool(features.NetworkEffects), "Network effects compound growth")
	growth.add(v.Float(features.Retention90d) > 40, "Strong 90-day retention (%.0f%%)", v.Float(features.Retention90d))
	growth.add(v.Float(features.MarketGrowthRate) > 30, "Market expanding %.0f%% per year", v.Float(features.MarketGrowthRate))

	if res.Degraded {
		if res.Mode == ModeCAMPOnly {
			notes.add(true, "CAMP-only mode: estimate uses the CAMP framework without the model ensemble")
		} else {
			notes.add(true, "Degraded mode: no model predictions were available, estimate uses CAMP scores only")
		}
	}
	notes.add(true, "Strongest pillar is %s (%.2f), weakest is %s (%.2f)", strongest, strongScore, weakest, weakScore)
	notes.add(len(predictions) >= 2 && res.ModelAgreement >= 0.8, "Models agree closely (agreement %.2f)", res.ModelAgreement)
	notes.add(len(predictions) >= 2 && res.ModelAgreement < 0.5, "Models disagree (agreement %.2f): treat the verdict with caution", res.ModelAgreement)
	notes.add(v.Completeness() < 0.5, "Only %d of %d features supplied; stage defaults fill the rest",
		features.NumFeatures-len(v.Defaulted()), features.NumFeatures)

	recs.add(runway < 12, "Extend runway to at least 18 months before the next raise")
	recs.add(burn > 2, "Improve capital efficiency: target a burn multiple below 2x")
	recs.add(weakScore < 0.5, "%s", pillarAdvice[weakest])
	recs.add(v.Completeness() < 0.5, "Provide more operating metrics to raise prediction confidence")
	recs.add(res.SuccessProbability >= 0.7, "Prioritize for partner review")

	return insights{
		risks:           risks.list(),
		growth:          growth.list(),
		insights:        notes.list(),
		recommendations: recs.list(),
	}
}
