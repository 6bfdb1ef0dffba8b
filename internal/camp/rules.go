package camp

import (
	"math"

	"github.com/ZanzyTHEbar/flash/internal/features"
)

// rule maps one normalized feature to a sub-score in [0,1].
type rule struct {
	feature string
	pillar  Pillar
	// revenue rules are skipped for pre-revenue companies.
	revenue bool
	score   func(v features.Vector) float64
}

func logScaled(name string, divisor float64) func(features.Vector) float64 {
	return func(v features.Vector) float64 {
		return clip(math.Log10(v.Float(name)+1)/divisor, 0, 1)
	}
}

func percent(name string) func(features.Vector) float64 {
	return func(v features.Vector) float64 {
		return clip(v.Float(name)/100, 0, 1)
	}
}

func inversePercent(name string) func(features.Vector) float64 {
	return func(v features.Vector) float64 {
		return clip(1-v.Float(name)/100, 0, 1)
	}
}

func signedGrowth(name string) func(features.Vector) float64 {
	return func(v features.Vector) float64 {
		return clip((v.Float(name)+100)/300, 0, 1)
	}
}

func ceiling(name string, top float64) func(features.Vector) float64 {
	return func(v features.Vector) float64 {
		return clip(v.Float(name)/top, 0, 1)
	}
}

func rating(name string) func(features.Vector) float64 {
	return func(v features.Vector) float64 {
		return clip((v.Float(name)-1)/4, 0, 1)
	}
}

func inverseRating(name string) func(features.Vector) float64 {
	return func(v features.Vector) float64 {
		return clip(1-(v.Float(name)-1)/4, 0, 1)
	}
}

func flag(name string) func(features.Vector) float64 {
	return func(v features.Vector) float64 {
		if v.Bool(name) {
			return 1
		}
		return 0
	}
}

func negativeFlag(name string) func(features.Vector) float64 {
	return func(v features.Vector) float64 {
		if v.Bool(name) {
			return 0
		}
		return 1
	}
}

var investorTierScores = map[string]float64{
	"tier_1": 1.0,
	"tier_2": 0.7,
	"tier_3": 0.4,
	"none":   0.1,
}

var productStageScores = map[string]float64{
	"concept": 0.0,
	"mvp":     0.2,
	"beta":    0.4,
	"launch":  0.6,
	"growth":  0.8,
	"mature":  1.0,
}

func labelled(name string, table map[string]float64) func(features.Vector) float64 {
	return func(v features.Vector) float64 {
		return table[v.Label(name)]
	}
}

func burnMultiple(v features.Vector) float64 {
	return clip(1-v.Float(features.BurnMultiple)/10, 0, 1)
}

// priorExits floors founders without an exit at 0.3 so the pillar is not
// dragged to zero by a missing track record.
func priorExits(v features.Vector) float64 {
	n := v.Float(features.PriorExits)
	if n <= 0 {
		return 0.3
	}
	return clip(0.5+0.25*n, 0, 1)
}

var rules = []rule{
	{feature: features.TotalCapitalRaised, pillar: Capital, score: logScaled(features.TotalCapitalRaised, 9)},
	{feature: features.CashOnHand, pillar: Capital, score: logScaled(features.CashOnHand, 8)},
	{feature: features.RunwayMonths, pillar: Capital, score: ceiling(features.RunwayMonths, 24)},
	{feature: features.BurnMultiple, pillar: Capital, score: burnMultiple},
	{feature: features.InvestorTier, pillar: Capital, score: labelled(features.InvestorTier, investorTierScores)},
	{feature: features.HasDebt, pillar: Capital, score: negativeFlag(features.HasDebt)},
	{feature: features.RevenueRunRate, pillar: Capital, score: logScaled(features.RevenueRunRate, 8)},
	{feature: features.GrossMargin, pillar: Capital, revenue: true, score: percent(features.GrossMargin)},
	{feature: features.LTVCACRatio, pillar: Capital, revenue: true, score: ceiling(features.LTVCACRatio, 5)},

	{feature: features.PatentCount, pillar: Advantage, score: logScaled(features.PatentCount, 2)},
	{feature: features.NetworkEffects, pillar: Advantage, score: flag(features.NetworkEffects)},
	{feature: features.HasDataMoat, pillar: Advantage, score: flag(features.HasDataMoat)},
	{feature: features.RegulatoryAdvantage, pillar: Advantage, score: flag(features.RegulatoryAdvantage)},
	{feature: features.TechDifferentiation, pillar: Advantage, score: rating(features.TechDifferentiation)},
	{feature: features.SwitchingCost, pillar: Advantage, score: rating(features.SwitchingCost)},
	{feature: features.BrandStrength, pillar: Advantage, score: rating(features.BrandStrength)},
	{feature: features.Scalability, pillar: Advantage, score: rating(features.Scalability)},
	{feature: features.ProductStage, pillar: Advantage, score: labelled(features.ProductStage, productStageScores)},
	{feature: features.Retention30d, pillar: Advantage, score: percent(features.Retention30d)},
	{feature: features.Retention90d, pillar: Advantage, score: percent(features.Retention90d)},
	{feature: features.DAUMAURatio, pillar: Advantage, score: ceiling(features.DAUMAURatio, 1)},

	{feature: features.TAMSize, pillar: Market, score: logScaled(features.TAMSize, 11)},
	{feature: features.SAMSize, pillar: Market, score: logScaled(features.SAMSize, 10)},
	{feature: features.SOMSize, pillar: Market, score: logScaled(features.SOMSize, 9)},
	{feature: features.MarketGrowthRate, pillar: Market, score: signedGrowth(features.MarketGrowthRate)},
	{feature: features.CustomerCount, pillar: Market, score: logScaled(features.CustomerCount, 5)},
	{feature: features.CustomerConcentrate, pillar: Market, score: inversePercent(features.CustomerConcentrate)},
	{feature: features.UserGrowthRate, pillar: Market, score: signedGrowth(features.UserGrowthRate)},
	{feature: features.CompetitionIntensity, pillar: Market, score: inverseRating(features.CompetitionIntensity)},
	{feature: features.RevenueGrowthRate, pillar: Market, revenue: true, score: signedGrowth(features.RevenueGrowthRate)},
	// 150% NDR saturates.
	{feature: features.NetDollarRetention, pillar: Market, revenue: true, score: ceiling(features.NetDollarRetention, 150)},

	{feature: features.FoundersCount, pillar: People, score: ceiling(features.FoundersCount, 3)},
	{feature: features.TeamSize, pillar: People, score: logScaled(features.TeamSize, 3)},
	{feature: features.YearsExperience, pillar: People, score: ceiling(features.YearsExperience, 20)},
	{feature: features.DomainExpertise, pillar: People, score: ceiling(features.DomainExpertise, 15)},
	{feature: features.PriorStartups, pillar: People, score: ceiling(features.PriorStartups, 3)},
	{feature: features.PriorExits, pillar: People, score: priorExits},
	{feature: features.BoardAdvisorScore, pillar: People, score: rating(features.BoardAdvisorScore)},
	{feature: features.AdvisorsCount, pillar: People, score: ceiling(features.AdvisorsCount, 5)},
	{feature: features.TeamDiversity, pillar: People, score: percent(features.TeamDiversity)},
	{feature: features.KeyPersonDependency, pillar: People, score: negativeFlag(features.KeyPersonDependency)},
}

func clip(x, lo, hi float64) float64 {
	if math.IsNaN(x) {
		return lo
	}
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
