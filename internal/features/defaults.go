package features

// Bundle is a set of default values keyed by canonical feature name. Numeric
// entries are float64, categorical entries are strings.
type Bundle map[string]any

// stageDefaults holds one bundle per funding stage. Later stages resolve to
// series_b through stageBundleKey.
var stageDefaults = map[string]Bundle{
	"pre_seed": {
		TotalCapitalRaised:   250_000.0,
		CashOnHand:           200_000.0,
		MonthlyBurn:          20_000.0,
		RunwayMonths:         10.0,
		BurnMultiple:         3.0,
		InvestorTier:         "none",
		TechDifferentiation:  3.0,
		SwitchingCost:        2.0,
		BrandStrength:        2.0,
		Scalability:          3.0,
		TAMSize:              5e9,
		SAMSize:              5e8,
		SOMSize:              2e7,
		MarketGrowthRate:     20.0,
		UserGrowthRate:       20.0,
		NetDollarRetention:   100.0,
		CompetitionIntensity: 3.0,
		CompetitorsNamed:     5.0,
		FoundersCount:        2.0,
		TeamSize:             3.0,
		YearsExperience:      8.0,
		DomainExpertise:      4.0,
		BoardAdvisorScore:    2.0,
		AdvisorsCount:        1.0,
		TeamDiversity:        30.0,
		KeyPersonDependency:  1.0,
		ProductStage:         "mvp",
		Retention30d:         20.0,
		Retention90d:         10.0,
		DAUMAURatio:          0.10,
	},
	"seed": {
		TotalCapitalRaised:   2_000_000.0,
		CashOnHand:           1_500_000.0,
		MonthlyBurn:          80_000.0,
		RunwayMonths:         18.0,
		BurnMultiple:         2.5,
		InvestorTier:         "tier_2",
		TechDifferentiation:  3.0,
		SwitchingCost:        3.0,
		BrandStrength:        2.0,
		Scalability:          3.0,
		TAMSize:              1e10,
		SAMSize:              1e9,
		SOMSize:              5e7,
		MarketGrowthRate:     25.0,
		CustomerCount:        50.0,
		CustomerConcentrate:  30.0,
		UserGrowthRate:       50.0,
		NetDollarRetention:   100.0,
		CompetitionIntensity: 3.0,
		CompetitorsNamed:     8.0,
		FoundersCount:        2.0,
		TeamSize:             8.0,
		YearsExperience:      10.0,
		DomainExpertise:      5.0,
		PriorStartups:        1.0,
		BoardAdvisorScore:    3.0,
		AdvisorsCount:        3.0,
		TeamDiversity:        30.0,
		KeyPersonDependency:  1.0,
		ProductStage:         "launch",
		Retention30d:         35.0,
		Retention90d:         20.0,
		DAUMAURatio:          0.20,
		RevenueRunRate:       300_000.0,
		RevenueGrowthRate:    150.0,
		GrossMargin:          60.0,
		LTVCACRatio:          2.0,
	},
	"series_a": {
		TotalCapitalRaised:   12_000_000.0,
		CashOnHand:           9_000_000.0,
		MonthlyBurn:          400_000.0,
		RunwayMonths:         22.0,
		BurnMultiple:         2.0,
		InvestorTier:         "tier_2",
		TechDifferentiation:  3.0,
		SwitchingCost:        3.0,
		BrandStrength:        3.0,
		Scalability:          4.0,
		TAMSize:              2e10,
		SAMSize:              2e9,
		SOMSize:              1e8,
		MarketGrowthRate:     25.0,
		CustomerCount:        300.0,
		CustomerConcentrate:  20.0,
		UserGrowthRate:       80.0,
		NetDollarRetention:   110.0,
		CompetitionIntensity: 3.0,
		CompetitorsNamed:     10.0,
		FoundersCount:        2.0,
		TeamSize:             35.0,
		YearsExperience:      12.0,
		DomainExpertise:      6.0,
		PriorStartups:        1.0,
		BoardAdvisorScore:    3.0,
		AdvisorsCount:        4.0,
		TeamDiversity:        35.0,
		ProductStage:         "growth",
		Retention30d:         45.0,
		Retention90d:         30.0,
		DAUMAURatio:          0.25,
		RevenueRunRate:       2_500_000.0,
		RevenueGrowthRate:    120.0,
		GrossMargin:          65.0,
		LTVCACRatio:          3.0,
	},
	"series_b": {
		TotalCapitalRaised:   40_000_000.0,
		CashOnHand:           25_000_000.0,
		MonthlyBurn:          1_200_000.0,
		RunwayMonths:         20.0,
		BurnMultiple:         1.5,
		InvestorTier:         "tier_1",
		TechDifferentiation:  4.0,
		SwitchingCost:        3.0,
		BrandStrength:        3.0,
		Scalability:          4.0,
		TAMSize:              5e10,
		SAMSize:              5e9,
		SOMSize:              5e8,
		MarketGrowthRate:     20.0,
		CustomerCount:        1500.0,
		CustomerConcentrate:  12.0,
		UserGrowthRate:       60.0,
		NetDollarRetention:   115.0,
		CompetitionIntensity: 3.0,
		CompetitorsNamed:     12.0,
		FoundersCount:        3.0,
		TeamSize:             120.0,
		YearsExperience:      14.0,
		DomainExpertise:      7.0,
		PriorStartups:        1.0,
		BoardAdvisorScore:    4.0,
		AdvisorsCount:        5.0,
		TeamDiversity:        35.0,
		ProductStage:         "growth",
		Retention30d:         55.0,
		Retention90d:         40.0,
		DAUMAURatio:          0.30,
		RevenueRunRate:       12_000_000.0,
		RevenueGrowthRate:    80.0,
		GrossMargin:          70.0,
		LTVCACRatio:          3.5,
	},
}

// sectorOverrides refine stage defaults. Percent and score values combine
// with the stage default by max; everything else replaces it.
var sectorOverrides = map[string]Bundle{
	"saas": {
		GrossMargin:        75.0,
		NetDollarRetention: 110.0,
		SwitchingCost:      4.0,
		Scalability:        4.0,
	},
	"fintech": {
		RegulatoryAdvantage: 1.0,
		GrossMargin:         55.0,
		SwitchingCost:       3.0,
	},
	"healthtech": {
		RegulatoryAdvantage: 1.0,
		GrossMargin:         55.0,
	},
	"biotech": {
		PatentCount:         3.0,
		RegulatoryAdvantage: 1.0,
		TechDifferentiation: 4.0,
	},
	"ai_ml": {
		HasDataMoat:         1.0,
		TechDifferentiation: 4.0,
		Scalability:         4.0,
	},
	"marketplace": {
		NetworkEffects: 1.0,
		GrossMargin:    40.0,
	},
	"ecommerce": {
		GrossMargin: 40.0,
	},
	"consumer": {
		BrandStrength: 3.0,
	},
	"deeptech": {
		PatentCount:         2.0,
		TechDifferentiation: 5.0,
	},
	"hardware": {
		PatentCount: 1.0,
	},
}

// stageBundleKey maps a normalized funding stage onto a bundle key.
func stageBundleKey(stage string) string {
	switch stage {
	case "pre_seed", "seed", "series_a", "series_b":
		return stage
	case "series_c", "growth":
		return "series_b"
	default:
		return "seed"
	}
}

// typeFallback is the last-resort default for a feature with no stage or
// sector entry.
func typeFallback(f Feature) any {
	switch f.Kind {
	case KindScore:
		return 3.0
	case KindCategory:
		return f.Fallback
	default:
		return 0.0
	}
}

// resolveDefault applies stage -> sector -> type precedence for one feature.
func resolveDefault(f Feature, stage, sector string) any {
	value, ok := stageDefaults[stageBundleKey(stage)][f.Name]
	if !ok {
		value = typeFallback(f)
	}

	override, ok := sectorOverrides[sector][f.Name]
	if !ok {
		return value
	}

	switch f.Kind {
	case KindPercent, KindSignedPercent, KindScore:
		base, _ := value.(float64)
		over, _ := override.(float64)
		if over > base {
			return over
		}
		return base
	default:
		return override
	}
}

// Defaults returns the fully resolved default bundle for a stage and sector.
func Defaults(stage, sector string) Bundle {
	out := make(Bundle, NumFeatures)
	for _, f := range schema {
		out[f.Name] = resolveDefault(f, stage, sector)
	}
	out[FundingStage] = stage
	out[Sector] = sector
	return out
}
