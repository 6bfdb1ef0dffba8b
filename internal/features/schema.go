package features

// Kind describes how a canonical feature is coerced, bounded and defaulted.
type Kind int

const (
	KindUSD Kind = iota
	KindCount
	KindRatio
	KindPercent
	KindSignedPercent
	KindScore
	KindFlag
	KindCategory
)

func (k Kind) String() string {
	switch k {
	case KindUSD:
		return "usd"
	case KindCount:
		return "count"
	case KindRatio:
		return "ratio"
	case KindPercent:
		return "percent"
	case KindSignedPercent:
		return "signed_percent"
	case KindScore:
		return "score"
	case KindFlag:
		return "flag"
	case KindCategory:
		return "category"
	default:
		return "unknown"
	}
}

// Group is the schema category a feature belongs to.
type Group string

const (
	GroupCapital   Group = "capital"
	GroupAdvantage Group = "advantage"
	GroupMarket    Group = "market"
	GroupPeople    Group = "people"
	GroupProduct   Group = "product"
)

// Feature declares one canonical input column.
type Feature struct {
	Name  string  `json:"name"`
	Group Group   `json:"group"`
	Kind  Kind    `json:"-"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	// Negative marks flags where true is unfavourable (debt, key-person risk).
	Negative   bool     `json:"negative,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Fallback   string   `json:"fallback,omitempty"`
}

// Canonical feature names.
const (
	TotalCapitalRaised   = "total_capital_raised_usd"
	CashOnHand           = "cash_on_hand_usd"
	MonthlyBurn          = "monthly_burn_usd"
	RunwayMonths         = "runway_months"
	BurnMultiple         = "burn_multiple"
	InvestorTier         = "investor_tier_primary"
	HasDebt              = "has_debt"
	PatentCount          = "patent_count"
	NetworkEffects       = "network_effects_present"
	HasDataMoat          = "has_data_moat"
	RegulatoryAdvantage  = "regulatory_advantage_present"
	TechDifferentiation  = "tech_differentiation_score"
	SwitchingCost        = "switching_cost_score"
	BrandStrength        = "brand_strength_score"
	Scalability          = "scalability_score"
	Sector               = "sector"
	TAMSize              = "tam_size_usd"
	SAMSize              = "sam_size_usd"
	SOMSize              = "som_size_usd"
	MarketGrowthRate     = "market_growth_rate_percent"
	CustomerCount        = "customer_count"
	CustomerConcentrate  = "customer_concentration_percent"
	UserGrowthRate       = "user_growth_rate_percent"
	NetDollarRetention   = "net_dollar_retention_percent"
	CompetitionIntensity = "competition_intensity"
	CompetitorsNamed     = "competitors_named_count"
	FoundersCount        = "founders_count"
	TeamSize             = "team_size_full_time"
	YearsExperience      = "years_experience_avg"
	DomainExpertise      = "domain_expertise_years_avg"
	PriorStartups        = "prior_startup_experience_count"
	PriorExits           = "prior_successful_exits_count"
	BoardAdvisorScore    = "board_advisor_experience_score"
	AdvisorsCount        = "advisors_count"
	TeamDiversity        = "team_diversity_percent"
	KeyPersonDependency  = "key_person_dependency"
	ProductStage         = "product_stage"
	Retention30d         = "product_retention_30d"
	Retention90d         = "product_retention_90d"
	DAUMAURatio          = "dau_mau_ratio"
	RevenueRunRate       = "annual_revenue_run_rate"
	RevenueGrowthRate    = "revenue_growth_rate_percent"
	GrossMargin          = "gross_margin_percent"
	LTVCACRatio          = "ltv_cac_ratio"
	FundingStage         = "funding_stage"
)

// NumFeatures is the width of the canonical schema.
const NumFeatures = 45

var (
	investorTiers = []string{"tier_1", "tier_2", "tier_3", "none"}
	sectors       = []string{
		"saas", "fintech", "healthtech", "biotech", "ai_ml", "marketplace",
		"ecommerce", "edtech", "hardware", "consumer", "deeptech", "other",
	}
	productStages = []string{"concept", "mvp", "beta", "launch", "growth", "mature"}
	fundingStages = []string{"pre_seed", "seed", "series_a", "series_b", "series_c", "growth"}
)

// schema is the canonical 45-column contract in training-time order.
var schema = [NumFeatures]Feature{
	{Name: TotalCapitalRaised, Group: GroupCapital, Kind: KindUSD, Max: 1e12},
	{Name: CashOnHand, Group: GroupCapital, Kind: KindUSD, Max: 1e12},
	{Name: MonthlyBurn, Group: GroupCapital, Kind: KindUSD, Max: 1e10},
	{Name: RunwayMonths, Group: GroupCapital, Kind: KindCount, Max: 240},
	{Name: BurnMultiple, Group: GroupCapital, Kind: KindRatio, Max: 1000},
	{Name: InvestorTier, Group: GroupCapital, Kind: KindCategory, Categories: investorTiers, Fallback: "none"},
	{Name: HasDebt, Group: GroupCapital, Kind: KindFlag, Max: 1, Negative: true},

	{Name: PatentCount, Group: GroupAdvantage, Kind: KindCount, Max: 10000},
	{Name: NetworkEffects, Group: GroupAdvantage, Kind: KindFlag, Max: 1},
	{Name: HasDataMoat, Group: GroupAdvantage, Kind: KindFlag, Max: 1},
	{Name: RegulatoryAdvantage, Group: GroupAdvantage, Kind: KindFlag, Max: 1},
	{Name: TechDifferentiation, Group: GroupAdvantage, Kind: KindScore, Min: 1, Max: 5},
	{Name: SwitchingCost, Group: GroupAdvantage, Kind: KindScore, Min: 1, Max: 5},
	{Name: BrandStrength, Group: GroupAdvantage, Kind: KindScore, Min: 1, Max: 5},
	{Name: Scalability, Group: GroupAdvantage, Kind: KindScore, Min: 1, Max: 5},

	{Name: Sector, Group: GroupMarket, Kind: KindCategory, Categories: sectors, Fallback: "other"},
	{Name: TAMSize, Group: GroupMarket, Kind: KindUSD, Max: 1e14},
	{Name: SAMSize, Group: GroupMarket, Kind: KindUSD, Max: 1e14},
	{Name: SOMSize, Group: GroupMarket, Kind: KindUSD, Max: 1e14},
	{Name: MarketGrowthRate, Group: GroupMarket, Kind: KindSignedPercent, Min: -100, Max: 1000},
	{Name: CustomerCount, Group: GroupMarket, Kind: KindCount, Max: 1e10},
	{Name: CustomerConcentrate, Group: GroupMarket, Kind: KindPercent, Max: 100},
	{Name: UserGrowthRate, Group: GroupMarket, Kind: KindSignedPercent, Min: -100, Max: 1000},
	{Name: NetDollarRetention, Group: GroupMarket, Kind: KindPercent, Max: 300},
	{Name: CompetitionIntensity, Group: GroupMarket, Kind: KindScore, Min: 1, Max: 5},
	{Name: CompetitorsNamed, Group: GroupMarket, Kind: KindCount, Max: 10000},

	{Name: FoundersCount, Group: GroupPeople, Kind: KindCount, Max: 20},
	{Name: TeamSize, Group: GroupPeople, Kind: KindCount, Max: 1e6},
	{Name: YearsExperience, Group: GroupPeople, Kind: KindCount, Max: 60},
	{Name: DomainExpertise, Group: GroupPeople, Kind: KindCount, Max: 60},
	{Name: PriorStartups, Group: GroupPeople, Kind: KindCount, Max: 50},
	{Name: PriorExits, Group: GroupPeople, Kind: KindCount, Max: 50},
	{Name: BoardAdvisorScore, Group: GroupPeople, Kind: KindScore, Min: 1, Max: 5},
	{Name: AdvisorsCount, Group: GroupPeople, Kind: KindCount, Max: 100},
	{Name: TeamDiversity, Group: GroupPeople, Kind: KindPercent, Max: 100},
	{Name: KeyPersonDependency, Group: GroupPeople, Kind: KindFlag, Max: 1, Negative: true},

	{Name: ProductStage, Group: GroupProduct, Kind: KindCategory, Categories: productStages, Fallback: "mvp"},
	{Name: Retention30d, Group: GroupProduct, Kind: KindPercent, Max: 100},
	{Name: Retention90d, Group: GroupProduct, Kind: KindPercent, Max: 100},
	{Name: DAUMAURatio, Group: GroupProduct, Kind: KindRatio, Max: 1},
	{Name: RevenueRunRate, Group: GroupProduct, Kind: KindUSD, Max: 1e12},
	{Name: RevenueGrowthRate, Group: GroupProduct, Kind: KindSignedPercent, Min: -100, Max: 1000},
	{Name: GrossMargin, Group: GroupProduct, Kind: KindSignedPercent, Min: -100, Max: 100},
	{Name: LTVCACRatio, Group: GroupProduct, Kind: KindRatio, Max: 100},
	{Name: FundingStage, Group: GroupProduct, Kind: KindCategory, Categories: fundingStages, Fallback: "seed"},
}

var schemaIndex = func() map[string]int {
	idx := make(map[string]int, NumFeatures)
	for i, f := range schema {
		idx[f.Name] = i
	}
	return idx
}()

// Schema returns the canonical features in column order.
func Schema() []Feature {
	out := make([]Feature, NumFeatures)
	copy(out, schema[:])
	return out
}

// Names returns the canonical feature names in column order.
func Names() []string {
	names := make([]string, NumFeatures)
	for i, f := range schema {
		names[i] = f.Name
	}
	return names
}

// Lookup returns the declaration of a canonical feature.
func Lookup(name string) (Feature, bool) {
	i, ok := schemaIndex[name]
	if !ok {
		return Feature{}, false
	}
	return schema[i], true
}

// IsCanonical reports whether name is one of the 45 canonical features.
func IsCanonical(name string) bool {
	_, ok := schemaIndex[name]
	return ok
}

// Encode returns the training-time label encoding of a category value, or -1.
func (f Feature) Encode(label string) int {
	for i, c := range f.Categories {
		if c == label {
			return i
		}
	}
	return -1
}

// StageOrdinal returns the position of a funding stage, pre_seed being 0.
func StageOrdinal(stage string) int {
	f, _ := Lookup(FundingStage)
	if i := f.Encode(stage); i >= 0 {
		return i
	}
	return f.Encode(f.Fallback)
}
