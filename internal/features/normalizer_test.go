package features

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietNormalizer() *Normalizer {
	return NewNormalizer(WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
}

func assertValid(t *testing.T, v Vector) {
	t.Helper()
	m := v.Map()
	require.Len(t, m, NumFeatures)
	for _, f := range Schema() {
		value, ok := m[f.Name]
		require.True(t, ok, "missing %s", f.Name)
		switch f.Kind {
		case KindFlag:
			assert.IsType(t, true, value, f.Name)
		case KindCategory:
			label, isString := value.(string)
			require.True(t, isString, f.Name)
			assert.GreaterOrEqual(t, f.Encode(label), 0, "%s=%q", f.Name, label)
		default:
			x, isFloat := value.(float64)
			require.True(t, isFloat, f.Name)
			assert.False(t, math.IsNaN(x) || math.IsInf(x, 0), f.Name)
			assert.GreaterOrEqual(t, x, f.Min, f.Name)
			assert.LessOrEqual(t, x, f.Max, f.Name)
			if f.Kind == KindScore {
				assert.Equal(t, math.Round(x), x, f.Name)
			}
		}
	}
}

func TestSchemaShape(t *testing.T) {
	groups := map[Group]int{}
	for _, f := range Schema() {
		groups[f.Group]++
	}

	assert.Len(t, Names(), NumFeatures)
	assert.Equal(t, map[Group]int{
		GroupCapital:   7,
		GroupAdvantage: 8,
		GroupMarket:    11,
		GroupPeople:    10,
		GroupProduct:   9,
	}, groups)
	assert.Equal(t, 0, StageOrdinal("pre_seed"))
	assert.Equal(t, 3, StageOrdinal("series_b"))
	assert.Equal(t, StageOrdinal("seed"), StageOrdinal("unknown"))
}

func TestNormalizeTotality(t *testing.T) {
	n := quietNormalizer()

	tests := []struct {
		name string
		raw  map[string]any
	}{
		{name: "nil map", raw: nil},
		{name: "empty map", raw: map[string]any{}},
		{name: "garbage values", raw: map[string]any{
			TotalCapitalRaised:  "lots",
			HasDebt:             []int{1},
			TechDifferentiation: math.NaN(),
			BurnMultiple:        math.Inf(1),
			Sector:              42,
			FundingStage:        true,
			ProductStage:        nil,
		}},
		{name: "out of range", raw: map[string]any{
			RunwayMonths:        -5,
			GrossMargin:         400,
			DAUMAURatio:         7000,
			TechDifferentiation: 12,
			BoardAdvisorScore:   -3,
			FoundersCount:       1e9,
		}},
		{name: "ui only keys", raw: map[string]any{
			"startup_name": "Acme",
			"description":  "rockets",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := n.Normalize(tt.raw)
			assertValid(t, v)
			assert.Len(t, v.Encoded(), NumFeatures)
		})
	}
}

func TestNormalizePreSeedDefaults(t *testing.T) {
	n := quietNormalizer()

	v := n.Normalize(map[string]any{
		FundingStage:       "pre_seed",
		TotalCapitalRaised: 0,
	})

	assert.Equal(t, "pre_seed", v.Stage())
	assert.Equal(t, "other", v.Sector())
	assert.Equal(t, 0.0, v.Float(TotalCapitalRaised))
	assert.Equal(t, 3.0, v.Float(TeamSize))
	assert.Equal(t, "none", v.Label(InvestorTier))
	assert.Equal(t, "mvp", v.Label(ProductStage))
	assert.NotContains(t, v.Defaulted(), FundingStage)
	assert.NotContains(t, v.Defaulted(), TotalCapitalRaised)
	assert.Contains(t, v.Defaulted(), TeamSize)
	assert.Len(t, v.Defaulted(), NumFeatures-2)
}

func TestNormalizeStageFallback(t *testing.T) {
	n := quietNormalizer()

	tests := []struct {
		name     string
		stage    any
		want     string
		teamSize float64
	}{
		{name: "missing", stage: nil, want: "seed", teamSize: 8},
		{name: "unknown", stage: "series_z", want: "seed", teamSize: 8},
		{name: "alias", stage: "Series-A", want: "series_a", teamSize: 35},
		{name: "series c uses series b bundle", stage: "series_c", want: "series_c", teamSize: 120},
		{name: "growth uses series b bundle", stage: "growth", want: "growth", teamSize: 120},
		{name: "label encoding", stage: 0, want: "pre_seed", teamSize: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := n.Normalize(map[string]any{FundingStage: tt.stage})
			assert.Equal(t, tt.want, v.Stage())
			assert.Equal(t, tt.teamSize, v.Float(TeamSize))
		})
	}
}

func TestNormalizeSectorOverrides(t *testing.T) {
	n := quietNormalizer()

	saas := n.Normalize(map[string]any{FundingStage: "seed", Sector: "SaaS"})
	assert.Equal(t, "saas", saas.Sector())
	assert.Equal(t, 75.0, saas.Float(GrossMargin))
	assert.Equal(t, 110.0, saas.Float(NetDollarRetention))
	assert.Equal(t, 4.0, saas.Float(SwitchingCost))

	// max(stage, sector) keeps the higher series_b margin.
	marketplace := n.Normalize(map[string]any{FundingStage: "series_b", Sector: "marketplace"})
	assert.Equal(t, 70.0, marketplace.Float(GrossMargin))
	assert.True(t, marketplace.Bool(NetworkEffects))

	fintech := n.Normalize(map[string]any{Sector: "fintech"})
	assert.True(t, fintech.Bool(RegulatoryAdvantage))

	unknown := n.Normalize(map[string]any{Sector: "space mining"})
	assert.Equal(t, "other", unknown.Sector())
	assert.Contains(t, unknown.Defaulted(), Sector)
}

func TestNormalizeCoercion(t *testing.T) {
	n := quietNormalizer()

	tests := []struct {
		name    string
		feature string
		raw     any
		want    float64
	}{
		{name: "currency string", feature: TotalCapitalRaised, raw: "$1,500,000", want: 1_500_000},
		{name: "underscored number", feature: CustomerCount, raw: "1_200", want: 1200},
		{name: "json number", feature: RunwayMonths, raw: json.Number("14"), want: 14},
		{name: "int64", feature: PatentCount, raw: int64(7), want: 7},
		{name: "percent string", feature: TeamDiversity, raw: " 40% ", want: 40},
		{name: "margin fraction scaled", feature: GrossMargin, raw: 0.78, want: 78},
		{name: "negative margin fraction scaled", feature: GrossMargin, raw: json.Number("-0.2"), want: -20},
		{name: "margin with percent sign kept", feature: GrossMargin, raw: "0.5%", want: 0.5},
		{name: "growth fraction kept", feature: RevenueGrowthRate, raw: 0.45, want: 0.45},
		{name: "fraction with percent sign kept", feature: TeamDiversity, raw: "0.5%", want: 0.5},
		{name: "fraction string scaled", feature: Retention90d, raw: "0.3", want: 30},
		{name: "fraction unsigned percent scaled", feature: Retention30d, raw: 0.45, want: 45},
		{name: "integral percent kept", feature: Retention30d, raw: 1, want: 1},
		{name: "dau mau given as percent", feature: DAUMAURatio, raw: 25, want: 0.25},
		{name: "score rounded", feature: TechDifferentiation, raw: 3.6, want: 4},
		{name: "score clamped high", feature: SwitchingCost, raw: 9, want: 5},
		{name: "score clamped low", feature: BrandStrength, raw: 0, want: 1},
		{name: "negative clamped", feature: MonthlyBurn, raw: -10, want: 0},
		{name: "signed growth kept", feature: RevenueGrowthRate, raw: -40, want: -40},
		{name: "signed growth clamped", feature: UserGrowthRate, raw: -250, want: -100},
		{name: "flag yes", feature: HasDebt, raw: "Yes", want: 1},
		{name: "flag off", feature: HasDataMoat, raw: "off", want: 0},
		{name: "flag bool", feature: NetworkEffects, raw: true, want: 1},
		{name: "flag numeric", feature: KeyPersonDependency, raw: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := n.Normalize(map[string]any{tt.feature: tt.raw})
			assert.InDelta(t, tt.want, v.Float(tt.feature), 1e-9)
			assert.NotContains(t, v.Defaulted(), tt.feature)
		})
	}
}

func TestNormalizeUninterpretableFallsBack(t *testing.T) {
	var logs bytes.Buffer
	n := NewNormalizer(WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))))

	v := n.Normalize(map[string]any{
		FundingStage: "seed",
		TeamSize:     "a dozen",
		HasDebt:      "maybe",
		ProductStage: "stealth",
	})

	assert.Equal(t, 8.0, v.Float(TeamSize))
	assert.False(t, v.Bool(HasDebt))
	assert.Equal(t, "launch", v.Label(ProductStage))
	assert.Contains(t, v.Defaulted(), TeamSize)
	assert.Contains(t, logs.String(), "feature coercion failed")
	assert.Contains(t, logs.String(), TeamSize)
}

func TestNormalizeIsDeterministic(t *testing.T) {
	n := quietNormalizer()
	raw := map[string]any{
		FundingStage:       "series_a",
		Sector:             "ai_ml",
		TotalCapitalRaised: 9e6,
		GrossMargin:        "68%",
		"startup_name":     "Acme",
	}

	first := n.Normalize(raw)
	second := n.Normalize(raw)

	if diff := cmp.Diff(first.Map(), second.Map()); diff != "" {
		t.Fatalf("normalization not deterministic (-first +second):\n%s", diff)
	}
	assert.Equal(t, first.Encoded(), second.Encoded())
	assert.True(t, first.Bool(HasDataMoat))
	assert.Equal(t, 68.0, first.Float(GrossMargin))
}

func TestVectorAccessorsReturnCopies(t *testing.T) {
	v := quietNormalizer().Normalize(map[string]any{FundingStage: "seed"})

	encoded := v.Encoded()
	encoded[0] = -1
	assert.NotEqual(t, -1.0, v.Encoded()[0])

	defaulted := v.Defaulted()
	require.NotEmpty(t, defaulted)
	defaulted[0] = "mutated"
	assert.NotEqual(t, "mutated", v.Defaulted()[0])

	f, ok := Lookup(FundingStage)
	require.True(t, ok)
	assert.Equal(t, float64(f.Encode("seed")), v.Float(FundingStage))
	assert.InDelta(t, 1.0/NumFeatures, v.Completeness(), 1e-9)
}
