package features

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

var numberReplacer = strings.NewReplacer("$", "", ",", "", "_", "", "%", "", " ", "")

// toNumber interprets a raw JSON-ish value as a finite float.
func toNumber(raw any) (float64, bool) {
	var x float64
	switch v := raw.(type) {
	case nil:
		return 0, false
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case float64:
		x = v
	case float32:
		x = float64(v)
	case int:
		x = float64(v)
	case int8:
		x = float64(v)
	case int16:
		x = float64(v)
	case int32:
		x = float64(v)
	case int64:
		x = float64(v)
	case uint:
		x = float64(v)
	case uint8:
		x = float64(v)
	case uint16:
		x = float64(v)
	case uint32:
		x = float64(v)
	case uint64:
		x = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		x = f
	case string:
		s := numberReplacer.Replace(strings.TrimSpace(v))
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		x = f
	default:
		return 0, false
	}

	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, false
	}
	return x, true
}

// toFlag interprets booleans, numbers and the usual yes/no spellings.
func toFlag(raw any) (float64, bool) {
	if s, ok := raw.(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "1", "yes", "y", "on":
			return 1, true
		case "false", "0", "no", "n", "off":
			return 0, true
		}
	}

	x, ok := toNumber(raw)
	if !ok {
		return 0, false
	}
	if x != 0 {
		return 1, true
	}
	return 0, true
}

// canonicalLabel lowercases a label and folds separators to underscores.
func canonicalLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", "_", " ", "_", "/", "_").Replace(s)
	return s
}

var labelAliases = map[string]string{
	"preseed":    "pre_seed",
	"seriesa":    "series_a",
	"seriesb":    "series_b",
	"seriesc":    "series_c",
	"a":          "series_a",
	"b":          "series_b",
	"c":          "series_c",
	"ai":         "ai_ml",
	"ml":         "ai_ml",
	"aiml":       "ai_ml",
	"ai_and_ml":  "ai_ml",
	"health":     "healthtech",
	"bio":        "biotech",
	"e_commerce": "ecommerce",
	"ed_tech":    "edtech",
	"fin_tech":   "fintech",
	"deep_tech":  "deeptech",
	"tier1":      "tier_1",
	"tier2":      "tier_2",
	"tier3":      "tier_3",
	"idea":       "concept",
	"prototype":  "mvp",
}

// toLabel resolves a categorical value against the feature's declared list.
// Integer values are accepted as label encodings.
func toLabel(f Feature, raw any) (string, bool) {
	if s, ok := raw.(string); ok {
		label := canonicalLabel(s)
		if f.Encode(label) >= 0 {
			return label, true
		}
		if alias, ok := labelAliases[label]; ok && f.Encode(alias) >= 0 {
			return alias, true
		}
		return "", false
	}

	if _, isBool := raw.(bool); isBool {
		return "", false
	}
	x, ok := toNumber(raw)
	if !ok || x != math.Trunc(x) || x < 0 || int(x) >= len(f.Categories) {
		return "", false
	}
	return f.Categories[int(x)], true
}

// coerceNumeric applies kind-specific scaling, rounding and clamping.
func coerceNumeric(f Feature, raw any) (float64, bool) {
	if f.Kind == KindFlag {
		return toFlag(raw)
	}

	x, ok := toNumber(raw)
	if !ok {
		return 0, false
	}

	switch f.Kind {
	case KindPercent, KindSignedPercent:
		if fractionOfHundred(f, raw, x) {
			x *= 100
		}
	case KindRatio:
		if f.Max == 1 && x > 1 && x <= 100 {
			x /= 100
		}
	case KindScore:
		x = math.Round(x)
	}

	return clip(x, f.Min, f.Max), true
}

// fractionOfHundred reports whether x is a 0-1 fraction standing in for a
// percentage. Signed percents qualify only when bounded at 100, as margins
// are. A value written with an explicit % sign is already a percentage.
func fractionOfHundred(f Feature, raw any, x float64) bool {
	if s, ok := raw.(string); ok && strings.Contains(s, "%") {
		return false
	}
	if x == math.Trunc(x) {
		return false
	}
	switch f.Kind {
	case KindPercent:
		return x > 0 && x < 1
	case KindSignedPercent:
		return f.Max == 100 && math.Abs(x) < 1
	}
	return false
}

func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
