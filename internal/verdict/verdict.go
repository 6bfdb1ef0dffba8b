// Package verdict maps a success probability onto a discrete investment
// verdict and strength.
package verdict

import (
	"fmt"

	apperrors "github.com/ZanzyTHEbar/flash/internal/errors"
)

// Verdict is a discrete investment recommendation.
type Verdict string

const (
	StrongPass      Verdict = "STRONG PASS"
	Pass            Verdict = "PASS"
	ConditionalPass Verdict = "CONDITIONAL PASS"
	Fail            Verdict = "FAIL"
	StrongFail      Verdict = "STRONG FAIL"
)

// Rank orders verdicts from most negative (0) to most positive (4). Unknown
// verdicts rank -1.
func (v Verdict) Rank() int {
	switch v {
	case StrongFail:
		return 0
	case Fail:
		return 1
	case ConditionalPass:
		return 2
	case Pass:
		return 3
	case StrongPass:
		return 4
	default:
		return -1
	}
}

// Strength is the conviction attached to a verdict.
type Strength string

const (
	StrengthLow    Strength = "low"
	StrengthMedium Strength = "medium"
	StrengthHigh   Strength = "high"
)

func (s Strength) lower() Strength {
	switch s {
	case StrengthHigh:
		return StrengthMedium
	default:
		return StrengthLow
	}
}

// RiskLevel summarizes downside exposure.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Threshold is a bin starting at Min (inclusive).
type Threshold struct {
	Min      float64  `yaml:"min" json:"min"`
	Verdict  Verdict  `yaml:"verdict" json:"verdict"`
	Strength Strength `yaml:"strength" json:"strength"`
}

// DefaultThresholds are the standard five bins, highest first.
func DefaultThresholds() []Threshold {
	return []Threshold{
		{Min: 0.70, Verdict: StrongPass, Strength: StrengthHigh},
		{Min: 0.60, Verdict: Pass, Strength: StrengthMedium},
		{Min: 0.50, Verdict: ConditionalPass, Strength: StrengthLow},
		{Min: 0.40, Verdict: Fail, Strength: StrengthMedium},
		{Min: 0.00, Verdict: StrongFail, Strength: StrengthHigh},
	}
}

// Config configures a Mapper.
type Config struct {
	Thresholds []Threshold
	// LowAgreement is the model agreement below which strength drops a notch.
	LowAgreement float64
	// RiskHighBelow and RiskLowAbove bound the medium risk band.
	RiskHighBelow float64
	RiskLowAbove  float64
}

// DefaultConfig returns the standard verdict configuration.
func DefaultConfig() Config {
	return Config{
		Thresholds:    DefaultThresholds(),
		LowAgreement:  0.5,
		RiskHighBelow: 0.40,
		RiskLowAbove:  0.65,
	}
}

// Mapper is a pure threshold function. Safe for concurrent use.
type Mapper struct {
	cfg Config
}

// NewMapper validates the bins: strictly decreasing minimums, the last bin
// starting at 0, and verdicts ordered so higher bins never rank lower.
func NewMapper(cfg Config) (*Mapper, error) {
	problems := map[string]string{}
	bins := cfg.Thresholds

	if len(bins) == 0 {
		problems["verdict.thresholds"] = "at least one threshold is required"
	}
	for i, b := range bins {
		key := fmt.Sprintf("verdict.thresholds[%d]", i)
		if b.Min < 0 || b.Min > 1 {
			problems[key] = fmt.Sprintf("min %.3f outside [0,1]", b.Min)
		}
		if b.Verdict.Rank() < 0 {
			problems[key+".verdict"] = fmt.Sprintf("unknown verdict %q", b.Verdict)
		}
		switch b.Strength {
		case StrengthLow, StrengthMedium, StrengthHigh:
		default:
			problems[key+".strength"] = fmt.Sprintf("unknown strength %q", b.Strength)
		}
		if i == 0 {
			continue
		}
		prev := bins[i-1]
		if b.Min >= prev.Min {
			problems[key] = "thresholds must be strictly decreasing"
		}
		if b.Verdict.Rank() > prev.Verdict.Rank() {
			problems[key+".verdict"] = "verdicts must not improve as probability falls"
		}
	}
	if len(bins) > 0 && bins[len(bins)-1].Min != 0 {
		problems["verdict.thresholds"] = "last threshold must start at 0"
	}
	if cfg.LowAgreement < 0 || cfg.LowAgreement > 1 {
		problems["verdict.low_agreement"] = "must be within [0,1]"
	}
	if cfg.RiskHighBelow > cfg.RiskLowAbove {
		problems["verdict.risk"] = "risk_high_below must not exceed risk_low_above"
	}

	if len(problems) > 0 {
		return nil, apperrors.NewConfigurationErrorWithMap(problems)
	}

	out := cfg
	out.Thresholds = append([]Threshold(nil), bins...)
	return &Mapper{cfg: out}, nil
}

// Default returns a mapper with the standard bins.
func Default() *Mapper {
	m, err := NewMapper(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return m
}

// Map returns the verdict and strength for p. Values outside [0,1] are
// clamped first.
func (m *Mapper) Map(p float64) (Verdict, Strength) {
	p = clamp(p)
	for _, b := range m.cfg.Thresholds {
		if p >= b.Min {
			return b.Verdict, b.Strength
		}
	}
	last := m.cfg.Thresholds[len(m.cfg.Thresholds)-1]
	return last.Verdict, last.Strength
}

// MapWithAgreement lowers strength one notch when the models disagree. The
// verdict itself is unchanged.
func (m *Mapper) MapWithAgreement(p, agreement float64) (Verdict, Strength) {
	v, s := m.Map(p)
	if agreement < m.cfg.LowAgreement {
		s = s.lower()
	}
	return v, s
}

// RiskLevel classifies p into a risk band.
func (m *Mapper) RiskLevel(p float64) RiskLevel {
	switch p = clamp(p); {
	case p < m.cfg.RiskHighBelow:
		return RiskHigh
	case p >= m.cfg.RiskLowAbove:
		return RiskLow
	default:
		return RiskMedium
	}
}

// Thresholds returns a copy of the configured bins.
func (m *Mapper) Thresholds() []Threshold {
	return append([]Threshold(nil), m.cfg.Thresholds...)
}

func clamp(p float64) float64 {
	if p != p || p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
