package features

import (
	"log/slog"
)

// Normalizer turns an arbitrary raw input map into a complete Vector.
type Normalizer struct {
	logger *slog.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithLogger sets the logger used for coercion warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Normalizer) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// NewNormalizer creates a normalizer.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{logger: slog.Default()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize never fails. Unknown keys are dropped, known keys are coerced
// and clamped, and anything missing or unusable falls back to the
// stage -> sector -> type defaults.
func (n *Normalizer) Normalize(raw map[string]any) Vector {
	var v Vector

	stage, stageOK := n.resolveLabel(FundingStage, raw)
	sector, sectorOK := n.resolveLabel(Sector, raw)
	defaults := Defaults(stage, sector)

	for i, f := range schema {
		switch f.Name {
		case FundingStage:
			v.labels[i], v.values[i] = stage, float64(f.Encode(stage))
			if !stageOK {
				v.defaulted = append(v.defaulted, f.Name)
			}
			continue
		case Sector:
			v.labels[i], v.values[i] = sector, float64(f.Encode(sector))
			if !sectorOK {
				v.defaulted = append(v.defaulted, f.Name)
			}
			continue
		}

		value, present := raw[f.Name]

		if f.Kind == KindCategory {
			label, ok := "", false
			if present {
				label, ok = toLabel(f, value)
				if !ok && value != nil {
					n.warn(f, value)
				}
			}
			if !ok {
				label, _ = defaults[f.Name].(string)
				if f.Encode(label) < 0 {
					label = f.Fallback
				}
				v.defaulted = append(v.defaulted, f.Name)
			}
			v.labels[i], v.values[i] = label, float64(f.Encode(label))
			continue
		}

		x, ok := 0.0, false
		if present {
			x, ok = coerceNumeric(f, value)
			if !ok && value != nil {
				n.warn(f, value)
			}
		}
		if !ok {
			x, _ = defaults[f.Name].(float64)
			x = clip(x, f.Min, f.Max)
			v.defaulted = append(v.defaulted, f.Name)
		}
		v.values[i] = x
	}

	return v
}

// resolveLabel normalizes one of the two categorical keys that drive defaults.
func (n *Normalizer) resolveLabel(name string, raw map[string]any) (string, bool) {
	f, _ := Lookup(name)
	value, present := raw[name]
	if !present || value == nil {
		return f.Fallback, false
	}
	label, ok := toLabel(f, value)
	if !ok {
		n.warn(f, value)
		return f.Fallback, false
	}
	return label, true
}

func (n *Normalizer) warn(f Feature, value any) {
	n.logger.Warn("feature coercion failed, using default",
		"feature", f.Name,
		"kind", f.Kind.String(),
		"value", value,
	)
}
