package features

// Vector is a normalized StartupFeatureVector. It is built only by the
// Normalizer and is read-only afterwards; accessors return copies.
type Vector struct {
	values    [NumFeatures]float64
	labels    [NumFeatures]string
	defaulted []string
}

// Float returns the numeric value of a feature. Categories return their
// label encoding. Unknown names return 0.
func (v Vector) Float(name string) float64 {
	i, ok := schemaIndex[name]
	if !ok {
		return 0
	}
	return v.values[i]
}

// Bool reports whether a flag feature is set.
func (v Vector) Bool(name string) bool {
	return v.Float(name) >= 0.5
}

// Label returns the category label of a categorical feature.
func (v Vector) Label(name string) string {
	i, ok := schemaIndex[name]
	if !ok {
		return ""
	}
	return v.labels[i]
}

// Stage is the normalized funding stage.
func (v Vector) Stage() string { return v.Label(FundingStage) }

// Sector is the normalized sector.
func (v Vector) Sector() string { return v.Label(Sector) }

// Encoded returns the 45 values in canonical order with categories label-encoded.
func (v Vector) Encoded() []float64 {
	out := make([]float64, NumFeatures)
	copy(out, v.values[:])
	return out
}

// Map returns the vector as canonical name -> value. Flags are bools and
// categories are strings.
func (v Vector) Map() map[string]any {
	out := make(map[string]any, NumFeatures)
	for i, f := range schema {
		switch f.Kind {
		case KindFlag:
			out[f.Name] = v.values[i] >= 0.5
		case KindCategory:
			out[f.Name] = v.labels[i]
		default:
			out[f.Name] = v.values[i]
		}
	}
	return out
}

// Defaulted lists the features that were filled from defaults, in canonical order.
func (v Vector) Defaulted() []string {
	out := make([]string, len(v.defaulted))
	copy(out, v.defaulted)
	return out
}

// Completeness is the share of features supplied by the caller.
func (v Vector) Completeness() float64 {
	return 1 - float64(len(v.defaulted))/NumFeatures
}
