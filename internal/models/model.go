package models

import (
	"fmt"
	"math"
	"strings"

	apperrors "github.com/ZanzyTHEbar/flash/internal/errors"
)

// Model pairs an adapter with a classifier and reorders the adapter's row
// into the classifier's training-time column order.
type Model struct {
	adapter    Adapter
	classifier Classifier
	order      []string
	// index[i] is the adapter column feeding classifier column i.
	index   []int
	kind    string
	version string
}

// NewModel binds an adapter to a classifier trained on featureOrder. Every
// training column must be producible by the adapter.
func NewModel(adapter Adapter, featureOrder []string, classifier Classifier) (*Model, error) {
	if adapter == nil || classifier == nil {
		return nil, apperrors.NewConfigurationError("model requires an adapter and a classifier", nil)
	}

	columns := adapter.Columns()
	if len(featureOrder) == 0 {
		featureOrder = columns
	}

	position := make(map[string]int, len(columns))
	for i, c := range columns {
		position[c] = i
	}

	index := make([]int, len(featureOrder))
	var missing []string
	for i, name := range featureOrder {
		p, ok := position[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		index[i] = p
	}
	if len(missing) > 0 {
		return nil, apperrors.NewConfigurationError(
			fmt.Sprintf("model %s: adapter cannot produce columns %s", adapter.ID(), strings.Join(missing, ", ")),
			nil,
		)
	}

	return &Model{
		adapter:    adapter,
		classifier: classifier,
		order:      append([]string(nil), featureOrder...),
		index:      index,
	}, nil
}

// NewModelFromArtifact builds a model from a decoded artifact.
func NewModelFromArtifact(adapter Adapter, artifact *Artifact) (*Model, error) {
	classifier, err := artifact.Classifier()
	if err != nil {
		return nil, apperrors.NewModelError(artifact.ID, err)
	}

	m, err := NewModel(adapter, artifact.FeatureOrder, classifier)
	if err != nil {
		return nil, err
	}
	m.kind = artifact.Kind
	m.version = artifact.Version
	return m, nil
}

// ID is the model identifier.
func (m *Model) ID() string { return m.adapter.ID() }

// Dependencies lists the models this one consumes.
func (m *Model) Dependencies() []string { return m.adapter.Dependencies() }

// FeatureOrder is the training-time column order.
func (m *Model) FeatureOrder() []string { return append([]string(nil), m.order...) }

// Predict scores one input. Panics and invalid outputs become errors; valid
// outputs are clipped into [0,1].
func (m *Model) Predict(in Input) (p float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = 0, fmt.Errorf("model %s panicked: %v", m.ID(), r)
		}
	}()

	row := m.adapter.Row(in)
	if want := len(m.adapter.Columns()); len(row) != want {
		return 0, fmt.Errorf("model %s: adapter produced %d values, want %d", m.ID(), len(row), want)
	}

	ordered := make([]float64, len(m.index))
	for i, src := range m.index {
		ordered[i] = row[src]
	}

	p, err = m.classifier.PredictProba(ordered)
	if err != nil {
		return 0, fmt.Errorf("model %s: %w", m.ID(), err)
	}
	if math.IsNaN(p) {
		return 0, fmt.Errorf("model %s returned NaN", m.ID())
	}
	return math.Max(0, math.Min(1, p)), nil
}

// Info describes a registered model.
type Info struct {
	ID           string   `json:"id"`
	Kind         string   `json:"kind,omitempty"`
	Version      string   `json:"version,omitempty"`
	Columns      int      `json:"columns"`
	FeatureOrder []string `json:"feature_order"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// Info returns a description of the model.
func (m *Model) Info() Info {
	return Info{
		ID:           m.ID(),
		Kind:         m.kind,
		Version:      m.version,
		Columns:      len(m.order),
		FeatureOrder: m.FeatureOrder(),
		Dependencies: m.Dependencies(),
	}
}
