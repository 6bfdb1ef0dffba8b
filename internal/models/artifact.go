package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// Artifact kinds.
const (
	KindLogistic         = "logistic"
	KindGradientBoosting = "gradient_boosting"
	KindRandomForest     = "random_forest"
)

// Classifier scores one row already in training-time column order.
type Classifier interface {
	PredictProba(row []float64) (float64, error)
}

// ClassifierFunc adapts a plain function to Classifier.
type ClassifierFunc func(row []float64) (float64, error)

func (f ClassifierFunc) PredictProba(row []float64) (float64, error) { return f(row) }

// Artifact is a trained model as exported by the training pipeline.
type Artifact struct {
	ID           string   `yaml:"id" json:"id"`
	Kind         string   `yaml:"kind" json:"kind"`
	Version      string   `yaml:"version,omitempty" json:"version,omitempty"`
	FeatureOrder []string `yaml:"feature_order" json:"feature_order"`

	Logistic         *LogisticParams `yaml:"logistic,omitempty" json:"logistic,omitempty"`
	GradientBoosting *BoostingParams `yaml:"gradient_boosting,omitempty" json:"gradient_boosting,omitempty"`
	RandomForest     *ForestParams   `yaml:"random_forest,omitempty" json:"random_forest,omitempty"`
}

// LogisticParams are the coefficients of a (optionally standardized)
// logistic regression.
type LogisticParams struct {
	Coefficients []float64 `yaml:"coefficients" json:"coefficients"`
	Intercept    float64   `yaml:"intercept" json:"intercept"`
	Scaler       *Scaler   `yaml:"scaler,omitempty" json:"scaler,omitempty"`
}

// Scaler is a fitted standard scaler.
type Scaler struct {
	Mean  []float64 `yaml:"mean" json:"mean"`
	Scale []float64 `yaml:"scale" json:"scale"`
}

// Node is one node of a flattened binary tree. Feature < 0 marks a leaf.
type Node struct {
	Feature   int     `yaml:"feature" json:"feature"`
	Threshold float64 `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	Left      int     `yaml:"left,omitempty" json:"left,omitempty"`
	Right     int     `yaml:"right,omitempty" json:"right,omitempty"`
	Value     float64 `yaml:"value,omitempty" json:"value,omitempty"`
}

// Tree is a flattened binary tree rooted at node 0.
type Tree struct {
	Nodes []Node `yaml:"nodes" json:"nodes"`
}

// BoostingParams describe a gradient boosted ensemble with a logistic link.
type BoostingParams struct {
	BaseScore    float64 `yaml:"base_score" json:"base_score"`
	LearningRate float64 `yaml:"learning_rate" json:"learning_rate"`
	Trees        []Tree  `yaml:"trees" json:"trees"`
}

// ForestParams describe a random forest whose leaves hold probabilities.
type ForestParams struct {
	Trees []Tree `yaml:"trees" json:"trees"`
}

// DecodeArtifact parses a YAML (or JSON) artifact document.
func DecodeArtifact(data []byte) (*Artifact, error) {
	var a Artifact
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode model artifact: %w", err)
	}
	return &a, nil
}

// Classifier builds the scoring function described by the artifact.
func (a *Artifact) Classifier() (Classifier, error) {
	width := len(a.FeatureOrder)
	if width == 0 {
		return nil, fmt.Errorf("artifact %s: empty feature_order", a.ID)
	}

	switch a.Kind {
	case KindLogistic:
		if a.Logistic == nil {
			return nil, fmt.Errorf("artifact %s: missing logistic parameters", a.ID)
		}
		return newLogistic(*a.Logistic, width)
	case KindGradientBoosting:
		if a.GradientBoosting == nil {
			return nil, fmt.Errorf("artifact %s: missing gradient_boosting parameters", a.ID)
		}
		if err := validateTrees(a.GradientBoosting.Trees, width); err != nil {
			return nil, fmt.Errorf("artifact %s: %w", a.ID, err)
		}
		return &boosting{params: *a.GradientBoosting, width: width}, nil
	case KindRandomForest:
		if a.RandomForest == nil {
			return nil, fmt.Errorf("artifact %s: missing random_forest parameters", a.ID)
		}
		if err := validateTrees(a.RandomForest.Trees, width); err != nil {
			return nil, fmt.Errorf("artifact %s: %w", a.ID, err)
		}
		return &forest{params: *a.RandomForest, width: width}, nil
	default:
		return nil, fmt.Errorf("artifact %s: unknown kind %q", a.ID, a.Kind)
	}
}

type logistic struct {
	coef      *mat.VecDense
	intercept float64
	mean      *mat.VecDense
	scale     *mat.VecDense
}

func newLogistic(p LogisticParams, width int) (*logistic, error) {
	if len(p.Coefficients) != width {
		return nil, fmt.Errorf("logistic: %d coefficients for %d features", len(p.Coefficients), width)
	}

	l := &logistic{
		coef:      mat.NewVecDense(width, append([]float64(nil), p.Coefficients...)),
		intercept: p.Intercept,
	}

	if p.Scaler != nil {
		if len(p.Scaler.Mean) != width || len(p.Scaler.Scale) != width {
			return nil, fmt.Errorf("logistic: scaler width does not match %d features", width)
		}
		scale := make([]float64, width)
		for i, s := range p.Scaler.Scale {
			if s == 0 {
				s = 1
			}
			scale[i] = s
		}
		l.mean = mat.NewVecDense(width, append([]float64(nil), p.Scaler.Mean...))
		l.scale = mat.NewVecDense(width, scale)
	}

	return l, nil
}

func (l *logistic) PredictProba(row []float64) (float64, error) {
	if len(row) != l.coef.Len() {
		return 0, fmt.Errorf("logistic: row has %d values, want %d", len(row), l.coef.Len())
	}

	x := mat.NewVecDense(len(row), append([]float64(nil), row...))
	if l.mean != nil {
		x.SubVec(x, l.mean)
		x.DivElemVec(x, l.scale)
	}

	return sigmoid(mat.Dot(x, l.coef) + l.intercept), nil
}

type boosting struct {
	params BoostingParams
	width  int
}

func (b *boosting) PredictProba(row []float64) (float64, error) {
	if len(row) != b.width {
		return 0, fmt.Errorf("gradient_boosting: row has %d values, want %d", len(row), b.width)
	}

	margin := b.params.BaseScore
	for _, t := range b.params.Trees {
		margin += b.params.LearningRate * t.eval(row)
	}
	return sigmoid(margin), nil
}

type forest struct {
	params ForestParams
	width  int
}

func (f *forest) PredictProba(row []float64) (float64, error) {
	if len(row) != f.width {
		return 0, fmt.Errorf("random_forest: row has %d values, want %d", len(row), f.width)
	}
	if len(f.params.Trees) == 0 {
		return NeutralProbability, nil
	}

	sum := 0.0
	for _, t := range f.params.Trees {
		sum += t.eval(row)
	}
	return sum / float64(len(f.params.Trees)), nil
}

// eval walks the tree. validateTrees guarantees indices are in range and
// every path ends in a leaf.
func (t Tree) eval(row []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func validateTrees(trees []Tree, width int) error {
	for ti, t := range trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d has no nodes", ti)
		}
		for ni, n := range t.Nodes {
			if n.Feature < 0 {
				continue
			}
			if n.Feature >= width {
				return fmt.Errorf("tree %d node %d: feature %d out of range", ti, ni, n.Feature)
			}
			// Children must point forward so every walk terminates.
			if n.Left <= ni || n.Right <= ni || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
				return fmt.Errorf("tree %d node %d: invalid children %d/%d", ti, ni, n.Left, n.Right)
			}
		}
	}
	return nil
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }
