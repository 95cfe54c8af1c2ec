package mlmodel

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

const (
	FormatLinear   = "linear"
	FormatEnsemble = "gbrt"
)

// FeatureNames is the column order the artifact was trained on. Numeric
// columns come first, the frequency-encoded crop last.
var FeatureNames = []string{
	"loan_farm_size",
	"past_yield_kgs",
	"past_yield_mk",
	"expected_yield_kgs",
	"expected_yield_mk",
	"loan_crop",
}

const numericFeatures = 5

// Artifact is the decoded, immutable regression pipeline.
type Artifact struct {
	Format          string             `json:"format"`
	Features        []string           `json:"features"`
	CropFrequencies map[string]float64 `json:"crop_frequencies"`
	Scaler          Scaler             `json:"scaler"`
	Linear          *LinearHead        `json:"linear,omitempty"`
	Ensemble        *TreeEnsemble      `json:"ensemble,omitempty"`
}

// Scaler standardises the numeric columns: (x - mean) / scale.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

type LinearHead struct {
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
}

type TreeEnsemble struct {
	Init         float64 `json:"init"`
	LearningRate float64 `json:"learning_rate"`
	Trees        []Tree  `json:"trees"`
}

type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Node is a leaf when Left is -1.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

func (n Node) leaf() bool { return n.Left < 0 }

// DecodeArtifact parses and validates raw artifact bytes.
func DecodeArtifact(b []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, errors.Wrap(err, "decode artifact")
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	crops := make(map[string]float64, len(a.CropFrequencies))
	for k, v := range a.CropFrequencies {
		crops[strings.ToLower(k)] = v
	}
	a.CropFrequencies = crops
	return &a, nil
}

func (a *Artifact) validate() error {
	width := len(FeatureNames)
	if len(a.Features) != 0 && strings.Join(a.Features, ",") != strings.Join(FeatureNames, ",") {
		return fmt.Errorf("artifact features %v do not match %v", a.Features, FeatureNames)
	}
	if len(a.Scaler.Mean) != numericFeatures || len(a.Scaler.Scale) != numericFeatures {
		return fmt.Errorf("scaler needs %d means and scales", numericFeatures)
	}
	for i, s := range a.Scaler.Scale {
		if s == 0 {
			return fmt.Errorf("scaler scale[%d] is zero", i)
		}
	}
	switch a.Format {
	case FormatLinear:
		if a.Linear == nil || len(a.Linear.Coefficients) != width {
			return fmt.Errorf("linear head needs %d coefficients", width)
		}
	case FormatEnsemble:
		if a.Ensemble == nil || len(a.Ensemble.Trees) == 0 {
			return errors.New("ensemble has no trees")
		}
		for ti, t := range a.Ensemble.Trees {
			if len(t.Nodes) == 0 {
				return fmt.Errorf("tree %d has no nodes", ti)
			}
			for ni, n := range t.Nodes {
				if n.leaf() {
					continue
				}
				if n.Feature < 0 || n.Feature >= width {
					return fmt.Errorf("tree %d node %d: feature %d out of range", ti, ni, n.Feature)
				}
				if n.Left >= len(t.Nodes) || n.Right < 0 || n.Right >= len(t.Nodes) {
					return fmt.Errorf("tree %d node %d: child out of range", ti, ni)
				}
			}
		}
	default:
		return fmt.Errorf("unknown artifact format %q", a.Format)
	}
	return nil
}

// vector encodes f in FeatureNames order. Unknown crops encode to 0.
func (a *Artifact) vector(f Features) []float64 {
	raw := [numericFeatures]float64{f.FarmSize, f.PastYieldKg, f.PastRevenue, f.ExpectedYieldKg, f.ExpectedRevenue}
	x := make([]float64, 0, len(FeatureNames))
	for i, v := range raw {
		x = append(x, (v-a.Scaler.Mean[i])/a.Scaler.Scale[i])
	}
	return append(x, a.CropFrequencies[strings.ToLower(f.Crop)])
}

// Predict returns the raw regression output, which may be negative.
func (a *Artifact) Predict(f Features) (float64, error) {
	x := a.vector(f)
	switch a.Format {
	case FormatLinear:
		y := a.Linear.Intercept
		for i, c := range a.Linear.Coefficients {
			y += c * x[i]
		}
		return y, nil
	case FormatEnsemble:
		y := a.Ensemble.Init
		for ti := range a.Ensemble.Trees {
			v, err := a.Ensemble.Trees[ti].eval(x)
			if err != nil {
				return 0, errors.Wrapf(err, "tree %d", ti)
			}
			y += a.Ensemble.LearningRate * v
		}
		return y, nil
	}
	return 0, fmt.Errorf("unknown artifact format %q", a.Format)
}

func (t *Tree) eval(x []float64) (float64, error) {
	i := 0
	// a well-formed tree reaches a leaf in fewer steps than it has nodes
	for steps := 0; steps <= len(t.Nodes); steps++ {
		n := t.Nodes[i]
		if n.leaf() {
			return n.Value, nil
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return 0, errors.New("cycle detected")
}
