package verdict

import (
	"encoding/json"
	"math"
	"os"
)

// Default aggregation parameters.
const (
	DefaultWeightML   = 0.7
	DefaultWeightRule = 0.3
	DefaultThreshold  = 0.5
)

// Weights control the linear blend of classifier confidence and rule
// risk, and the decision threshold applied to the blend.
type Weights struct {
	ML        float64 `json:"w_ml"`
	Rules     float64 `json:"w_rules"`
	Threshold float64 `json:"threshold"`
}

// DefaultWeights returns the standard blend.
func DefaultWeights() Weights {
	return Weights{ML: DefaultWeightML, Rules: DefaultWeightRule, Threshold: DefaultThreshold}
}

// LoadWeights reads aggregation weights from a JSON object on disk.
// A missing, unreadable or malformed file silently falls back to
// defaults, as do individual absent keys.
func LoadWeights(path string) Weights {
	weights := DefaultWeights()

	data, err := os.ReadFile(path)
	if err != nil {
		return weights
	}
	var raw struct {
		ML        *float64 `json:"w_ml"`
		Rules     *float64 `json:"w_rules"`
		Threshold *float64 `json:"threshold"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return weights
	}
	if raw.ML != nil {
		weights.ML = *raw.ML
	}
	if raw.Rules != nil {
		weights.Rules = *raw.Rules
	}
	if raw.Threshold != nil {
		weights.Threshold = *raw.Threshold
	}
	return weights
}

// Normalised returns a copy whose blend weights sum to 1 whenever
// their sum is positive. Non-finite weights fall back to defaults
// outright.
func (w Weights) Normalised() Weights {
	if !isFinite(w.ML) || !isFinite(w.Rules) || !isFinite(w.Threshold) {
		return DefaultWeights()
	}
	sum := w.ML + w.Rules
	if sum > 0 && math.Abs(sum-1) > 1e-9 {
		w.ML /= sum
		w.Rules /= sum
	}
	return w
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
