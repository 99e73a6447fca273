package ml

import (
	"errors"
	"math"
)

// ErrModelNotLoaded is returned by classification calls made before a
// successful Load.
var ErrModelNotLoaded = errors.New("ml: model not loaded")

// Model types understood by the loader.
const (
	ModelTypeLinear = "linear"
	ModelTypeGBDT   = "gbdt"
)

// Class labels emitted in results.
const (
	LabelLegitimate = "legitimate"
	LabelPhishing   = "phishing"
)

// Result is the classifier output for one message.
type Result struct {
	Prediction          int     `json:"prediction"`
	PhishingProbability float64 `json:"phishing_probability"`
	Confidence          float64 `json:"confidence"`
	ClassLabel          string  `json:"class_label"`
	ModelType           string  `json:"model_type"`
}

// Classifier is the capability set every persisted model variant
// provides. Probability reports the phishing-class probability;
// margin-only variants derive it through a sigmoid.
type Classifier interface {
	Predict(vector []float32) (int, error)
	Probability(vector []float32) (float64, error)
}

// sigmoid is numerically stable for large magnitudes in either
// direction.
func sigmoid(x float64) float64 {
	if x >= 0 {
		z := math.Exp(-x)
		return 1 / (1 + z)
	}
	z := math.Exp(x)
	return z / (1 + z)
}

// phishingProbability maps the probability of the positive-slot class
// onto the phishing class. Training may have stored classes in either
// order; the phishing class is the one labelled 1.
func phishingProbability(classes []int, positiveSlotProbability float64) float64 {
	if len(classes) == 2 && classes[0] == 1 && classes[1] == 0 {
		return 1 - positiveSlotProbability
	}
	return positiveSlotProbability
}
