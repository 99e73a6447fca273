package ml

import "fmt"

// LinearModel scores with a weight vector and bias. The margin w·x+b
// passes through a sigmoid to produce a probability, matching how
// margin-only classifiers expose confidence.
type LinearModel struct {
	weights []float64
	bias    float64
	classes []int
}

var _ Classifier = (*LinearModel)(nil)

func (m *LinearModel) margin(vector []float32) (float64, error) {
	if len(vector) != len(m.weights) {
		return 0, fmt.Errorf("linear model expects %d features, got %d", len(m.weights), len(vector))
	}
	s := m.bias
	for i, w := range m.weights {
		s += w * float64(vector[i])
	}
	return s, nil
}

// Probability reports the phishing-class probability for one vector.
func (m *LinearModel) Probability(vector []float32) (float64, error) {
	margin, err := m.margin(vector)
	if err != nil {
		return 0, err
	}
	return phishingProbability(m.classes, sigmoid(margin)), nil
}

// Predict reports the decided class, consistent with Probability at
// the 0.5 boundary.
func (m *LinearModel) Predict(vector []float32) (int, error) {
	p, err := m.Probability(vector)
	if err != nil {
		return 0, err
	}
	if p >= 0.5 {
		return 1, nil
	}
	return 0, nil
}
