package ml

import "fmt"

// treeNode is one node of a regression tree stored as a flat array.
// Internal nodes route on vector[Feature] <= Threshold; leaves carry
// an additive margin contribution.
type treeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Leaf      bool    `json:"leaf"`
	Value     float64 `json:"value"`
}

type tree struct {
	Nodes []treeNode `json:"nodes"`
}

// GBDTModel sums the leaf values of an ensemble of regression trees
// on top of a base score; the summed margin passes through a sigmoid.
type GBDTModel struct {
	trees     []tree
	baseScore float64
	nFeatures int
	classes   []int
}

var _ Classifier = (*GBDTModel)(nil)

func (m *GBDTModel) margin(vector []float32) (float64, error) {
	if len(vector) != m.nFeatures {
		return 0, fmt.Errorf("gbdt model expects %d features, got %d", m.nFeatures, len(vector))
	}
	s := m.baseScore
	for ti := range m.trees {
		leaf, err := m.trees[ti].walk(vector)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", ti, err)
		}
		s += leaf
	}
	return s, nil
}

func (t *tree) walk(vector []float32) (float64, error) {
	idx := 0
	for steps := 0; steps <= len(t.Nodes); steps++ {
		if idx < 0 || idx >= len(t.Nodes) {
			return 0, fmt.Errorf("node index %d out of range", idx)
		}
		node := t.Nodes[idx]
		if node.Leaf {
			return node.Value, nil
		}
		if node.Feature < 0 || node.Feature >= len(vector) {
			return 0, fmt.Errorf("split feature %d out of range", node.Feature)
		}
		if float64(vector[node.Feature]) <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
	return 0, fmt.Errorf("no leaf reached after %d steps", len(t.Nodes))
}

// Probability reports the phishing-class probability for one vector.
func (m *GBDTModel) Probability(vector []float32) (float64, error) {
	margin, err := m.margin(vector)
	if err != nil {
		return 0, err
	}
	return phishingProbability(m.classes, sigmoid(margin)), nil
}

// Predict reports the decided class, consistent with Probability at
// the 0.5 boundary.
func (m *GBDTModel) Predict(vector []float32) (int, error) {
	p, err := m.Probability(vector)
	if err != nil {
		return 0, err
	}
	if p >= 0.5 {
		return 1, nil
	}
	return 0, nil
}
