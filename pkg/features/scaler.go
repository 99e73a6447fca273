package features

import "fmt"

// Scaler rescales each synthetic feature to the [0,1] range observed
// during training. Values outside the training range clip at inference
// time instead of leaking out of the unit interval.
type Scaler struct {
	Min    []float64
	Scale  []float64
	fitted bool
}

// NewScaler returns an unfitted scaler.
func NewScaler() *Scaler { return &Scaler{} }

// Fit records per-dimension minima and ranges. A constant column gets
// scale 1 so Transform maps every training value of it to zero.
func (s *Scaler) Fit(samples [][]float64) error {
	if len(samples) == 0 {
		return fmt.Errorf("scaler fit: no samples")
	}

	dim := len(samples[0])
	s.Min = make([]float64, dim)
	max := make([]float64, dim)
	copy(s.Min, samples[0])
	copy(max, samples[0])
	for _, sample := range samples[1:] {
		if len(sample) != dim {
			return fmt.Errorf("scaler fit: sample width %d, expected %d", len(sample), dim)
		}
		for i, x := range sample {
			if x < s.Min[i] {
				s.Min[i] = x
			}
			if x > max[i] {
				max[i] = x
			}
		}
	}

	s.Scale = make([]float64, dim)
	for i := range s.Scale {
		s.Scale[i] = max[i] - s.Min[i]
		if s.Scale[i] == 0 {
			s.Scale[i] = 1
		}
	}
	s.fitted = true
	return nil
}

// Transform maps x into [0,1] per dimension, clipping out-of-range
// values.
func (s *Scaler) Transform(x []float64) ([]float64, error) {
	if !s.fitted {
		return nil, fmt.Errorf("scaler transform: not fitted")
	}
	if len(x) != len(s.Min) {
		return nil, fmt.Errorf("scaler transform: input width %d, expected %d", len(x), len(s.Min))
	}

	out := make([]float64, len(x))
	for i, val := range x {
		scaled := (val - s.Min[i]) / s.Scale[i]
		if scaled < 0 {
			scaled = 0
		}
		if scaled > 1 {
			scaled = 1
		}
		out[i] = scaled
	}
	return out, nil
}

// Fitted reports whether ranges have been learned.
func (s *Scaler) Fitted() bool { return s.fitted }
