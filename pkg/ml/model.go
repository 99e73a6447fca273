package ml

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// ModelSchemaVersion guards persisted models against silent drift
// between the training pipeline and this module.
const ModelSchemaVersion = 1

// modelFile is the on-disk JSON layout of a trained classifier.
type modelFile struct {
	SchemaVersion int         `json:"schema_version"`
	ModelType     string      `json:"model_type"`
	Classes       []int       `json:"classes"`
	NFeatures     int         `json:"n_features"`
	Linear        *linearSpec `json:"linear,omitempty"`
	GBDT          *gbdtSpec   `json:"gbdt,omitempty"`
}

type linearSpec struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

type gbdtSpec struct {
	BaseScore float64 `json:"base_score"`
	Trees     []tree  `json:"trees"`
}

// Info describes a loaded model.
type Info struct {
	ModelType string `json:"model_type"`
	NFeatures int    `json:"n_features"`
	Loaded    bool   `json:"loaded"`
}

// Model is the inference handle the pipeline holds. It is read-only
// after Load, so concurrent Classify calls need no locking.
type Model struct {
	classifier Classifier
	modelType  string
	nFeatures  int
	log        logrus.FieldLogger
}

// NewModel returns an unloaded model handle; a nil logger discards
// output.
func NewModel(log logrus.FieldLogger) *Model {
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	return &Model{log: log}
}

// Load reads a persisted classifier from path, validating the schema
// version, the declared variant and the feature width.
func (m *Model) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read model: %w", err)
	}
	var file modelFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse model: %w", err)
	}
	if file.SchemaVersion != ModelSchemaVersion {
		return fmt.Errorf("model schema version %d, expected %d", file.SchemaVersion, ModelSchemaVersion)
	}

	classes := file.Classes
	if len(classes) == 0 {
		classes = []int{0, 1}
	}
	if len(classes) != 2 {
		return fmt.Errorf("model declares %d classes, expected binary", len(classes))
	}

	switch file.ModelType {
	case ModelTypeLinear:
		if file.Linear == nil || len(file.Linear.Weights) == 0 {
			return fmt.Errorf("linear model without weights")
		}
		if file.NFeatures != 0 && file.NFeatures != len(file.Linear.Weights) {
			return fmt.Errorf("linear model declares %d features but carries %d weights", file.NFeatures, len(file.Linear.Weights))
		}
		m.classifier = &LinearModel{
			weights: file.Linear.Weights,
			bias:    file.Linear.Bias,
			classes: classes,
		}
		m.nFeatures = len(file.Linear.Weights)
	case ModelTypeGBDT:
		if file.GBDT == nil || len(file.GBDT.Trees) == 0 {
			return fmt.Errorf("gbdt model without trees")
		}
		if file.NFeatures <= 0 {
			return fmt.Errorf("gbdt model must declare n_features")
		}
		for ti, t := range file.GBDT.Trees {
			if len(t.Nodes) == 0 {
				return fmt.Errorf("gbdt tree %d has no nodes", ti)
			}
		}
		m.classifier = &GBDTModel{
			trees:     file.GBDT.Trees,
			baseScore: file.GBDT.BaseScore,
			nFeatures: file.NFeatures,
			classes:   classes,
		}
		m.nFeatures = file.NFeatures
	default:
		return fmt.Errorf("unknown model type %q", file.ModelType)
	}

	m.modelType = file.ModelType
	m.log.WithFields(logrus.Fields{
		"path":       path,
		"model_type": m.modelType,
		"n_features": m.nFeatures,
	}).Info("Model loaded")
	return nil
}

// Loaded reports whether Load has succeeded.
func (m *Model) Loaded() bool { return m.classifier != nil }

// Info describes the loaded model, or an all-zero Info before Load.
func (m *Model) Info() Info {
	return Info{ModelType: m.modelType, NFeatures: m.nFeatures, Loaded: m.Loaded()}
}

// Classify scores one feature vector.
func (m *Model) Classify(vector []float32) (Result, error) {
	if m.classifier == nil {
		return Result{}, ErrModelNotLoaded
	}

	prediction, err := m.classifier.Predict(vector)
	if err != nil {
		return Result{}, fmt.Errorf("predict: %w", err)
	}
	probability, err := m.classifier.Probability(vector)
	if err != nil {
		return Result{}, fmt.Errorf("probability: %w", err)
	}

	confidence := probability
	label := LabelPhishing
	if prediction == 0 {
		confidence = 1 - probability
		label = LabelLegitimate
	}
	return Result{
		Prediction:          prediction,
		PhishingProbability: probability,
		Confidence:          confidence,
		ClassLabel:          label,
		ModelType:           m.modelType,
	}, nil
}

// ClassifyMany scores a batch of vectors in order. The first failing
// vector aborts the batch.
func (m *Model) ClassifyMany(vectors [][]float32) ([]Result, error) {
	if m.classifier == nil {
		return nil, ErrModelNotLoaded
	}
	results := make([]Result, 0, len(vectors))
	for i, vector := range vectors {
		result, err := m.Classify(vector)
		if err != nil {
			return nil, fmt.Errorf("vector %d: %w", i, err)
		}
		results = append(results, result)
	}
	return results, nil
}
