package features

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ArtifactSchemaVersion guards fitted artefacts against silent drift
// between the training pipeline and this module.
const ArtifactSchemaVersion = 1

// Artifact is the serialised form of a fitted vectorizer and scaler.
type Artifact struct {
	SchemaVersion    int            `json:"schema_version"`
	Vocabulary       map[string]int `json:"vocabulary"`
	IDF              []float64      `json:"idf"`
	NGram            [2]int         `json:"ngram"`
	MinDF            int            `json:"min_df"`
	MaxDF            float64        `json:"max_df"`
	MaxFeatures      int            `json:"max_features"`
	VectorizerFitted bool           `json:"vectorizer_fitted"`
	ScalerMin        []float64      `json:"scaler_min"`
	ScalerScale      []float64      `json:"scaler_scale"`
	ScalerFitted     bool           `json:"scaler_fitted"`
}

// SaveArtifact writes the fitted state of an extractor to path,
// creating parent directories as needed.
func SaveArtifact(path string, e *Extractor) error {
	artifact := Artifact{
		SchemaVersion:    ArtifactSchemaVersion,
		Vocabulary:       e.Vectorizer.Vocabulary,
		IDF:              e.Vectorizer.IDF,
		NGram:            [2]int{1, 2},
		MinDF:            e.Vectorizer.MinDF,
		MaxDF:            e.Vectorizer.MaxDF,
		MaxFeatures:      e.Vectorizer.MaxFeatures,
		VectorizerFitted: e.Vectorizer.Fitted(),
		ScalerMin:        e.Scaler.Min,
		ScalerScale:      e.Scaler.Scale,
		ScalerFitted:     e.Scaler.Fitted(),
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create artifact directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create artifact file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(artifact); err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	return nil
}

// LoadArtifact restores a fitted extractor from path. Artefacts with a
// different schema version, mismatched vocabulary and IDF widths or a
// synthetic block of the wrong width are rejected rather than silently
// misused.
func LoadArtifact(path string) (*Extractor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("parse artifact: %w", err)
	}
	if artifact.SchemaVersion != ArtifactSchemaVersion {
		return nil, fmt.Errorf("artifact schema version %d, expected %d", artifact.SchemaVersion, ArtifactSchemaVersion)
	}
	if len(artifact.IDF) != len(artifact.Vocabulary) {
		return nil, fmt.Errorf("artifact idf width %d does not match vocabulary size %d", len(artifact.IDF), len(artifact.Vocabulary))
	}
	if len(artifact.ScalerMin) != len(artifact.ScalerScale) {
		return nil, fmt.Errorf("artifact scaler min width %d does not match scale width %d", len(artifact.ScalerMin), len(artifact.ScalerScale))
	}
	if artifact.ScalerFitted && len(artifact.ScalerMin) != SyntheticFeatureCount {
		return nil, fmt.Errorf("artifact scaler width %d, expected %d", len(artifact.ScalerMin), SyntheticFeatureCount)
	}

	vocabulary := artifact.Vocabulary
	if vocabulary == nil {
		vocabulary = make(map[string]int)
	}
	vectorizer := &Vectorizer{
		Vocabulary:  vocabulary,
		IDF:         artifact.IDF,
		MaxFeatures: artifact.MaxFeatures,
		MinDF:       artifact.MinDF,
		MaxDF:       artifact.MaxDF,
		fitted:      artifact.VectorizerFitted,
	}
	scaler := &Scaler{
		Min:    artifact.ScalerMin,
		Scale:  artifact.ScalerScale,
		fitted: artifact.ScalerFitted,
	}
	return NewExtractor(vectorizer, scaler), nil
}
