package features

import (
	"math"
	"reflect"
	"testing"
)

// testCorpus gives every surviving term a document frequency of
// exactly 3 out of 10 (the min_df floor and just inside the max_df
// ceiling), while "invoice"/"attached" land in 4 documents (pruned by
// max_df) and "budget" in 1 (pruned by min_df).
func testCorpus() []string {
	return []string{
		"wire transfer request",
		"wire transfer request",
		"wire transfer request",
		"invoice attached",
		"invoice attached",
		"invoice attached",
		"invoice attached",
		"meeting agenda budget",
		"meeting agenda",
		"meeting agenda",
	}
}

func TestFitPrunesByDocumentFrequency(t *testing.T) {
	v := NewVectorizer()
	if err := v.Fit(testCorpus()); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	if v.Dim() != 8 {
		t.Errorf("Dim() = %d, expected 8, vocabulary %v", v.Dim(), v.Vocabulary)
	}
	for _, term := range []string{"wire", "transfer", "request", "wire transfer", "transfer request", "meeting", "agenda", "meeting agenda"} {
		if _, ok := v.Vocabulary[term]; !ok {
			t.Errorf("expected term %q in vocabulary", term)
		}
	}
	if _, ok := v.Vocabulary["invoice"]; ok {
		t.Error("term above max_df share should be pruned, found invoice")
	}
	if _, ok := v.Vocabulary["budget"]; ok {
		t.Error("term below min_df should be pruned, found budget")
	}
}

func TestFitVocabularyAlphabetical(t *testing.T) {
	v := NewVectorizer()
	if err := v.Fit(testCorpus()); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	want := map[string]int{
		"agenda":           0,
		"meeting":          1,
		"meeting agenda":   2,
		"request":          3,
		"transfer":         4,
		"transfer request": 5,
		"wire":             6,
		"wire transfer":    7,
	}
	if !reflect.DeepEqual(v.Vocabulary, want) {
		t.Errorf("Vocabulary = %v, expected %v", v.Vocabulary, want)
	}
}

func TestFitSmoothIDF(t *testing.T) {
	v := NewVectorizer()
	if err := v.Fit(testCorpus()); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	// Every surviving term has df=3 in a 10-document corpus.
	want := math.Log(11.0/4.0) + 1
	got := v.IDF[v.Vocabulary["wire"]]
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("IDF(wire) = %v, expected %v", got, want)
	}
}

func TestFitEmptyCorpus(t *testing.T) {
	if err := NewVectorizer().Fit(nil); err == nil {
		t.Error("Fit(nil) expected an error")
	}
}

func TestTransformSublinearTFAndL2Norm(t *testing.T) {
	v := NewVectorizer()
	if err := v.Fit(testCorpus()); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	vec, err := v.Transform("wire wire wire transfer")
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}

	var norm float64
	for _, x := range vec {
		norm += x * x
	}
	if math.Abs(norm-1) > 1e-9 {
		t.Errorf("squared L2 norm = %v, expected 1", norm)
	}

	wire := vec[v.Vocabulary["wire"]]
	transfer := vec[v.Vocabulary["transfer"]]
	if wire <= transfer {
		t.Errorf("repeated term weight %v should exceed single term weight %v", wire, transfer)
	}
	// Identical IDFs, so the ratio is the sublinear 1+ln(3), not 3.
	ratio := wire / transfer
	want := 1 + math.Log(3)
	if math.Abs(ratio-want) > 1e-9 {
		t.Errorf("weight ratio = %v, expected sublinear %v", ratio, want)
	}
}

func TestTransformUnknownTermsAllZero(t *testing.T) {
	v := NewVectorizer()
	if err := v.Fit(testCorpus()); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	vec, err := v.Transform("qqq zzz frobnicate")
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	for i, x := range vec {
		if x != 0 {
			t.Errorf("vec[%d] = %v, expected 0 for out-of-vocabulary text", i, x)
		}
	}
}

func TestTransformUnfitted(t *testing.T) {
	if _, err := NewVectorizer().Transform("anything"); err == nil {
		t.Error("Transform on unfitted vectorizer expected an error")
	}
}

func TestFitMaxFeaturesKeepsMostFrequent(t *testing.T) {
	v := NewVectorizer()
	v.MinDF = 1
	v.MaxDF = 1.0
	v.MaxFeatures = 2

	if err := v.Fit([]string{"alpha", "alpha", "alpha", "beta", "beta", "gamma"}); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if v.Dim() != 2 {
		t.Fatalf("Dim() = %d, expected 2", v.Dim())
	}
	if _, ok := v.Vocabulary["alpha"]; !ok {
		t.Error("expected alpha in vocabulary")
	}
	if _, ok := v.Vocabulary["beta"]; !ok {
		t.Error("expected beta in vocabulary")
	}
	if _, ok := v.Vocabulary["gamma"]; ok {
		t.Error("gamma should lose the frequency cut")
	}
}

func TestFitMaxFeaturesTieBreaksAlphabetically(t *testing.T) {
	v := NewVectorizer()
	v.MinDF = 1
	v.MaxDF = 1.0
	v.MaxFeatures = 2

	if err := v.Fit([]string{"alpha", "alpha", "delta", "gamma"}); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if _, ok := v.Vocabulary["delta"]; !ok {
		t.Error("expected delta to win the alphabetical tie-break")
	}
	if _, ok := v.Vocabulary["gamma"]; ok {
		t.Error("gamma should lose the alphabetical tie-break")
	}
}

func TestTransformDeterministic(t *testing.T) {
	v := NewVectorizer()
	if err := v.Fit(testCorpus()); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	first, err := v.Transform("wire transfer request meeting agenda")
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	second, err := v.Transform("wire transfer request meeting agenda")
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Transform is not deterministic: %v vs %v", first, second)
	}
}
