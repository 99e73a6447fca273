package features

import (
	"fmt"
	"math"
	"sort"
)

// Vectorizer defaults, matching the artefacts the classifier ships
// with.
const (
	DefaultMaxFeatures = 3000
	DefaultMinDF       = 3
	DefaultMaxDF       = 0.3
)

// Vectorizer maps text onto TF-IDF vectors over a vocabulary of
// unigrams and adjacent bigrams learned from a training corpus.
type Vectorizer struct {
	Vocabulary  map[string]int
	IDF         []float64
	MaxFeatures int
	MinDF       int
	MaxDF       float64
	fitted      bool
}

// NewVectorizer returns an unfitted vectorizer with default pruning
// parameters.
func NewVectorizer() *Vectorizer {
	return &Vectorizer{
		Vocabulary:  make(map[string]int),
		MaxFeatures: DefaultMaxFeatures,
		MinDF:       DefaultMinDF,
		MaxDF:       DefaultMaxDF,
	}
}

// Fit learns the vocabulary and IDF weights from a document corpus.
// Terms must appear in at least MinDF documents and in at most a MaxDF
// share of them. When more terms survive than MaxFeatures, the most
// frequent across the corpus win, ties breaking alphabetically. The
// final vocabulary is index-ordered alphabetically so fitting the same
// corpus always yields the same columns.
func (v *Vectorizer) Fit(corpus []string) error {
	if len(corpus) == 0 {
		return fmt.Errorf("vectorizer fit: empty corpus")
	}

	docFreq := make(map[string]int)
	termFreq := make(map[string]int)
	for _, doc := range corpus {
		terms := ngrams(Tokenize(doc))
		seen := make(map[string]bool, len(terms))
		for _, term := range terms {
			termFreq[term]++
			if !seen[term] {
				seen[term] = true
				docFreq[term]++
			}
		}
	}

	n := len(corpus)
	maxDocs := v.MaxDF * float64(n)
	candidates := make([]string, 0, len(docFreq))
	for term, df := range docFreq {
		if df < v.MinDF || float64(df) > maxDocs {
			continue
		}
		candidates = append(candidates, term)
	}

	sort.Slice(candidates, func(i, j int) bool {
		fi, fj := termFreq[candidates[i]], termFreq[candidates[j]]
		if fi != fj {
			return fi > fj
		}
		return candidates[i] < candidates[j]
	})
	if len(candidates) > v.MaxFeatures {
		candidates = candidates[:v.MaxFeatures]
	}
	sort.Strings(candidates)

	v.Vocabulary = make(map[string]int, len(candidates))
	v.IDF = make([]float64, len(candidates))
	for i, term := range candidates {
		v.Vocabulary[term] = i
		v.IDF[i] = math.Log(float64(1+n)/float64(1+docFreq[term])) + 1
	}
	v.fitted = true
	return nil
}

// Transform produces the TF-IDF vector for one document. Term
// frequency is sublinear (1+ln tf), IDF is the smoothed variant fixed
// at fit time and the result is L2 normalised.
func (v *Vectorizer) Transform(text string) ([]float64, error) {
	if !v.fitted {
		return nil, fmt.Errorf("vectorizer transform: not fitted")
	}

	counts := make(map[int]int)
	for _, term := range ngrams(Tokenize(text)) {
		if idx, ok := v.Vocabulary[term]; ok {
			counts[idx]++
		}
	}

	vec := make([]float64, len(v.IDF))
	var norm float64
	for idx, count := range counts {
		w := (1 + math.Log(float64(count))) * v.IDF[idx]
		vec[idx] = w
		norm += w * w
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for idx := range counts {
			vec[idx] /= norm
		}
	}
	return vec, nil
}

// Fitted reports whether the vocabulary has been learned.
func (v *Vectorizer) Fitted() bool { return v.fitted }

// Dim reports the vocabulary size, the width of Transform's output.
func (v *Vectorizer) Dim() int { return len(v.IDF) }

// ngrams expands a token stream into unigrams plus adjacent bigrams.
func ngrams(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}
	out := make([]string, 0, 2*len(tokens)-1)
	out = append(out, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		out = append(out, tokens[i]+" "+tokens[i+1])
	}
	return out
}
