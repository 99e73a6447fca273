package features

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/avseitsevad/eml-phishing-analyzer/pkg/email"
	"github.com/avseitsevad/eml-phishing-analyzer/pkg/textutil"
	"github.com/avseitsevad/eml-phishing-analyzer/pkg/urlcheck"
)

// SyntheticFeatureCount is the fixed width of the hand-crafted block
// appended after the TF-IDF vector.
const SyntheticFeatureCount = 10

// SyntheticFeatureNames lists the hand-crafted features in vector
// order. The order is part of the model contract and must not change
// between training and inference.
var SyntheticFeatureNames = []string{
	"url_count",
	"attachment_count",
	"ip_count",
	"subject_length",
	"body_length",
	"has_url_shortener",
	"has_long_domain",
	"has_suspicious_tld",
	"has_ip_in_url",
	"urgency_keyword_count",
}

// urgencyKeywords are matched as whole words against the translated,
// lowercased message text.
var urgencyKeywords = []string{
	"urgent", "urgently", "immediately", "immediate", "asap",
	"verify", "confirm", "suspended", "blocked", "locked",
	"expires", "expired", "password", "security", "warning", "alert",
}

var urgencyPattern = regexp.MustCompile(`\b(?:` + strings.Join(urgencyKeywords, "|") + `)\b`)

// UrgencyScore counts whole-word urgency keyword occurrences in text.
// Repeated occurrences count each time.
func UrgencyScore(text string) int {
	return len(urgencyPattern.FindAllString(strings.ToLower(text), -1))
}

// Synthetic builds the ten hand-crafted features for one message.
// IPs are counted from URL hosts only, never from Received chains;
// the classifier was trained on that narrower count while the rule
// engine sees both.
func Synthetic(m *email.CanonicalEmail, flags urlcheck.Flags, translated string) []float64 {
	return []float64{
		float64(len(m.URLs)),
		float64(len(m.Attachments)),
		float64(ipHostCount(m.URLs)),
		float64(utf8.RuneCountInString(m.Subject)),
		float64(utf8.RuneCountInString(m.Body())),
		boolFeature(flags.HasURLShortener),
		boolFeature(flags.HasLongDomain),
		boolFeature(flags.HasSuspiciousTLD),
		boolFeature(flags.HasIPInURL),
		float64(UrgencyScore(translated)),
	}
}

func ipHostCount(urls []string) int {
	count := 0
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		if textutil.IsIPv4(u.Hostname()) {
			count++
		}
	}
	return count
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Extractor produces the combined feature vector consumed by the
// classifier: TF-IDF over the translated text followed by the scaled
// synthetic block.
type Extractor struct {
	Vectorizer *Vectorizer
	Scaler     *Scaler
}

// NewExtractor wires a vectorizer and scaler together. Nil arguments
// get fresh unfitted instances.
func NewExtractor(vectorizer *Vectorizer, scaler *Scaler) *Extractor {
	if vectorizer == nil {
		vectorizer = NewVectorizer()
	}
	if scaler == nil {
		scaler = NewScaler()
	}
	return &Extractor{Vectorizer: vectorizer, Scaler: scaler}
}

// Fit trains both stages: the vectorizer on the text corpus and the
// scaler on the matching synthetic feature rows.
func (e *Extractor) Fit(corpus []string, synthetic [][]float64) error {
	if err := e.Vectorizer.Fit(corpus); err != nil {
		return err
	}
	return e.Scaler.Fit(synthetic)
}

// Extract builds the full feature vector for one message. The
// translated text feeds both the TF-IDF vector and the urgency
// counter.
func (e *Extractor) Extract(m *email.CanonicalEmail, flags urlcheck.Flags, translated string) ([]float32, error) {
	tfidf, err := e.Vectorizer.Transform(translated)
	if err != nil {
		return nil, err
	}
	scaled, err := e.Scaler.Transform(Synthetic(m, flags, translated))
	if err != nil {
		return nil, err
	}
	return Combine(tfidf, scaled), nil
}

// Dim reports the combined vector width.
func (e *Extractor) Dim() int {
	return e.Vectorizer.Dim() + SyntheticFeatureCount
}

// Combine concatenates the text and synthetic blocks into the float32
// layout the model expects.
func Combine(tfidf, synthetic []float64) []float32 {
	out := make([]float32, 0, len(tfidf)+len(synthetic))
	for _, x := range tfidf {
		out = append(out, float32(x))
	}
	for _, x := range synthetic {
		out = append(out, float32(x))
	}
	return out
}
