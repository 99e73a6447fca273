package features

import (
	"reflect"
	"testing"

	"github.com/avseitsevad/eml-phishing-analyzer/pkg/email"
	"github.com/avseitsevad/eml-phishing-analyzer/pkg/urlcheck"
)

func TestSyntheticOrderAndValues(t *testing.T) {
	m := &email.CanonicalEmail{
		Subject:   "Срочно!",
		BodyPlain: "hello world",
		URLs:      []string{"https://example.com/x", "http://203.0.113.5/login"},
		Attachments: []email.Attachment{
			{Name: "doc.pdf"},
		},
	}
	flags := urlcheck.Flags{
		HasURLShortener:  true,
		HasLongDomain:    true,
		HasSuspiciousTLD: true,
		HasIPInURL:       true,
	}
	translated := "Please verify your account immediately. Urgent!"

	got := Synthetic(m, flags, translated)
	want := []float64{2, 1, 1, 7, 11, 1, 1, 1, 1, 3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Synthetic() = %v, expected %v", got, want)
	}
	if len(got) != SyntheticFeatureCount {
		t.Errorf("Synthetic() width = %d, expected %d", len(got), SyntheticFeatureCount)
	}
	if len(SyntheticFeatureNames) != SyntheticFeatureCount {
		t.Errorf("SyntheticFeatureNames has %d entries, expected %d", len(SyntheticFeatureNames), SyntheticFeatureCount)
	}
}

func TestSyntheticCountsIPsFromURLHostsOnly(t *testing.T) {
	m := &email.CanonicalEmail{
		URLs: []string{"http://203.0.113.5/a", "http://203.0.113.5/b", "https://example.com/"},
		IPs:  []string{"203.0.113.5", "198.51.100.7", "192.0.2.9"},
	}

	got := Synthetic(m, urlcheck.Flags{}, "")
	// Two URLs carry an IP host; the Received-chain IPs never count.
	if got[2] != 2 {
		t.Errorf("ip_count = %v, expected 2", got[2])
	}
}

func TestSyntheticBodyFallsBackToHTML(t *testing.T) {
	m := &email.CanonicalEmail{BodyHTML: "<p>hi</p>"}

	got := Synthetic(m, urlcheck.Flags{}, "")
	if got[4] != 9 {
		t.Errorf("body_length = %v, expected 9 for HTML-only message", got[4])
	}
}

func TestUrgencyScore(t *testing.T) {
	tests := []struct {
		text     string
		expected int
	}{
		{"", 0},
		{"urgently", 1},
		{"urgentx", 0},
		{"URGENT urgent", 2},
		{"verify your password password", 3},
		{"no alarming words here", 0},
		{"account expires soon, confirm now", 2},
	}

	for _, test := range tests {
		if got := UrgencyScore(test.text); got != test.expected {
			t.Errorf("UrgencyScore(%q) = %d, expected %d", test.text, got, test.expected)
		}
	}
}

func TestExtractCombinedLayout(t *testing.T) {
	vectorizer := NewVectorizer()
	vectorizer.MinDF = 1
	vectorizer.MaxDF = 1.0

	e := NewExtractor(vectorizer, NewScaler())
	corpus := []string{
		"verify account password",
		"payment invoice due",
		"meeting notes attached",
	}
	rows := [][]float64{
		{0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		{10, 5, 3, 100, 2000, 1, 1, 1, 1, 8},
	}
	if err := e.Fit(corpus, rows); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	m := &email.CanonicalEmail{
		Subject:   "Notice",
		BodyPlain: "please verify",
		URLs:      []string{"https://example.com/"},
	}
	vec, err := e.Extract(m, urlcheck.Flags{}, "verify your password now")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if len(vec) != e.Dim() {
		t.Errorf("Extract() width = %d, expected Dim() = %d", len(vec), e.Dim())
	}
	if e.Dim() != e.Vectorizer.Dim()+SyntheticFeatureCount {
		t.Errorf("Dim() = %d, expected %d text + %d synthetic", e.Dim(), e.Vectorizer.Dim(), SyntheticFeatureCount)
	}
	for i := e.Vectorizer.Dim(); i < len(vec); i++ {
		if vec[i] < 0 || vec[i] > 1 {
			t.Errorf("scaled synthetic feature vec[%d] = %v, expected within [0,1]", i, vec[i])
		}
	}

	again, err := e.Extract(m, urlcheck.Flags{}, "verify your password now")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !reflect.DeepEqual(vec, again) {
		t.Errorf("Extract is not deterministic: %v vs %v", vec, again)
	}
}

func TestExtractUnfitted(t *testing.T) {
	e := NewExtractor(nil, nil)
	m := &email.CanonicalEmail{BodyPlain: "hello"}
	if _, err := e.Extract(m, urlcheck.Flags{}, "hello"); err == nil {
		t.Error("Extract with unfitted stages expected an error")
	}
}

func TestCombine(t *testing.T) {
	got := Combine([]float64{0.5, 0.25}, []float64{1, 0})
	want := []float32{0.5, 0.25, 1, 0}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Combine() = %v, expected %v", got, want)
	}
}
