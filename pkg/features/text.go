package features

import (
	"regexp"
	"strings"

	"github.com/avseitsevad/eml-phishing-analyzer/pkg/textutil"
)

// Patterns removed from text before tokenisation. Addresses, URLs and
// IP literals are network artifacts; they feed the URL and reputation
// checks, not the vocabulary.
var (
	emailTokenPattern = regexp.MustCompile(`\S+@\S+`)
	urlTokenPattern   = regexp.MustCompile(`(?i)\b(?:https?|ftp)://\S+`)
	wwwTokenPattern   = regexp.MustCompile(`(?i)\bwww\.\S+`)
	ipTokenPattern    = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	nonLetterPattern  = regexp.MustCompile(`[^a-zA-Z\s]`)
	wordPattern       = regexp.MustCompile(`\b[a-z]{3,}\b`)
)

// Tokenize reduces free text to the normalised token stream consumed
// by the vectorizer. Markup and network artifacts are stripped, words
// shorter than three letters are dropped, surviving words are
// lemmatised and filtered against the stop-word and corpus blocklists.
func Tokenize(text string) []string {
	cleaned := textutil.StripHTML(text)
	cleaned = emailTokenPattern.ReplaceAllString(cleaned, " ")
	cleaned = urlTokenPattern.ReplaceAllString(cleaned, " ")
	cleaned = wwwTokenPattern.ReplaceAllString(cleaned, " ")
	cleaned = ipTokenPattern.ReplaceAllString(cleaned, " ")
	cleaned = nonLetterPattern.ReplaceAllString(cleaned, " ")
	cleaned = strings.ToLower(cleaned)

	words := wordPattern.FindAllString(cleaned, -1)
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		if stopwords[word] || blocklist[word] {
			continue
		}
		word = lemmatize(word)
		if stopwords[word] || blocklist[word] {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

var irregularPlurals = map[string]string{
	"men":      "man",
	"women":    "woman",
	"children": "child",
	"feet":     "foot",
	"teeth":    "tooth",
	"mice":     "mouse",
	"geese":    "goose",
}

// lemmatize collapses English plural forms with ordered suffix rules.
// Rule based rather than dictionary based so a fitted vocabulary stays
// identical across runs and machines.
func lemmatize(word string) string {
	if singular, ok := irregularPlurals[word]; ok {
		return singular
	}
	n := len(word)
	switch {
	case n > 4 && strings.HasSuffix(word, "ies"):
		return word[:n-3] + "y"
	case n > 4 && strings.HasSuffix(word, "sses"):
		return word[:n-2]
	case n > 4 && (strings.HasSuffix(word, "xes") ||
		strings.HasSuffix(word, "ches") ||
		strings.HasSuffix(word, "shes")):
		return word[:n-2]
	case n > 3 && strings.HasSuffix(word, "s") &&
		!strings.HasSuffix(word, "ss") &&
		!strings.HasSuffix(word, "us") &&
		!strings.HasSuffix(word, "is"):
		return word[:n-1]
	}
	return word
}
