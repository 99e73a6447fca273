package translate

import (
	"io"
	"unicode"

	"github.com/abadojack/whatlanggo"
	"github.com/sirupsen/logrus"
)

// DefaultMinDetectChars is the minimum number of non-whitespace
// characters required before language detection is attempted. Shorter
// inputs default to English: trigram detection is noise below this.
const DefaultMinDetectChars = 10

// Result is the outcome of text normalisation. Text is always usable:
// on any translation failure it carries the original input.
type Result struct {
	Text             string `json:"text"`
	DetectedLanguage string `json:"detected_language"`
	WasTranslated    bool   `json:"was_translated"`
}

// Engine turns Russian text into English. Implementations must be
// offline and deterministic: the same input always yields the same
// output, with no network and no stochastic decoding.
type Engine interface {
	Translate(text string) (string, error)
}

// Translator detects the language of message text and normalises
// Russian content to English through its engine.
type Translator struct {
	engine    Engine
	minDetect int
	log       logrus.FieldLogger
}

// NewTranslator creates a translator. A nil engine selects the bundled
// lexicon engine; a nil logger discards output.
func NewTranslator(engine Engine, log logrus.FieldLogger) *Translator {
	if engine == nil {
		engine = NewLexicon()
	}
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	return &Translator{
		engine:    engine,
		minDetect: DefaultMinDetectChars,
		log:       log.WithField("component", "translate"),
	}
}

// SetMinDetectChars overrides the detection threshold. Negative values
// are ignored.
func (t *Translator) SetMinDetectChars(n int) {
	if n >= 0 {
		t.minDetect = n
	}
}

// Translate returns an English-dominant normalisation of text. Failures
// are absorbed: the original text comes back unchanged with
// WasTranslated false.
func (t *Translator) Translate(text string) Result {
	if countNonSpace(text) < t.minDetect {
		return Result{Text: text, DetectedLanguage: "en"}
	}

	info := whatlanggo.Detect(text)
	lang := languageCode(info.Lang)

	if info.Lang != whatlanggo.Rus {
		return Result{Text: text, DetectedLanguage: lang}
	}

	translated, err := t.engine.Translate(text)
	if err != nil {
		t.log.WithError(err).Warn("translation failed, keeping original text")
		return Result{Text: text, DetectedLanguage: lang}
	}

	return Result{Text: translated, DetectedLanguage: lang, WasTranslated: true}
}

// countNonSpace counts non-whitespace runes.
func countNonSpace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// languageCode maps a detected language to a short code, ISO 639-1 for
// the languages this analyzer routinely sees.
func languageCode(lang whatlanggo.Lang) string {
	switch lang {
	case whatlanggo.Rus:
		return "ru"
	case whatlanggo.Eng:
		return "en"
	case whatlanggo.Ukr:
		return "uk"
	case whatlanggo.Bel:
		return "be"
	default:
		return whatlanggo.LangToString(lang)
	}
}
