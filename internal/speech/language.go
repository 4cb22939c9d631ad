package speech

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
)

// LanguageDetector guesses the language of a transcript. The underlying
// models are loaded on first use.
type LanguageDetector struct {
	languages []lingua.Language

	once     sync.Once
	detector lingua.LanguageDetector
}

// NewLanguageDetector restricts detection to languages, or all languages when none are given.
func NewLanguageDetector(languages ...lingua.Language) *LanguageDetector {
	return &LanguageDetector{languages: languages}
}

// Detect returns a lower-case ISO 639-1 code, or "" when unsure.
func (d *LanguageDetector) Detect(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	d.once.Do(func() {
		u := lingua.NewLanguageDetectorBuilder()
		var b lingua.LanguageDetectorBuilder
		if len(d.languages) > 1 {
			b = u.FromLanguages(d.languages...)
		} else {
			b = u.FromAllLanguages()
		}
		d.detector = b.Build()
	})

	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}
