package classifier

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

// minDetectWords is the shortest prompt worth running detection on
const minDetectWords = 4

var detectableLanguages = []lingua.Language{
	lingua.English,
	lingua.Spanish,
	lingua.French,
	lingua.German,
	lingua.Portuguese,
	lingua.Italian,
	lingua.Dutch,
}

// languageDetector wraps a lingua detector limited to common post languages
type languageDetector struct {
	detector lingua.LanguageDetector
}

func newLanguageDetector() *languageDetector {
	return &languageDetector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromLanguages(detectableLanguages...).
			WithLowAccuracyMode().
			Build(),
	}
}

// Detect returns the lowercase language name, or "" when unsure
func (d *languageDetector) Detect(text string) string {
	if len(strings.Fields(text)) < minDetectWords {
		return ""
	}
	language, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return strings.ToLower(language.String())
}

// isEnglish treats an undetected language as English
func isEnglish(language string) bool {
	return language == "" || language == "english"
}
