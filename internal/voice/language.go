// Package voice detects the language of spoken transcripts.
package voice

import "regexp"

// Language codes returned by DetectLanguage.
const (
	English = "en"
	Spanish = "es"
	French  = "fr"
	German  = "de"
	Italian = "it"
)

type languageRule struct {
	code    string
	pattern *regexp.Regexp
}

// Checked in order; the first match wins, so overlapping characters resolve
// to the earlier language.
var languageRules = []languageRule{
	{Spanish, regexp.MustCompile(`(?i)[ñáéíóúü]`)},
	{French, regexp.MustCompile(`(?i)[àâäéèêëïîôöùûüÿç]`)},
	{German, regexp.MustCompile(`(?i)[äöüß]`)},
	{Italian, regexp.MustCompile(`(?i)[àèéìíîòóù]`)},
}

// DetectLanguage guesses a transcript's language from its accented
// characters. Text without any defaults to English.
func DetectLanguage(text string) string {
	for _, rule := range languageRules {
		if rule.pattern.MatchString(text) {
			return rule.code
		}
	}
	return English
}

// Transcript is a recognized utterance with its detected language.
type Transcript struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// NewTranscript tags text with its detected language.
func NewTranscript(text string) Transcript {
	return Transcript{Text: text, Language: DetectLanguage(text)}
}

var languageNames = map[string]string{
	English: "English",
	Spanish: "Spanish",
	French:  "French",
	German:  "German",
	Italian: "Italian",
}

// LanguageName returns the display name of a language code, or "" for an
// unknown code.
func LanguageName(code string) string {
	return languageNames[code]
}
