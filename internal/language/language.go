package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Auto asks the engine to detect the spoken language.
const Auto = "auto"

var wordForms = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"russian":    "ru",
	"arabic":     "ar",
	"hindi":      "hi",
	"dutch":      "nl",
	"polish":     "pl",
	"swedish":    "sv",
	"danish":     "da",
	"norwegian":  "no",
	"finnish":    "fi",
}

// Parse resolves a code ("en", "eng", "en-US"), a word ("english"), or
// "auto". ok is false for auto, empty, and unrecognized input.
func Parse(value string) (language.Tag, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" || value == Auto {
		return language.Und, false
	}
	if code, ok := wordForms[value]; ok {
		value = code
	}
	tag, err := language.Parse(value)
	if err != nil || tag == language.Und {
		return language.Und, false
	}
	return tag, true
}

// ToISO2 converts any recognized language code or word to ISO 639-1.
// Returns "" for auto, empty, or unrecognized input and for languages
// without a two-letter code.
func ToISO2(value string) string {
	tag, ok := Parse(value)
	if !ok {
		return ""
	}
	base, _ := tag.Base()
	code := base.String()
	if len(code) != 2 {
		return ""
	}
	return code
}

// ToISO3 converts any recognized language code or word to ISO 639-2/T.
// Returns "und" when the input is not recognized.
func ToISO3(value string) string {
	tag, ok := Parse(value)
	if !ok {
		return "und"
	}
	base, _ := tag.Base()
	return base.ISO3()
}

// DisplayName returns the English name for value, "Auto-detect" for auto,
// "Unknown" for empty input, or the uppercased input when unrecognized.
func DisplayName(value string) string {
	trimmed := strings.TrimSpace(value)
	switch strings.ToLower(trimmed) {
	case "":
		return "Unknown"
	case Auto:
		return "Auto-detect"
	}
	tag, ok := Parse(trimmed)
	if !ok {
		return strings.ToUpper(trimmed)
	}
	base, _ := tag.Base()
	if name := display.English.Languages().Name(language.Make(base.String())); name != "" {
		return name
	}
	return strings.ToUpper(trimmed)
}

// Tag returns the tag for value, or language.Und for auto or unknown input.
func Tag(value string) language.Tag {
	tag, _ := Parse(value)
	return tag
}
