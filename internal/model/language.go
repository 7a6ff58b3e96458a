package model

import (
	"log/slog"

	"golang.org/x/text/language"
)

// supportedLanguages are the prompt languages the engine can render.
// English is first and acts as the fallback.
var supportedLanguages = []language.Tag{
	language.English,
	language.Spanish,
	language.Portuguese,
	language.French,
	language.German,
	language.Italian,
	language.Japanese,
}

var languageMatcher = language.NewMatcher(supportedLanguages)

// ResolveLanguage maps a test's BCP-47 language field to a supported
// prompt language. Unrecognized or empty tags fall back to English
// with a logged warning so a bad tag never blocks a run.
func ResolveLanguage(tag string) language.Tag {
	if tag == "" {
		return language.English
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		slog.Warn("unrecognized test language, falling back to English", "tag", tag, "error", err)
		return language.English
	}
	matched, _, conf := languageMatcher.Match(parsed)
	if conf == language.No {
		slog.Warn("unsupported test language, falling back to English", "tag", tag)
		return language.English
	}
	// Matcher may return an extended tag; keep the base.
	base, _ := matched.Base()
	resolved, err := language.Parse(base.String())
	if err != nil {
		return language.English
	}
	return resolved
}

// LanguageName returns the English display name used in prompt
// instructions ("Respond in Spanish.").
func LanguageName(tag language.Tag) string {
	switch tag {
	case language.Spanish:
		return "Spanish"
	case language.Portuguese:
		return "Portuguese"
	case language.French:
		return "French"
	case language.German:
		return "German"
	case language.Italian:
		return "Italian"
	case language.Japanese:
		return "Japanese"
	default:
		return "English"
	}
}
