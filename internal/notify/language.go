package notify

import (
	"strings"

	"golang.org/x/text/language"
)

// Language preferences as stored on a ticket.
const (
	LanguageEnglish = "english"
	LanguageHindi   = "hindi"
	LanguageTelugu  = "telugu"
)

// supported and preferences are index-aligned.
var (
	supported   = []language.Tag{language.English, language.Hindi, language.Telugu}
	preferences = []string{LanguageEnglish, LanguageHindi, LanguageTelugu}
	matcher     = language.NewMatcher(supported)
)

// NormalizeLanguage maps a preference name ("hindi") or a BCP 47 tag
// ("hi-IN") onto one of the stored preference names. Unknown input falls back
// to english.
func NormalizeLanguage(pref string) string {
	p := strings.ToLower(strings.TrimSpace(pref))
	for _, name := range preferences {
		if p == name {
			return name
		}
	}

	tag, err := language.Parse(p)
	if err != nil {
		return LanguageEnglish
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return LanguageEnglish
	}
	return preferences[idx]
}

func tagFor(pref string) language.Tag {
	name := NormalizeLanguage(pref)
	for i, n := range preferences {
		if n == name {
			return supported[i]
		}
	}
	return language.English
}
