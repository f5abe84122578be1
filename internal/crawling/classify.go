package crawling

import "strings"

// registerPhrases appear in anchor or surrounding text of register links.
var registerPhrases = []string{
	"register of interests",
	"register of interest",
	"register of member interests",
	"register of members interests",
	"register of members' interests",
	"members' interests",
	"member's interests",
	"members interests",
	"declaration of interest",
	"declarations of interest",
	"declarations of interests",
	"pecuniary interests",
	"disclosable pecuniary interests",
}

// registerURLHints appear in register URLs; mgRofI and mgDeclarationSubmission are ModernGov pages.
var registerURLHints = []string{
	"mgdeclarationsubmission",
	"mgrofi",
	"registerofinterests",
	"register-of-interests",
	"register_of_interests",
	"register-of-members-interests",
	"declarations-of-interest",
	"declaration-of-interests",
}

// LooksLikeRegister reports whether text or href carries a register keyword.
func LooksLikeRegister(text, href string) bool {
	haystack := strings.ToLower(collapse(text + " " + href))
	haystack = strings.ReplaceAll(haystack, "’", "'")
	for _, hint := range registerURLHints {
		if strings.Contains(haystack, hint) {
			return true
		}
	}
	for _, phrase := range registerPhrases {
		if strings.Contains(haystack, phrase) {
			return true
		}
	}
	return false
}

// IsRegisterLink classifies a link by its own text and URL first, then by the
// text of its parent element.
func IsRegisterLink(l Link) bool {
	if LooksLikeRegister(l.Text, l.URL) {
		return true
	}
	return l.Context != "" && LooksLikeRegister(l.Context, l.URL)
}

// RegisterLinks filters links down to register links, keeping order.
func RegisterLinks(links []Link) []Link {
	out := make([]Link, 0)
	for _, l := range links {
		if IsRegisterLink(l) {
			out = append(out, l)
		}
	}
	return out
}
