// Package persona holds the victim profiles the honeypot impersonates and
// the deterministic template store behind every reply. Template selection is
// rule-driven; randomness exists only within the chosen category.
package persona

import (
	"github.com/decoynet/honeypot/pkg/detect"
)

// Profile describes one victim persona. The description feeds the
// naturalization prompt; TypoProne enables deterministic typo injection.
type Profile struct {
	Name        string
	Description string
	TypoProne   bool
}

var profiles = map[string]Profile{
	"elderly": {
		Name:        "elderly",
		Description: "A polite, trusting retiree over 65. Not good with technology, uses simple language, asks for step-by-step help, worried about making mistakes.",
		TypoProne:   true,
	},
	"eager": {
		Name:        "eager",
		Description: "An excitable person in their thirties. Enthusiastic about prizes and opportunities, replies quickly, asks what to do next.",
		TypoProne:   false,
	},
	"cautious": {
		Name:        "cautious",
		Description: "A methodical middle-aged professional. Skeptical but engaged, asks questions, wants specifics and proof before acting.",
		TypoProne:   false,
	},
	"techNovice": {
		Name:        "techNovice",
		Description: "A patient person over 50 who struggles with technology. Confused by apps and links, needs every instruction spelled out in detail.",
		TypoProne:   true,
	},
}

var personaForType = map[detect.ScamType]string{
	detect.TypePhishing:      "cautious",
	detect.TypeLottery:       "eager",
	detect.TypeTechSupport:   "techNovice",
	detect.TypeRomance:       "eager",
	detect.TypeInvestment:    "cautious",
	detect.TypeFakeJob:       "eager",
	detect.TypeImpersonation: "elderly",
	detect.TypeUnknown:       "elderly",
}

// ForScamType returns the stable persona for a scam type. The choice is made
// once per session and never changes afterwards.
func ForScamType(t detect.ScamType) Profile {
	name, ok := personaForType[t]
	if !ok {
		name = "elderly"
	}
	return profiles[name]
}

// ByName looks up a profile for sessions restored with a stored persona name.
func ByName(name string) (Profile, bool) {
	p, ok := profiles[name]
	return p, ok
}
