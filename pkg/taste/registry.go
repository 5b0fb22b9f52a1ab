package taste

// Profile describes a named writing style: tone guidance plus the section
// outline the writer is asked to follow.
type Profile struct {
	Name           string
	Description    string
	SectionOutline []string
}

const DefaultKey = "web-article"

var profiles = map[string]Profile{
	"advertising": {
		Name:        "advertising",
		Description: "Short punchy sentences. Strong hooks, concrete benefits, an explicit call to action at the end. Avoid jargon and hedging.",
		SectionOutline: []string{
			"Hook",
			"Benefit highlights",
			"Social proof",
			"Call to action",
		},
	},
	"business-proposal": {
		Name:        "business-proposal",
		Description: "Formal and structured. State the problem before the solution, quantify impact where possible, and close with concrete next steps.",
		SectionOutline: []string{
			"Executive summary",
			"Problem",
			"Proposed solution",
			"Expected impact",
			"Next steps",
		},
	},
	"web-article": {
		Name:        "web-article",
		Description: "Conversational tone, short paragraphs, descriptive headings. Write for a reader skimming on a screen.",
		SectionOutline: []string{
			"Introduction",
			"Background",
			"Main points",
			"Practical takeaways",
			"Conclusion",
		},
	},
	"academic": {
		Name:        "academic",
		Description: "Objective register. Define terminology on first use, cite evidence, avoid rhetorical flourishes.",
		SectionOutline: []string{
			"Abstract",
			"Introduction",
			"Method",
			"Results",
			"Discussion",
			"Conclusion",
		},
	},
}

// Resolve returns the profile for key, falling back to the default
// web-article profile when the key is unknown or empty.
func Resolve(key string) Profile {
	if p, ok := profiles[key]; ok {
		return p
	}
	return profiles[DefaultKey]
}

// Known reports whether key maps to a built-in profile.
func Known(key string) bool {
	_, ok := profiles[key]
	return ok
}

// Keys lists the built-in profile keys.
func Keys() []string {
	keys := make([]string, 0, len(profiles))
	for k := range profiles {
		keys = append(keys, k)
	}
	return keys
}
