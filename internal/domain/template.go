package domain

import "strings"

type TemplateKey string

const (
	TemplateDaily     TemplateKey = "daily"
	TemplateLearning  TemplateKey = "learning"
	TemplateOneOnOne  TemplateKey = "oneOnOne"
	TemplateGratitude TemplateKey = "gratitude"
	TemplateIdeas     TemplateKey = "ideas"
)

// Template pre-fills the capture text.
type Template struct {
	Key         TemplateKey `json:"key"`
	Label       string      `json:"label"`
	Description string      `json:"description"`
	Text        string      `json:"text"`
}

var templates = []Template{
	{
		Key:         TemplateDaily,
		Label:       "Daily Reflection",
		Description: "End-of-day check-in",
		Text: strings.Join([]string{
			"What did I learn today?",
			"What felt hard or confusing?",
			"What do I want to revisit tomorrow?",
		}, "\n\n"),
	},
	{
		Key:         TemplateLearning,
		Label:       "Learning Log",
		Description: "New concepts & skills",
		Text: strings.Join([]string{
			"New concept I learned:",
			"",
			"Why it matters:",
			"",
			"Where I can apply this:",
			"",
			"Next step / experiment:",
		}, "\n"),
	},
	{
		Key:         TemplateOneOnOne,
		Label:       "1:1 Notes",
		Description: "Discussion & follow-ups",
		Text: strings.Join([]string{
			"Discussion points:",
			"- ",
			"",
			"Decisions made:",
			"- ",
			"",
			"Action items & owners:",
			"- ",
			"",
			"Follow-ups for next 1:1:",
			"- ",
		}, "\n"),
	},
	{
		Key:         TemplateGratitude,
		Label:       "Gratitude",
		Description: "Small things that mattered",
		Text: strings.Join([]string{
			"Three things I'm grateful for today:",
			"1.",
			"2.",
			"3.",
			"",
			"Why these mattered:",
		}, "\n"),
	},
	{
		Key:         TemplateIdeas,
		Label:       "Ideas",
		Description: "Random sparks, raw notes",
		Text: strings.Join([]string{
			"Idea:",
			"",
			"What problem does this solve?",
			"",
			"Who is this for?",
			"",
			"First tiny experiment I can run:",
		}, "\n"),
	},
}

// Templates returns a copy in display order.
func Templates() []Template {
	out := make([]Template, len(templates))
	copy(out, templates)
	return out
}

func LookupTemplate(key string) (Template, bool) {
	for _, t := range templates {
		if strings.EqualFold(string(t.Key), strings.TrimSpace(key)) {
			return t, true
		}
	}
	return Template{}, false
}
