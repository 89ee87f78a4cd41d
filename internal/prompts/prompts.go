// Package prompts holds the assistant's system prompt and the preset
// practice prompts offered as modes.
package prompts

import "fmt"

const SystemPrompt = `You are a consulting interview prep coach for MBA students in India.

Help the student practice guesstimates, case interviews and company preparation.
Act like a friendly but demanding interviewer: keep answers crisp, structured and MECE,
and prefer headings, numbered lists and short bullets.
Use India-specific context when making assumptions unless the student asks otherwise.
When asked for a new question, pose one, ask a few clarifying questions and wait for the
student's approach instead of solving it yourself.
When reviewing an attempt, point out gaps, give concrete feedback and show an alternative.
Refuse requests that are dangerous, illegal or inappropriate.`

type Preset struct {
	Label  string
	Prompt string
}

type Category struct {
	ID          string
	Title       string
	Description string
	Presets     []Preset
}

var Categories = []Category{
	{
		ID:          "guesstimates",
		Title:       "Guesstimates",
		Description: "Market sizing and estimation practice.",
		Presets: []Preset{
			{"New guesstimate", "Let's practice a guesstimate. Give me a new interview-style guesstimate question."},
			{"Industry guesstimate", "Let's do an industry-specific guesstimate. Ask me which industry I want to practice; if I have no preference, pick one yourself and run it like a real interview."},
			{"Structure a guesstimate", "I will share a guesstimate question. Help me build a clear MECE structure for it."},
			{"Review my attempt", "I will paste my guesstimate solution. Review it, give feedback and suggest an alternative approach."},
		},
	},
	{
		ID:          "case-prep",
		Title:       "Case Prep",
		Description: "Cases run like a real consulting interview.",
		Presets: []Preset{
			{"Profitability case", "Let's do a profitability case. Act as the interviewer and reveal information only step by step."},
			{"Market entry case", "Give me a market entry case set in India and run it like a real case interview."},
			{"Revise frameworks", "Help me revise the core case frameworks: profitability, market entry, growth and operations."},
			{"Review my structure", "I will paste my case structure. Review it and suggest improvements as an interviewer would."},
		},
	},
	{
		ID:          "company-prep",
		Title:       "Company Prep",
		Description: "Firm research and 'why this firm' answers.",
		Presets: []Preset{
			{"Company research brief", "Help me prepare for a company. Ask for the company, the role and my background, then give me a structured research brief and answer outlines."},
			{"Why this firm", "Help me structure a strong 'why this firm' answer from the company's profile and mine."},
			{"Review my answer", "I will paste my 'why this firm' answer. Point out the gaps and suggest a sharper version."},
			{"Questions to ask", "Based on the company and role I share, suggest five to seven specific questions I can ask the interviewer."},
		},
	},
}

// Find returns the preset at the 1-based index within the category.
func Find(categoryID string, index int) (Preset, error) {
	for _, c := range Categories {
		if c.ID != categoryID {
			continue
		}
		if index < 1 || index > len(c.Presets) {
			return Preset{}, fmt.Errorf("mode %q has no preset %d (1-%d)", categoryID, index, len(c.Presets))
		}
		return c.Presets[index-1], nil
	}
	return Preset{}, fmt.Errorf("unknown mode %q", categoryID)
}
