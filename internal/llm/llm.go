package llm

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"
)

// MaxPromptChars bounds how much resume text is sent to the model.
const MaxPromptChars = 3000

var (
	// ErrMalformedResponse means the model answered without the expected sections.
	ErrMalformedResponse = errors.New("llm response missing Skills/Feedback sections")
	ErrEmptyInput        = errors.New("no resume text to analyze")
)

// Result is the structured output of one extraction.
type Result struct {
	Skills   []string
	Feedback string
}

// SkillExtractor turns resume text into skills and improvement feedback.
type SkillExtractor interface {
	ExtractSkills(ctx context.Context, text string) (Result, error)
}

const promptInstructions = "Extract a comprehensive list of all relevant skills from this resume text, " +
	"including technical skills, soft skills, and domain-specific skills. " +
	"Return them as a list of strings labeled 'Skills'. Also provide feedback labeled 'Feedback' " +
	"on how the resume can be improved. Structure the response exactly as:\n\n" +
	"Skills: [skill1, skill2, skill3]\nFeedback: Your feedback here\n\n" +
	"If skills are not explicitly listed, infer them from the text. " +
	"Include all types of skills, even if they are scattered throughout the text.\n\n"

// BuildPrompt renders the extraction prompt for the (truncated) resume text.
func BuildPrompt(text string) string {
	return promptInstructions + Truncate(text, MaxPromptChars)
}

// Truncate cuts s to at most n characters without splitting a rune.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// ParseResponse splits a "Skills: [...]\nFeedback: ..." answer. The skills
// list tolerates brackets, quotes and stray whitespace.
func ParseResponse(content string) (Result, error) {
	content = strings.TrimSpace(content)
	skillsPart, feedbackPart, ok := strings.Cut(content, "Feedback:")
	if !ok {
		return Result{}, ErrMalformedResponse
	}

	skillsStr := strings.TrimSpace(strings.Replace(skillsPart, "Skills:", "", 1))
	skillsStr = strings.Trim(skillsStr, "[]'\" \n")

	skills := make([]string, 0)
	seen := make(map[string]struct{})
	for _, raw := range strings.Split(skillsStr, ",") {
		skill := strings.Trim(strings.TrimSpace(raw), "'\"")
		if skill == "" {
			continue
		}
		key := strings.ToLower(skill)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		skills = append(skills, skill)
	}
	return Result{Skills: skills, Feedback: strings.TrimSpace(feedbackPart)}, nil
}

// JoinSkills is the persisted form of a skills list. Commas inside an item
// become semicolons so SplitSkills returns the same number of items.
func JoinSkills(skills []string) string {
	cleaned := make([]string, 0, len(skills))
	for _, skill := range skills {
		if skill = strings.TrimSpace(strings.ReplaceAll(skill, ",", ";")); skill != "" {
			cleaned = append(cleaned, skill)
		}
	}
	return strings.Join(cleaned, ", ")
}

// SplitSkills reverses JoinSkills.
func SplitSkills(stored string) []string {
	out := make([]string, 0)
	for _, s := range strings.Split(stored, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
