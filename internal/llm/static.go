package llm

import (
	"context"
	"strings"
)

var keywordCatalog = []string{
	"Go", "Python", "Java", "JavaScript", "TypeScript", "SQL", "PostgreSQL", "Redis",
	"Docker", "Kubernetes", "AWS", "GCP", "Terraform", "React", "Node.js", "Git",
	"Linux", "REST", "gRPC", "Machine Learning", "Leadership", "Communication",
	"Project Management", "Agile", "Scrum",
}

// StaticExtractor matches a fixed keyword catalog. It needs no credentials
// and is used when LLM_PROVIDER=static.
type StaticExtractor struct{}

func (StaticExtractor) ExtractSkills(ctx context.Context, text string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrEmptyInput
	}
	lower := strings.ToLower(Truncate(text, MaxPromptChars))
	skills := make([]string, 0)
	for _, kw := range keywordCatalog {
		if containsWord(lower, strings.ToLower(kw)) {
			skills = append(skills, kw)
		}
	}
	feedback := "Quantify achievements and list tools next to the projects that used them."
	if len(skills) == 0 {
		feedback = "No recognizable skills found; add a dedicated skills section."
	}
	return Result{Skills: skills, Feedback: feedback}, nil
}

func containsWord(haystack, word string) bool {
	for start := 0; ; {
		idx := strings.Index(haystack[start:], word)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(word)
		if (idx == 0 || !isWordByte(haystack[idx-1])) && (end == len(haystack) || !isWordByte(haystack[end])) {
			return true
		}
		start = idx + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}
