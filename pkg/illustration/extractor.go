package illustration

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"content-pipeline-be/pkg/store"
)

const (
	maxIllustrations = 3
	headingMaxLen    = 60
	urlTextMaxLen    = 20

	placeholderTemplate = "https://placehold.co/800x450/EEE/31343C?text=%s"
)

// Extract derives up to three deterministic illustration placeholders from
// article text. Level-2/3 markdown headings are preferred; when the article
// has none, the first three non-blank lines stand in. Same input always
// yields the same output, placeholder URLs included.
func Extract(articleText, tasteName string) []store.Illustration {
	candidates := headings(articleText)
	if len(candidates) == 0 {
		candidates = leadingLines(articleText)
	}
	if len(candidates) > maxIllustrations {
		candidates = candidates[:maxIllustrations]
	}

	illustrations := make([]store.Illustration, 0, len(candidates))
	for i, candidate := range candidates {
		heading := truncate(candidate, headingMaxLen)
		illustrations = append(illustrations, store.Illustration{
			Index:    i + 1,
			Heading:  heading,
			Prompt:   buildPrompt(heading, tasteName),
			ImageURL: placeholderURL(heading),
			Alt:      fmt.Sprintf("Illustration for: %s", heading),
		})
	}
	return illustrations
}

// headings collects "## " / "### " heading lines in order of appearance.
func headings(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "### ") {
			out = append(out, strings.TrimSpace(strings.TrimPrefix(trimmed, "### ")))
		} else if strings.HasPrefix(trimmed, "## ") {
			out = append(out, strings.TrimSpace(strings.TrimPrefix(trimmed, "## ")))
		}
	}
	return out
}

// leadingLines is the no-headings fallback: first three non-blank lines.
func leadingLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
		if len(out) == maxIllustrations {
			break
		}
	}
	return out
}

func buildPrompt(heading, tasteName string) string {
	return fmt.Sprintf(
		"A clean editorial illustration for a section titled %q, rendered in a %s style. Flat colors, no text in the image.",
		heading, tasteName,
	)
}

func placeholderURL(heading string) string {
	return fmt.Sprintf(placeholderTemplate, url.QueryEscape(truncate(heading, urlTextMaxLen)))
}

// truncate cuts s to max characters, never splitting a multibyte rune.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
