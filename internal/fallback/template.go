// SPDX-License-Identifier: Apache-2.0

package fallback

import (
	"context"
	"strings"
)

// TemplateGenerator is a deterministic, offline Generator used when no
// model transport is configured (demo mode). It assembles serviceable
// content from the prompt's context lines instead of calling out.
type TemplateGenerator struct{}

func (TemplateGenerator) Generate(ctx context.Context, prompt string, maxLength int) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	if strings.Contains(prompt, "subject line") {
		if hint := promptLine(prompt, "Subject hint: "); hint != "" {
			return hint, nil
		}
		return "Quick update", nil
	}

	var b strings.Builder
	b.WriteString("Hello,\n\n")
	if doc := promptSection(prompt, "Base the content on this document:\n"); doc != "" {
		b.WriteString(summarize(doc, 3))
		b.WriteString("\n")
	} else {
		b.WriteString("I wanted to share a quick update with you. ")
		b.WriteString("Please find the relevant details below, and let me know if you have any questions.\n")
	}
	b.WriteString("\nBest regards")

	out := b.String()
	if maxLength > 0 && len(out) > maxLength {
		out = out[:maxLength]
	}
	return out, nil
}

func promptLine(prompt, prefix string) string {
	for _, line := range strings.Split(prompt, "\n") {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix))
		}
	}
	return ""
}

func promptSection(prompt, marker string) string {
	i := strings.Index(prompt, marker)
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(prompt[i+len(marker):])
}

// summarize keeps the first n sentences of a document, which is as much
// summarization as an offline generator can honestly claim.
func summarize(doc string, n int) string {
	doc = strings.Join(strings.Fields(doc), " ")
	var (
		b     strings.Builder
		count int
	)
	for _, sentence := range strings.SplitAfter(doc, ". ") {
		b.WriteString(sentence)
		count++
		if count >= n {
			break
		}
	}
	return strings.TrimSpace(b.String())
}
