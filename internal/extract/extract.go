// SPDX-License-Identifier: Apache-2.0

// Package extract resolves typed fields from free text with pattern
// matching only. It never calls out and never guesses: a field with more
// than one plausible candidate is left unresolved so the dialogue can
// disambiguate with the user.
package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/adiadia/concierge/internal/domain"
)

var (
	emailPattern   = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	subjectPattern = regexp.MustCompile(`(?i)subject\s*(?:would\s+be|is|:|-)\s*([^,.\n]+)`)
	namePattern    = regexp.MustCompile(`(?i)\bname\s*(?:is)?\s*[-:]?\s+([A-Za-z][A-Za-z .'-]*)`)
	isoDatePattern = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	bulletPattern  = regexp.MustCompile(`(?i)\b(\d+)\s*(?:bullet\s*)?points?\b`)
	docWordTrim    = `.,!?()[]{}":;`
)

var documentExtensions = []string{".txt", ".md", ".markdown", ".pdf", ".doc", ".docx"}

// Extractor resolves fields deterministically. The clock is injected so
// relative dates ("today", "tomorrow") are stable under test.
type Extractor struct {
	now func() time.Time
}

func New(now func() time.Time) *Extractor {
	if now == nil {
		now = time.Now
	}
	return &Extractor{now: now}
}

// Extract returns a partial slot set holding only the fields it resolved
// unambiguously, all tagged with extracted provenance. Absence of a field
// is represented by omission, never by an error.
func (e *Extractor) Extract(text string, specs []domain.FieldSpec) domain.SlotSet {
	slots := make(domain.SlotSet)

	for _, spec := range specs {
		if spec.Semantic {
			continue
		}

		var (
			value string
			ok    bool
		)
		switch spec.Type {
		case domain.FieldAddress:
			value, ok = firstUnambiguousEmail(text)
		case domain.FieldDateTime:
			value, ok = e.resolveDate(text)
		case domain.FieldIdentifier:
			value, ok = extractName(text)
		case domain.FieldFreeText:
			if spec.Name == "subject" {
				value, ok = extractSubject(text)
			}
		}

		if ok {
			slots.Resolve(spec.Name, value, domain.ProvenanceExtracted)
		}
	}

	return slots
}

// ContentRequirement recognizes deterministic content directives such as
// "5 bullet points" or "summary". Empty when the text carries none.
func ContentRequirement(text string) string {
	lower := strings.ToLower(text)
	var parts []string

	if m := bulletPattern.FindStringSubmatch(lower); m != nil {
		parts = append(parts, m[1]+" bullet points")
	} else if containsAny(lower, "bullet", "points", "list") {
		parts = append(parts, "bullet points")
	}

	switch {
	case containsAny(lower, "summary", "summarize", "summarise"):
		parts = append(parts, "summary")
	case containsAny(lower, "brief", "short", "concise"):
		parts = append(parts, "brief")
	case containsAny(lower, "highlight", "key", "important", "main"):
		parts = append(parts, "highlights")
	case containsAny(lower, "overview", "intro", "introduction"):
		parts = append(parts, "overview")
	}

	return strings.Join(parts, " ")
}

// DocumentReference picks out a file name with a known document extension,
// or "latest" when the text only says "document".
func DocumentReference(text string) (string, bool) {
	for _, word := range strings.Fields(text) {
		clean := strings.Trim(word, docWordTrim)
		if !strings.Contains(clean, ".") {
			continue
		}
		lower := strings.ToLower(clean)
		for _, ext := range documentExtensions {
			if strings.HasSuffix(lower, ext) {
				return clean, true
			}
		}
	}
	if strings.Contains(strings.ToLower(text), "document") {
		return "", true
	}
	return "", false
}

func firstUnambiguousEmail(text string) (string, bool) {
	matches := emailPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return "", false
	}
	first := matches[0]
	for _, m := range matches[1:] {
		if !strings.EqualFold(m, first) {
			// Two distinct candidates: let the dialogue disambiguate.
			return "", false
		}
	}
	return first, true
}

func extractSubject(text string) (string, bool) {
	m := subjectPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	subject := m[1]
	// The capture runs to the end of the clause; "with" starts a new
	// directive ("with 5 bullet points") rather than subject text.
	if i := strings.Index(strings.ToLower(subject), " with "); i >= 0 {
		subject = subject[:i]
	}
	subject = strings.TrimRight(strings.TrimSpace(subject), ", ")
	if subject == "" {
		return "", false
	}
	return subject, true
}

func extractName(text string) (string, bool) {
	m := namePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	name := m[1]
	for _, stop := range []string{" and ", " email ", " with "} {
		if i := strings.Index(strings.ToLower(name), stop); i >= 0 {
			name = name[:i]
		}
	}
	name = strings.Trim(strings.TrimSpace(name), `"' `)
	if name == "" {
		return "", false
	}
	return name, true
}

func (e *Extractor) resolveDate(text string) (string, bool) {
	lower := strings.ToLower(text)
	today := e.now().Format("2006-01-02")
	tomorrow := e.now().AddDate(0, 0, 1).Format("2006-01-02")

	iso := isoDatePattern.FindAllString(text, -1)
	hasToday := strings.Contains(lower, "today")
	hasTomorrow := strings.Contains(lower, "tomorrow")

	var candidates []string
	if hasToday {
		candidates = append(candidates, today)
	}
	if hasTomorrow {
		candidates = append(candidates, tomorrow)
	}
	for _, d := range iso {
		if _, err := time.Parse("2006-01-02", d); err == nil {
			candidates = append(candidates, d)
		}
	}

	candidates = dedupe(candidates)
	if len(candidates) != 1 {
		return "", false
	}
	return candidates[0], true
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
