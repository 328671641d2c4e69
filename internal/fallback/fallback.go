// SPDX-License-Identifier: Apache-2.0

// Package fallback fills semantic fields (message bodies, subject lines,
// summaries) by delegating to a text-generation transport. Prompt
// construction and response vetting live here; the network call is
// behind the Generator interface.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/adiadia/concierge/internal/domain"
)

// Generator is the consumed text-generation transport. Implementations
// must honor ctx cancellation; the fallback bounds every call with a
// timeout and performs no retries.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxLength int) (string, error)
}

const (
	DefaultTimeout    = 20 * time.Second
	defaultBodyBudget = 2400
	subjectBudget     = 200
)

// FieldContext carries everything a prompt may draw on: the original
// request, slots resolved so far, an optional source document and an
// optional deterministic content directive ("5 bullet points", "summary").
type FieldContext struct {
	Query       string
	Slots       domain.SlotSet
	Document    string
	Requirement string
}

type Fallback struct {
	gen     Generator
	timeout time.Duration
	logger  *slog.Logger
}

type Options struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

func New(gen Generator, opts Options) *Fallback {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{gen: gen, timeout: timeout, logger: logger}
}

// Fill resolves one field with generated provenance. Any transport or
// vetting failure returns an error wrapping domain.ErrGenerationFailed
// and leaves the slot untouched; callers degrade by marking the plan
// incomplete rather than shipping empty content.
func (f *Fallback) Fill(ctx context.Context, step *domain.Step, spec domain.FieldSpec, fc FieldContext) error {
	if f.gen == nil {
		return fmt.Errorf("%w: no generator configured", domain.ErrGenerationFailed)
	}

	prompt, budget := buildPrompt(step.Capability, spec.Name, fc)

	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	started := time.Now()
	text, err := f.gen.Generate(callCtx, prompt, budget)
	if err != nil {
		f.logger.Warn("generation failed",
			"field", spec.Name,
			"capability", step.Capability,
			"duration_ms", time.Since(started).Milliseconds(),
			"error", err,
		)
		return fmt.Errorf("%w: field %s: %v", domain.ErrGenerationFailed, spec.Name, err)
	}

	value, err := vet(spec.Name, fc.Query, text)
	if err != nil {
		f.logger.Warn("generated content rejected",
			"field", spec.Name,
			"error", err,
		)
		return fmt.Errorf("%w: field %s: %v", domain.ErrGenerationFailed, spec.Name, err)
	}

	step.Slots.Resolve(spec.Name, value, domain.ProvenanceGenerated)
	f.logger.Debug("field generated",
		"field", spec.Name,
		"capability", step.Capability,
		"length", len(value),
	)
	return nil
}

func buildPrompt(capability domain.CapabilityKind, field string, fc FieldContext) (string, int) {
	switch field {
	case "subject":
		body := fc.Slots.Value("body")
		if len(body) > 200 {
			body = body[:200] + "..."
		}
		return fmt.Sprintf(
			"Based on this email request and content, suggest a professional email subject line.\n\n"+
				"Request: %s\nContent preview: %s\n\n"+
				"Generate a concise, professional subject line (max 8 words).",
			fc.Query, body,
		), subjectBudget
	case "body":
		var b strings.Builder
		b.WriteString("You are a professional email writer. Create a polished, business-appropriate email body.\n\n")
		b.WriteString("Requirements:\n")
		b.WriteString("- Write as the sender, never as an assistant\n")
		b.WriteString("- Do not quote or reference the raw request\n")
		b.WriteString("- Use a greeting, the main content, and a closing\n")
		if fc.Requirement != "" {
			fmt.Fprintf(&b, "- Shape the content as: %s\n", fc.Requirement)
		}
		fmt.Fprintf(&b, "\nContext for the email: %s\n", fc.Query)
		if recipient := fc.Slots.Value("recipient"); recipient != "" {
			fmt.Fprintf(&b, "Recipient: %s\n", recipient)
		}
		if subject := fc.Slots.Value("subject"); subject != "" {
			fmt.Fprintf(&b, "Subject hint: %s\n", subject)
		}
		if fc.Document != "" {
			fmt.Fprintf(&b, "\nBase the content on this document:\n%s\n", fc.Document)
		}
		return b.String(), defaultBodyBudget
	default:
		var b strings.Builder
		fmt.Fprintf(&b, "Produce the %q value for a %s action, professional and concise.\n", field, capability)
		if fc.Requirement != "" {
			fmt.Fprintf(&b, "Shape it as: %s\n", fc.Requirement)
		}
		fmt.Fprintf(&b, "Request: %s\n", fc.Query)
		if fc.Document != "" {
			fmt.Fprintf(&b, "Source document:\n%s\n", fc.Document)
		}
		return b.String(), defaultBodyBudget
	}
}

// assistantTells are phrases that reveal generated text is speaking as an
// assistant rather than as the sender.
var assistantTells = []string{
	"the user asked",
	"user request",
	"you asked me to",
	"as requested by",
	"the user wants",
	"based on your request to",
}

func vet(field, query, text string) (string, error) {
	value := strings.TrimSpace(text)
	if value == "" {
		return "", errors.New("empty generation result")
	}

	switch field {
	case "subject":
		value = strings.Trim(value, `"'`)
		value = strings.TrimSpace(value)
		if len(value) < 3 {
			return "", errors.New("subject too short")
		}
		if strings.ContainsAny(value, "\n") {
			value = strings.SplitN(value, "\n", 2)[0]
		}
		return value, nil
	case "body":
		lower := strings.ToLower(value)
		if len(value) < 20 {
			return "", errors.New("body too short to be usable")
		}
		for _, tell := range assistantTells {
			if strings.Contains(lower, tell) {
				return "", fmt.Errorf("body sounds like an assistant response (%q)", tell)
			}
		}
		for _, phrase := range leakedPhrases(query) {
			if strings.Contains(lower, phrase) {
				return "", errors.New("body leaks the raw user request")
			}
		}
		if !containsAny(lower, "hello", "hi", "dear", "greetings") {
			return "", errors.New("body lacks a greeting")
		}
		if !containsAny(lower, "regards", "sincerely", "best", "thank you", "thanks") {
			return "", errors.New("body lacks a closing")
		}
		return value, nil
	default:
		return value, nil
	}
}

// leakedPhrases splits the query into clauses long enough to be telling
// if they show up verbatim in generated content.
func leakedPhrases(query string) []string {
	var out []string
	for _, part := range strings.Split(strings.ToLower(query), ",") {
		if p := strings.TrimSpace(part); len(p) > 10 {
			out = append(out, p)
		}
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
