// SPDX-License-Identifier: Apache-2.0

package planner

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/adiadia/concierge/internal/domain"
)

var (
	addressPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	subjectPrefix  = regexp.MustCompile(`(?i)^subject\s*(?:would\s+be|is|:|-)\s*`)
	namePrefix     = regexp.MustCompile(`(?i)^name\s*(?:is)?\s*[-:]?\s*`)
)

// FieldsFor returns the static field catalog for a capability, in the
// order the dialogue will ask for them.
func FieldsFor(capability domain.CapabilityKind) []domain.FieldSpec {
	switch capability {
	case domain.CapabilityMail:
		return []domain.FieldSpec{
			{
				Name:     "recipient",
				Type:     domain.FieldAddress,
				Required: true,
				Prompt:   "Please provide the recipient email address:",
				Validate: ValidateAddress,
			},
			{
				Name:     "subject",
				Type:     domain.FieldFreeText,
				Required: true,
				Prompt:   "What should be the email subject?",
				Validate: ValidateSubject,
			},
			{
				Name:     "body",
				Type:     domain.FieldFreeText,
				Required: true,
				Semantic: true,
				Prompt:   "What should be the email content?",
				Validate: ValidateBody,
			},
		}
	case domain.CapabilityCRM:
		return []domain.FieldSpec{
			{
				Name:     "name",
				Type:     domain.FieldIdentifier,
				Required: true,
				Prompt:   "Please provide the contact name:",
				Validate: ValidateName,
			},
			{
				Name:     "email",
				Type:     domain.FieldAddress,
				Required: true,
				Prompt:   "Please provide the contact email address:",
				Validate: ValidateAddress,
			},
		}
	case domain.CapabilityScheduling:
		return []domain.FieldSpec{
			{
				Name:     "date",
				Type:     domain.FieldDateTime,
				Required: true,
				Prompt:   "Which date should I check (today, tomorrow, or YYYY-MM-DD)?",
				Validate: ValidateDate,
			},
			{
				Name:     "topic",
				Type:     domain.FieldFreeText,
				Required: false,
				Prompt:   "What is the meeting about?",
				Validate: ValidateSubject,
			},
		}
	default:
		return nil
	}
}

// ValidateAddress accepts an answer containing exactly one well-formed
// email address and normalizes to the matched address.
func ValidateAddress(raw string) (string, error) {
	matches := addressPattern.FindAllString(raw, -1)
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: that doesn't look like a valid email address", domain.ErrValidationFailed)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: more than one address given, please provide exactly one", domain.ErrValidationFailed)
	}
}

// ValidateSubject strips "subject:" style prefixes and trailing commas.
func ValidateSubject(raw string) (string, error) {
	subject := strings.TrimSpace(raw)
	subject = subjectPrefix.ReplaceAllString(subject, "")
	subject = strings.TrimRight(strings.TrimSpace(subject), ", ")
	if subject == "" {
		return "", fmt.Errorf("%w: a non-empty subject is required", domain.ErrValidationFailed)
	}
	return subject, nil
}

// ValidateName strips "name is" style prefixes and surrounding quotes.
func ValidateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	name = namePrefix.ReplaceAllString(name, "")
	name = strings.Trim(strings.TrimSpace(name), `"' `)
	if name == "" {
		return "", fmt.Errorf("%w: a non-empty name is required", domain.ErrValidationFailed)
	}
	return name, nil
}

// ValidateBody accepts dictated message content of a usable length.
func ValidateBody(raw string) (string, error) {
	body := strings.TrimSpace(raw)
	if len(body) <= 10 {
		return "", fmt.Errorf("%w: please provide the full content (more than a few words)", domain.ErrValidationFailed)
	}
	return body, nil
}

// ValidateDate accepts "today", "tomorrow" or an ISO date and normalizes
// to YYYY-MM-DD. Relative dates resolve against the wall clock here
// because validation runs on live user answers, not on stored text.
func ValidateDate(raw string) (string, error) {
	lower := strings.ToLower(strings.TrimSpace(raw))
	switch lower {
	case "today":
		return time.Now().Format("2006-01-02"), nil
	case "tomorrow":
		return time.Now().AddDate(0, 0, 1).Format("2006-01-02"), nil
	}
	if t, err := time.Parse("2006-01-02", lower); err == nil {
		return t.Format("2006-01-02"), nil
	}
	return "", fmt.Errorf("%w: expected today, tomorrow, or a YYYY-MM-DD date", domain.ErrValidationFailed)
}
