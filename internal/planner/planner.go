// SPDX-License-Identifier: Apache-2.0

// Package planner classifies a request's intent by deterministic keyword
// matching and maps it to an ordered list of typed steps. It never
// performs extraction itself.
package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/adiadia/concierge/internal/domain"
	"github.com/google/uuid"
)

// Keyword sets mirror the disambiguation order the original console
// used: CRM is checked before mail so "add a contact for X" does not
// read as an email request.
var (
	crmWords          = []string{"contact", "crm", "pipedrive", "add"}
	mailExplicit      = []string{"send email", "email to", "send mail", "send an email"}
	mailWords         = []string{"email", "send", "mail"}
	schedulingWords   = []string{"calendar", "meeting", "schedule", "available", "calendly", "availability"}
	crmExplicitPhrase = []string{"add a contact", "add contact", "create a contact", "create contact", "crm contact"}

	// schedulingActionable excludes the bare noun "meeting": a meeting
	// mentioned as email content is not itself a scheduling request.
	schedulingActionable = []string{"calendar", "schedule", "available", "calendly", "availability"}
)

type Planner struct{}

func New() *Planner { return &Planner{} }

// Plan maps a request to its step list. A request produces multiple
// steps only when the text explicitly names multiple actions; otherwise
// exactly one step. Requests naming no capability return
// domain.ErrUnknownIntent.
func (p *Planner) Plan(req domain.Request) (*domain.Plan, error) {
	capabilities := Classify(req.Text)
	if len(capabilities) == 0 {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownIntent, req.Text)
	}

	plan := &domain.Plan{
		ID:        uuid.New(),
		RequestID: req.ID,
	}
	for _, c := range capabilities {
		plan.Steps = append(plan.Steps, domain.NewStep(c, FieldsFor(c)))
	}
	return plan, nil
}

// Classify returns the capabilities a request targets, ordered by their
// first mention in the text.
func Classify(text string) []domain.CapabilityKind {
	lower := strings.ToLower(text)

	mailAt := firstIndex(lower, mailExplicit)
	if mailAt < 0 && containsAny(lower, mailWords...) && !containsAny(lower, "contact", "crm", "pipedrive") {
		mailAt = firstIndex(lower, mailWords)
	}
	crmExplicitAt := firstIndex(lower, crmExplicitPhrase)
	schedulingAt := firstIndex(lower, schedulingActionable)

	// Explicitly named multiple actions ("email X and add a CRM contact
	// for Y", "schedule a meeting and email the notes") plan to one
	// step each, ordered by mention.
	mentions := []capabilityMention{
		{domain.CapabilityMail, mailAt},
		{domain.CapabilityCRM, crmExplicitAt},
		{domain.CapabilityScheduling, schedulingAt},
	}
	if named := mentionOrder(mentions); len(named) > 1 {
		return named
	}

	switch {
	case containsAny(lower, crmWords...) && mailAt < 0:
		return []domain.CapabilityKind{domain.CapabilityCRM}
	case mailAt >= 0:
		return []domain.CapabilityKind{domain.CapabilityMail}
	case containsAny(lower, schedulingWords...):
		return []domain.CapabilityKind{domain.CapabilityScheduling}
	default:
		return nil
	}
}

type capabilityMention struct {
	capability domain.CapabilityKind
	at         int
}

func mentionOrder(mentions []capabilityMention) []domain.CapabilityKind {
	var named []capabilityMention
	for _, m := range mentions {
		if m.at >= 0 {
			named = append(named, m)
		}
	}
	sort.SliceStable(named, func(i, j int) bool { return named[i].at < named[j].at })

	out := make([]domain.CapabilityKind, 0, len(named))
	for _, m := range named {
		out = append(out, m.capability)
	}
	return out
}

func firstIndex(text string, phrases []string) int {
	first := -1
	for _, p := range phrases {
		if i := strings.Index(text, p); i >= 0 && (first < 0 || i < first) {
			first = i
		}
	}
	return first
}

func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
