// SPDX-License-Identifier: Apache-2.0

// Package draft materializes a fully resolved step into the
// provider-shaped payload the dispatcher consumes. It renders resolved
// slots and never alters them: merging precedence was already enforced
// when the slots were filled.
package draft

import (
	"fmt"
	"strings"

	"github.com/adiadia/concierge/internal/domain"
	"github.com/google/uuid"
)

type Generator struct{}

func New() *Generator { return &Generator{} }

// Materialize renders one step into a new draft. Attempt numbering starts
// at 1; a re-draft after rejection gets a fresh draft ID and the next
// attempt number so the audit trail keeps every version.
func (g *Generator) Materialize(step *domain.Step, attempt int) (*domain.Draft, error) {
	if missing := step.MissingRequired(); len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for _, f := range missing {
			names = append(names, f.Name)
		}
		return nil, fmt.Errorf("step %s not fully resolved: missing %s",
			step.Capability, strings.Join(names, ", "))
	}

	payload := make(map[string]string, len(step.Fields))
	for _, f := range step.Fields {
		if !step.Slots.Resolved(f.Name) {
			continue
		}
		payload[f.Name] = render(step.Capability, f, step.Slots.Value(f.Name))
	}

	return &domain.Draft{
		ID:         uuid.New(),
		StepID:     step.ID,
		Capability: step.Capability,
		Attempt:    attempt,
		Payload:    payload,
	}, nil
}

// render normalizes a resolved value into provider shape without
// changing its meaning.
func render(capability domain.CapabilityKind, spec domain.FieldSpec, value string) string {
	switch spec.Type {
	case domain.FieldAddress:
		return strings.ToLower(strings.TrimSpace(value))
	case domain.FieldIdentifier:
		return strings.Join(strings.Fields(value), " ")
	default:
		if capability == domain.CapabilityMail && spec.Name == "subject" {
			return strings.TrimSpace(value)
		}
		return strings.TrimRight(value, " \n")
	}
}
