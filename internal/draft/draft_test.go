// SPDX-License-Identifier: Apache-2.0

package draft

import (
	"strings"
	"testing"

	"github.com/adiadia/concierge/internal/domain"
	"github.com/adiadia/concierge/internal/planner"
)

func TestMaterializeMailDraft(t *testing.T) {
	step := domain.NewStep(domain.CapabilityMail, planner.FieldsFor(domain.CapabilityMail))
	step.Slots.Resolve("recipient", " John@Example.COM ", domain.ProvenanceExtracted)
	step.Slots.Resolve("subject", "Project update", domain.ProvenancePrompted)
	step.Slots.Resolve("body", "Hello,\n\nAll on track.\n\nBest regards\n", domain.ProvenanceGenerated)

	g := New()
	d, err := g.Materialize(step, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if d.Payload["recipient"] != "john@example.com" {
		t.Fatalf("expected normalized address, got %q", d.Payload["recipient"])
	}
	if d.Payload["subject"] != "Project update" {
		t.Fatalf("unexpected subject %q", d.Payload["subject"])
	}
	if strings.HasSuffix(d.Payload["body"], "\n") {
		t.Fatal("expected trailing newline trimmed from body")
	}
	if d.StepID != step.ID || d.Capability != domain.CapabilityMail || d.Attempt != 1 {
		t.Fatalf("unexpected draft identity: %+v", d)
	}

	// Materializing must not mutate the slots.
	if got := step.Slots.Value("recipient"); got != " John@Example.COM " {
		t.Fatalf("slot value mutated to %q", got)
	}
}

func TestMaterializeRejectsIncompleteStep(t *testing.T) {
	step := domain.NewStep(domain.CapabilityMail, planner.FieldsFor(domain.CapabilityMail))
	step.Slots.Resolve("recipient", "a@b.com", domain.ProvenanceExtracted)

	if _, err := New().Materialize(step, 1); err == nil {
		t.Fatal("expected error for unresolved required fields")
	}
}

func TestRedraftGetsNewIdentity(t *testing.T) {
	step := domain.NewStep(domain.CapabilityCRM, planner.FieldsFor(domain.CapabilityCRM))
	step.Slots.Resolve("name", "Jane  Doe", domain.ProvenancePrompted)
	step.Slots.Resolve("email", "jane@corp.com", domain.ProvenanceExtracted)

	g := New()
	first, err := g.Materialize(step, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := g.Materialize(step, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.ID == second.ID {
		t.Fatal("re-draft must have a fresh draft ID")
	}
	if second.Attempt != 2 {
		t.Fatalf("expected attempt 2, got %d", second.Attempt)
	}
	if first.Payload["name"] != "Jane Doe" {
		t.Fatalf("expected collapsed whitespace in name, got %q", first.Payload["name"])
	}
}
