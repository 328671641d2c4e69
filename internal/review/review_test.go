// SPDX-License-Identifier: Apache-2.0

package review

import (
	"testing"

	"github.com/adiadia/concierge/internal/domain"
	"github.com/adiadia/concierge/internal/draft"
	"github.com/adiadia/concierge/internal/planner"
)

func mailStep(t *testing.T, bodyProvenance domain.Provenance) *domain.Step {
	t.Helper()
	step := domain.NewStep(domain.CapabilityMail, planner.FieldsFor(domain.CapabilityMail))
	step.Slots.Resolve("recipient", "john@example.com", domain.ProvenanceExtracted)
	step.Slots.Resolve("subject", "Quarterly budget review", domain.ProvenanceExtracted)
	step.Slots.Resolve("body", "Hello John,\n\nThe quarterly numbers are attached for review.\n\nBest regards", bodyProvenance)
	return step
}

func materialize(t *testing.T, step *domain.Step) *domain.Draft {
	t.Helper()
	d, err := draft.New().Materialize(step, 1)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	return d
}

func TestHighConfidenceDraftApproved(t *testing.T) {
	step := mailStep(t, domain.ProvenancePrompted)
	d := materialize(t, step)

	res := New().Review(d, step)
	if res.Score < ApproveThreshold {
		t.Fatalf("expected score >= %v, got %v", ApproveThreshold, res.Score)
	}
	if !res.Approved || res.ApprovedBy != "policy" {
		t.Fatalf("expected policy approval, got %+v", res)
	}
	if res.RequiresUser {
		t.Fatal("high confidence draft must not require user confirmation")
	}
}

func TestFullyGeneratedDraftLandsInDeferBandWithoutIssues(t *testing.T) {
	step := domain.NewStep(domain.CapabilityMail, planner.FieldsFor(domain.CapabilityMail))
	step.Slots.Resolve("recipient", "john@example.com", domain.ProvenanceGenerated)
	step.Slots.Resolve("subject", "Quarterly budget review", domain.ProvenanceGenerated)
	step.Slots.Resolve("body", "Hello John,\n\nThe quarterly numbers are attached for review.\n\nBest regards", domain.ProvenanceGenerated)
	d := materialize(t, step)

	res := New().Review(d, step)
	if res.Score >= ApproveThreshold || res.Score < DeferThreshold {
		t.Fatalf("expected score in [%v, %v), got %v", DeferThreshold, ApproveThreshold, res.Score)
	}
	// Clean structure and no human-judgment issues: still approved.
	if !res.Approved {
		t.Fatalf("expected approval in defer band without issues, got %+v", res)
	}
}

func TestDeferBandWithHumanJudgmentIssueGoesToUser(t *testing.T) {
	step := mailStep(t, domain.ProvenanceGenerated)
	d := materialize(t, step)
	d.Payload["body"] = "Hello John,\n\nPlease review [insert details here] before Friday.\n\nBest regards"

	res := New().Review(d, step)
	if res.Score >= ApproveThreshold {
		t.Fatalf("expected score below approve threshold, got %v", res.Score)
	}
	if res.Approved {
		t.Fatalf("placeholder draft must not auto-approve: %+v", res)
	}
	if res.Score >= DeferThreshold && !res.RequiresUser {
		t.Fatalf("defer band with human-judgment issue must surface to user: %+v", res)
	}
	found := false
	for _, i := range res.Issues {
		if i.HumanJudgment {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected human-judgment issue, got %+v", res.Issues)
	}
}

func TestBrokenPayloadRejected(t *testing.T) {
	step := domain.NewStep(domain.CapabilityMail, planner.FieldsFor(domain.CapabilityMail))
	step.Slots.Resolve("recipient", "nonsense", domain.ProvenanceGenerated)
	step.Slots.Resolve("subject", "x", domain.ProvenanceGenerated)
	step.Slots.Resolve("body", "short", domain.ProvenanceGenerated)
	d := materialize(t, step)

	res := New().Review(d, step)
	if res.Score >= DeferThreshold {
		t.Fatalf("expected rejection score below %v, got %v", DeferThreshold, res.Score)
	}
	if res.Approved || res.RequiresUser {
		t.Fatalf("rejected draft must be neither approved nor deferred: %+v", res)
	}
	if len(res.Issues) == 0 {
		t.Fatal("expected issues on broken payload")
	}
}

func TestGeneratedRecipientIssueRequiresHumanJudgment(t *testing.T) {
	step := domain.NewStep(domain.CapabilityMail, planner.FieldsFor(domain.CapabilityMail))
	step.Slots.Resolve("recipient", "Hello,\n\nI wanted to share a quick update with you.", domain.ProvenanceGenerated)
	step.Slots.Resolve("subject", "Quarterly budget review", domain.ProvenancePrompted)
	step.Slots.Resolve("body", "Hello John,\n\nThe quarterly numbers are attached for review.\n\nBest regards", domain.ProvenanceGenerated)
	d := materialize(t, step)

	res := New().Review(d, step)
	var recipientIssue *domain.Issue
	for i := range res.Issues {
		if res.Issues[i].Field == "recipient" {
			recipientIssue = &res.Issues[i]
		}
	}
	if recipientIssue == nil {
		t.Fatalf("expected an issue on the invalid recipient, got %+v", res.Issues)
	}
	if !recipientIssue.HumanJudgment {
		t.Fatalf("issue on a generated recipient must require human judgment: %+v", *recipientIssue)
	}
	if res.Approved {
		t.Fatalf("draft with generated prose as recipient must not auto-approve: %+v", res)
	}
}

func TestCRMStructuralChecks(t *testing.T) {
	step := domain.NewStep(domain.CapabilityCRM, planner.FieldsFor(domain.CapabilityCRM))
	step.Slots.Resolve("name", "Jane Doe", domain.ProvenancePrompted)
	step.Slots.Resolve("email", "jane@corp.com", domain.ProvenanceExtracted)
	d := materialize(t, step)

	res := New().Review(d, step)
	if !res.Approved {
		t.Fatalf("expected clean CRM draft approved, got %+v", res)
	}
}

func TestUserApprovedOverride(t *testing.T) {
	step := mailStep(t, domain.ProvenanceGenerated)
	d := materialize(t, step)
	d.Payload["body"] = "Hello John,\n\nPlease review [insert details here] before Friday.\n\nBest regards"

	res := New().Review(d, step)
	if res.Approved {
		t.Fatalf("precondition: draft should not auto-approve: %+v", res)
	}

	confirmed := res.UserApproved()
	if !confirmed.Approved || confirmed.ApprovedBy != "user" {
		t.Fatalf("expected user approval, got %+v", confirmed)
	}
	if res.Approved {
		t.Fatal("UserApproved must not mutate the original result")
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	step := mailStep(t, domain.ProvenanceGenerated)
	d := materialize(t, step)

	r := New()
	first := r.Review(d, step)
	second := r.Review(d, step)
	if first.Score != second.Score || first.Approved != second.Approved {
		t.Fatalf("review must be deterministic: %+v vs %+v", first, second)
	}
}
