// SPDX-License-Identifier: Apache-2.0

package planner

import (
	"errors"
	"testing"
	"time"

	"github.com/adiadia/concierge/internal/domain"
)

func TestClassifySingleCapability(t *testing.T) {
	cases := map[string]domain.CapabilityKind{
		"Send an email to john@example.com about the project": domain.CapabilityMail,
		"send mail to the team":                               domain.CapabilityMail,
		"add a contact for jane@corp.com":                     domain.CapabilityCRM,
		"create a contact named John":                         domain.CapabilityCRM,
		"what meeting slots are available tomorrow":           domain.CapabilityScheduling,
		"share my calendar availability":                      domain.CapabilityScheduling,
	}
	for text, want := range cases {
		got := Classify(text)
		if len(got) != 1 || got[0] != want {
			t.Fatalf("text %q: expected [%s], got %v", text, want, got)
		}
	}
}

func TestClassifyCRMBeatsMailOnContactWords(t *testing.T) {
	got := Classify("add john to the crm please")
	if len(got) != 1 || got[0] != domain.CapabilityCRM {
		t.Fatalf("expected CRM, got %v", got)
	}
}

func TestClassifyMultipleExplicitActions(t *testing.T) {
	got := Classify("send an email to x@a.com and add a contact for Jane at jane@b.com")
	if len(got) != 2 {
		t.Fatalf("expected 2 capabilities, got %v", got)
	}
	if got[0] != domain.CapabilityMail || got[1] != domain.CapabilityCRM {
		t.Fatalf("expected mail then crm by mention order, got %v", got)
	}

	got = Classify("add a contact for Jane and then send an email to x@a.com")
	if len(got) != 2 || got[0] != domain.CapabilityCRM || got[1] != domain.CapabilityMail {
		t.Fatalf("expected crm then mail, got %v", got)
	}
}

func TestClassifySchedulingCombinations(t *testing.T) {
	got := Classify("schedule a meeting with the team and email the notes to everyone")
	if len(got) != 2 || got[0] != domain.CapabilityScheduling || got[1] != domain.CapabilityMail {
		t.Fatalf("expected scheduling then mail, got %v", got)
	}

	got = Classify("send an email to x@a.com and check my calendar availability")
	if len(got) != 2 || got[0] != domain.CapabilityMail || got[1] != domain.CapabilityScheduling {
		t.Fatalf("expected mail then scheduling, got %v", got)
	}
}

func TestClassifyMeetingAsContentStaysMail(t *testing.T) {
	got := Classify("send an email to x@a.com about the meeting")
	if len(got) != 1 || got[0] != domain.CapabilityMail {
		t.Fatalf("expected mail only, got %v", got)
	}
}

func TestClassifyUnknown(t *testing.T) {
	if got := Classify("how is the weather"); got != nil {
		t.Fatalf("expected no capability, got %v", got)
	}
}

func TestPlanShape(t *testing.T) {
	p := New()
	req := domain.NewRequest("send an email to john@example.com", time.Now())

	plan, err := p.Plan(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.RequestID != req.ID {
		t.Fatal("plan must reference its request")
	}
	if len(plan.Steps) != 1 {
		t.Fatalf("expected exactly one step, got %d", len(plan.Steps))
	}
	step := plan.Steps[0]
	if step.Capability != domain.CapabilityMail {
		t.Fatalf("expected mail step, got %s", step.Capability)
	}
	if len(step.Fields) != 3 {
		t.Fatalf("expected 3 mail fields, got %d", len(step.Fields))
	}
}

func TestPlanUnknownIntent(t *testing.T) {
	p := New()
	_, err := p.Plan(domain.NewRequest("tell me a joke", time.Now()))
	if !errors.Is(err, domain.ErrUnknownIntent) {
		t.Fatalf("expected ErrUnknownIntent, got %v", err)
	}
}

func TestValidateAddress(t *testing.T) {
	if _, err := ValidateAddress("not-an-email"); !errors.Is(err, domain.ErrValidationFailed) {
		t.Fatalf("expected validation failure, got %v", err)
	}
	got, err := ValidateAddress("it is john@example.com thanks")
	if err != nil || got != "john@example.com" {
		t.Fatalf("expected normalized address, got %q err=%v", got, err)
	}
	if _, err := ValidateAddress("a@b.com or c@d.com"); !errors.Is(err, domain.ErrValidationFailed) {
		t.Fatalf("expected rejection of two addresses, got %v", err)
	}
}

func TestValidateSubjectStripsPrefix(t *testing.T) {
	got, err := ValidateSubject("subject: Budget Review,")
	if err != nil || got != "Budget Review" {
		t.Fatalf("expected stripped subject, got %q err=%v", got, err)
	}
	if _, err := ValidateSubject("   "); !errors.Is(err, domain.ErrValidationFailed) {
		t.Fatalf("expected empty subject rejection, got %v", err)
	}
}

func TestValidateNameStripsPrefix(t *testing.T) {
	got, err := ValidateName(`name is "John Doe"`)
	if err != nil || got != "John Doe" {
		t.Fatalf("expected stripped name, got %q err=%v", got, err)
	}
}

func TestValidateDate(t *testing.T) {
	got, err := ValidateDate("2025-07-01")
	if err != nil || got != "2025-07-01" {
		t.Fatalf("expected iso date, got %q err=%v", got, err)
	}
	if _, err := ValidateDate("whenever"); !errors.Is(err, domain.ErrValidationFailed) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if got, err := ValidateDate("today"); err != nil || got != time.Now().Format("2006-01-02") {
		t.Fatalf("expected today normalized, got %q err=%v", got, err)
	}
}
