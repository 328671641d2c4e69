// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"reflect"
	"testing"
	"time"

	"github.com/adiadia/concierge/internal/domain"
)

func fixedNow() time.Time {
	return time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
}

func mailSpecs() []domain.FieldSpec {
	return []domain.FieldSpec{
		{Name: "recipient", Type: domain.FieldAddress, Required: true},
		{Name: "subject", Type: domain.FieldFreeText, Required: true},
		{Name: "body", Type: domain.FieldFreeText, Required: true, Semantic: true},
	}
}

func TestExtractRecipient(t *testing.T) {
	e := New(fixedNow)

	slots := e.Extract("Send an email to john@example.com about the project update", mailSpecs())
	if got := slots.Value("recipient"); got != "john@example.com" {
		t.Fatalf("expected recipient john@example.com, got %q", got)
	}
	if p, _ := slots.ProvenanceOf("recipient"); p != domain.ProvenanceExtracted {
		t.Fatalf("expected extracted provenance, got %s", p)
	}
	if slots.Resolved("subject") {
		t.Fatal("subject should stay unresolved without a subject phrase")
	}
	if slots.Resolved("body") {
		t.Fatal("semantic body must never be extracted")
	}
}

func TestExtractAmbiguousEmailUnresolved(t *testing.T) {
	e := New(fixedNow)

	slots := e.Extract("email john@example.com and jane@example.com", mailSpecs())
	if slots.Resolved("recipient") {
		t.Fatal("two distinct addresses must leave the field unresolved")
	}

	// Duplicates of the same address count as one candidate.
	slots = e.Extract("email john@example.com, yes john@example.com", mailSpecs())
	if got := slots.Value("recipient"); got != "john@example.com" {
		t.Fatalf("expected duplicate address to resolve, got %q", got)
	}
}

func TestExtractSubjectPhrase(t *testing.T) {
	e := New(fixedNow)

	cases := map[string]string{
		"email john@example.com, subject: Quarterly Review":        "Quarterly Review",
		"email john@example.com subject would be Budget Plan":      "Budget Plan",
		"subject is Launch Update with 5 bullet points from JP.md": "Launch Update",
	}
	for text, want := range cases {
		slots := e.Extract(text, mailSpecs())
		if got := slots.Value("subject"); got != want {
			t.Fatalf("text %q: expected subject %q, got %q", text, want, got)
		}
	}
}

func TestExtractDeterministic(t *testing.T) {
	e := New(fixedNow)
	text := "Send an email to john@example.com, subject: Update, tomorrow"

	first := e.Extract(text, mailSpecs())
	second := e.Extract(text, mailSpecs())
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical output for identical input: %v vs %v", first, second)
	}
}

func TestExtractDates(t *testing.T) {
	e := New(fixedNow)
	specs := []domain.FieldSpec{{Name: "date", Type: domain.FieldDateTime, Required: true}}

	slots := e.Extract("what slots are available tomorrow", specs)
	if got := slots.Value("date"); got != "2025-06-03" {
		t.Fatalf("expected tomorrow to resolve to 2025-06-03, got %q", got)
	}

	slots = e.Extract("check the calendar for today", specs)
	if got := slots.Value("date"); got != "2025-06-02" {
		t.Fatalf("expected today to resolve to 2025-06-02, got %q", got)
	}

	slots = e.Extract("book 2025-07-01 please", specs)
	if got := slots.Value("date"); got != "2025-07-01" {
		t.Fatalf("expected literal date, got %q", got)
	}

	slots = e.Extract("today or tomorrow works", specs)
	if slots.Resolved("date") {
		t.Fatal("two date candidates must leave the field unresolved")
	}
}

func TestExtractContactName(t *testing.T) {
	e := New(fixedNow)
	specs := []domain.FieldSpec{
		{Name: "name", Type: domain.FieldIdentifier, Required: true},
		{Name: "email", Type: domain.FieldAddress, Required: true},
	}

	slots := e.Extract("add a contact, name is John Smith and email john@corp.com", specs)
	if got := slots.Value("name"); got != "John Smith" {
		t.Fatalf("expected name John Smith, got %q", got)
	}
	if got := slots.Value("email"); got != "john@corp.com" {
		t.Fatalf("expected email john@corp.com, got %q", got)
	}
}

func TestContentRequirement(t *testing.T) {
	cases := map[string]string{
		"send 5 bullet points from my resume": "5 bullet points",
		"email a summary of JP.txt":           "summary",
		"keep it brief":                       "brief",
		"share the key highlights":            "highlights",
		"just say hi":                         "",
	}
	for text, want := range cases {
		if got := ContentRequirement(text); got != want {
			t.Fatalf("text %q: expected %q, got %q", text, want, got)
		}
	}
}

func TestDocumentReference(t *testing.T) {
	if ref, ok := DocumentReference("summarize JP.txt for me"); !ok || ref != "JP.txt" {
		t.Fatalf("expected JP.txt, got %q ok=%v", ref, ok)
	}
	if ref, ok := DocumentReference("use the document I uploaded"); !ok || ref != "" {
		t.Fatalf("expected latest-document marker, got %q ok=%v", ref, ok)
	}
	if _, ok := DocumentReference("no files here"); ok {
		t.Fatal("expected no document reference")
	}
}
