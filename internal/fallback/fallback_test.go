// SPDX-License-Identifier: Apache-2.0

package fallback

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/adiadia/concierge/internal/domain"
)

type fakeGenerator struct {
	text   string
	err    error
	prompt string
	budget int
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string, maxLength int) (string, error) {
	f.prompt = prompt
	f.budget = maxLength
	return f.text, f.err
}

type hangingGenerator struct{}

func (hangingGenerator) Generate(ctx context.Context, prompt string, maxLength int) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func bodySpec() domain.FieldSpec {
	return domain.FieldSpec{Name: "body", Type: domain.FieldFreeText, Required: true, Semantic: true}
}

func TestFillSetsGeneratedProvenance(t *testing.T) {
	gen := &fakeGenerator{text: "Hello John,\n\nHere is the project update you were waiting for.\n\nBest regards"}
	f := New(gen, Options{})

	step := domain.NewStep(domain.CapabilityMail, []domain.FieldSpec{bodySpec()})
	err := f.Fill(context.Background(), step, bodySpec(), FieldContext{Query: "send the project update"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p, _ := step.Slots.ProvenanceOf("body"); p != domain.ProvenanceGenerated {
		t.Fatalf("expected generated provenance, got %s", p)
	}
	if !strings.Contains(gen.prompt, "send the project update") {
		t.Fatal("expected the query to appear in the prompt")
	}
	if gen.budget <= 0 {
		t.Fatal("expected a positive generation budget")
	}
}

func TestFillTimeoutLeavesFieldUnresolved(t *testing.T) {
	f := New(hangingGenerator{}, Options{Timeout: 20 * time.Millisecond})

	step := domain.NewStep(domain.CapabilityMail, []domain.FieldSpec{bodySpec()})
	err := f.Fill(context.Background(), step, bodySpec(), FieldContext{Query: "summary please"})
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
	if step.Slots.Resolved("body") {
		t.Fatal("field must stay unresolved after a timeout")
	}
}

func TestFillTransportErrorWrapped(t *testing.T) {
	f := New(&fakeGenerator{err: errors.New("boom")}, Options{})

	step := domain.NewStep(domain.CapabilityMail, []domain.FieldSpec{bodySpec()})
	err := f.Fill(context.Background(), step, bodySpec(), FieldContext{Query: "anything"})
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
}

func TestVetRejectsAssistantVoice(t *testing.T) {
	gen := &fakeGenerator{text: "Hello,\n\nThe user asked me to send you this update.\n\nBest regards"}
	f := New(gen, Options{})

	step := domain.NewStep(domain.CapabilityMail, []domain.FieldSpec{bodySpec()})
	err := f.Fill(context.Background(), step, bodySpec(), FieldContext{Query: "update email"})
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Fatalf("expected rejection of assistant voice, got %v", err)
	}
}

func TestVetRejectsMissingGreetingOrClosing(t *testing.T) {
	cases := []string{
		"Here is the update, it covers everything important this quarter.",
		"Hello,\n\nHere is the update, it covers everything important this quarter.",
	}
	for _, text := range cases {
		f := New(&fakeGenerator{text: text}, Options{})
		step := domain.NewStep(domain.CapabilityMail, []domain.FieldSpec{bodySpec()})
		if err := f.Fill(context.Background(), step, bodySpec(), FieldContext{Query: "update"}); !errors.Is(err, domain.ErrGenerationFailed) {
			t.Fatalf("text %q: expected structural rejection, got %v", text, err)
		}
	}
}

func TestVetStripsSubjectQuotes(t *testing.T) {
	f := New(&fakeGenerator{text: `"Quarterly Results Overview"`}, Options{})

	spec := domain.FieldSpec{Name: "subject", Type: domain.FieldFreeText, Required: true, Semantic: true}
	step := domain.NewStep(domain.CapabilityMail, []domain.FieldSpec{spec})
	if err := f.Fill(context.Background(), step, spec, FieldContext{Query: "results email"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := step.Slots.Value("subject"); got != "Quarterly Results Overview" {
		t.Fatalf("expected quotes stripped, got %q", got)
	}
}

func TestTemplateGeneratorBodyPassesVetting(t *testing.T) {
	f := New(TemplateGenerator{}, Options{})

	step := domain.NewStep(domain.CapabilityMail, []domain.FieldSpec{bodySpec()})
	err := f.Fill(context.Background(), step, bodySpec(), FieldContext{
		Query:    "email the team about the launch",
		Slots:    step.Slots,
		Document: "The launch went well. Sales doubled. The team shipped on time.",
	})
	if err != nil {
		t.Fatalf("template output should pass vetting, got %v", err)
	}
	if !step.Slots.Resolved("body") {
		t.Fatal("expected body to be resolved")
	}
}
