// SPDX-License-Identifier: Apache-2.0

package gate

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/adiadia/concierge/internal/domain"
	"github.com/adiadia/concierge/internal/dispatch"
	"github.com/google/uuid"
)

type scriptedDispatcher struct {
	calls int
	errs  []error
}

func (s *scriptedDispatcher) Execute(_ context.Context, c domain.CapabilityKind, _ map[string]string) (domain.ExecutionOutcome, error) {
	s.calls++
	if s.calls <= len(s.errs) && s.errs[s.calls-1] != nil {
		return domain.ExecutionOutcome{}, s.errs[s.calls-1]
	}
	return domain.ExecutionOutcome{Capability: c, Success: true, Reference: "ref-1"}, nil
}

func noSleep(g *Gate) { g.sleep = func(context.Context, time.Duration) error { return nil } }

func testDraft() *domain.Draft {
	return &domain.Draft{
		ID:         uuid.New(),
		StepID:     uuid.New(),
		Capability: domain.CapabilityMail,
		Attempt:    1,
		Payload:    map[string]string{"recipient": "a@b.com"},
	}
}

func approved(d *domain.Draft) domain.ReviewResult {
	return domain.ReviewResult{DraftID: d.ID, Score: 0.95, Approved: true, ApprovedBy: "policy"}
}

func TestUnapprovedDraftNeverReachesDispatcher(t *testing.T) {
	sd := &scriptedDispatcher{}
	g := New(sd, Options{})
	d := testDraft()

	reviews := []domain.ReviewResult{
		{DraftID: d.ID, Score: 0.95},              // high score but not approved
		{DraftID: d.ID, Score: 0.7, RequiresUser: true},
		{DraftID: d.ID, Score: 0.2},
	}
	for _, r := range reviews {
		_, err := g.Dispatch(context.Background(), d, r)
		if !errors.Is(err, domain.ErrNotApproved) {
			t.Fatalf("expected ErrNotApproved for %+v, got %v", r, err)
		}
	}
	if sd.calls != 0 {
		t.Fatalf("dispatcher must never be called without approval, got %d calls", sd.calls)
	}
}

func TestOnlyApprovedMatchingReviewsDispatch(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 200; i++ {
		sd := &scriptedDispatcher{}
		g := New(sd, Options{})
		noSleep(g)
		d := testDraft()

		r := domain.ReviewResult{
			DraftID:  d.ID,
			Score:    rng.Float64(),
			Approved: rng.Intn(2) == 0,
		}
		if rng.Intn(5) == 0 {
			r.DraftID = uuid.New()
		}
		if r.Approved {
			r.ApprovedBy = "policy"
		}

		_, err := g.Dispatch(context.Background(), d, r)
		if r.Approved && r.DraftID == d.ID {
			if err != nil {
				t.Fatalf("case %d: approved review %+v: unexpected error %v", i, r, err)
			}
			if sd.calls != 1 {
				t.Fatalf("case %d: expected one dispatch, got %d", i, sd.calls)
			}
			continue
		}
		if !errors.Is(err, domain.ErrNotApproved) {
			t.Fatalf("case %d: review %+v: expected ErrNotApproved, got %v", i, r, err)
		}
		if sd.calls != 0 {
			t.Fatalf("case %d: dispatcher called without approval (%d calls)", i, sd.calls)
		}
	}
}

func TestReviewMustCoverTheDraft(t *testing.T) {
	sd := &scriptedDispatcher{}
	g := New(sd, Options{})
	d := testDraft()

	other := domain.ReviewResult{DraftID: uuid.New(), Score: 0.95, Approved: true}
	if _, err := g.Dispatch(context.Background(), d, other); !errors.Is(err, domain.ErrNotApproved) {
		t.Fatalf("expected ErrNotApproved for mismatched review, got %v", err)
	}
	if sd.calls != 0 {
		t.Fatal("dispatcher called despite mismatched review")
	}
}

func TestTransientFailureRetriesThenSucceeds(t *testing.T) {
	transient := fmt.Errorf("%w: provider 503", domain.ErrDispatchTransient)
	sd := &scriptedDispatcher{errs: []error{transient, transient}}
	g := New(sd, Options{})
	noSleep(g)
	d := testDraft()

	outcome, err := g.Dispatch(context.Background(), d, approved(d))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Success || outcome.DraftID != d.ID || outcome.StepID != d.StepID {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if sd.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", sd.calls)
	}
}

func TestTransientFailureExhaustsRetries(t *testing.T) {
	transient := fmt.Errorf("%w: provider 503", domain.ErrDispatchTransient)
	sd := &scriptedDispatcher{errs: []error{transient, transient, transient}}
	g := New(sd, Options{MaxAttempts: 3})
	noSleep(g)
	d := testDraft()

	outcome, err := g.Dispatch(context.Background(), d, approved(d))
	if !errors.Is(err, domain.ErrDispatchTransient) {
		t.Fatalf("expected transient error surfaced, got %v", err)
	}
	if outcome.Success || outcome.Failure == "" {
		t.Fatalf("expected failed outcome with reason, got %+v", outcome)
	}
	if sd.calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", sd.calls)
	}
}

func TestPermanentFailureDoesNotRetry(t *testing.T) {
	permanent := fmt.Errorf("%w: recipient rejected", domain.ErrDispatchPermanent)
	sd := &scriptedDispatcher{errs: []error{permanent}}
	g := New(sd, Options{})
	noSleep(g)
	d := testDraft()

	outcome, err := g.Dispatch(context.Background(), d, approved(d))
	if !errors.Is(err, domain.ErrDispatchPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if sd.calls != 1 {
		t.Fatalf("permanent failure must not retry, got %d calls", sd.calls)
	}
	if outcome.Success {
		t.Fatalf("expected failed outcome, got %+v", outcome)
	}
}

func TestMemoryDispatcherRecordsExecutions(t *testing.T) {
	fixed := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	m := dispatch.NewMemory(func() time.Time { return fixed })
	g := New(m, Options{Now: func() time.Time { return fixed }})
	d := testDraft()

	outcome, err := g.Dispatch(context.Background(), d, approved(d))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Reference == "" || !outcome.FinishedAt.Equal(fixed) {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if got := m.Executed(); len(got) != 1 || got[0].Capability != domain.CapabilityMail {
		t.Fatalf("expected one recorded execution, got %+v", got)
	}
}
