// SPDX-License-Identifier: Apache-2.0

// Package pipeline drives a request from free text to executed actions:
// plan, extract, slot-fill, generate, draft, review, gate. Each request
// runs single threaded; the only suspension points are a pending
// dialogue question and a pending user confirmation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adiadia/concierge/internal/dialogue"
	"github.com/adiadia/concierge/internal/documents"
	"github.com/adiadia/concierge/internal/domain"
	"github.com/adiadia/concierge/internal/draft"
	"github.com/adiadia/concierge/internal/extract"
	"github.com/adiadia/concierge/internal/fallback"
	"github.com/adiadia/concierge/internal/gate"
	"github.com/adiadia/concierge/internal/metrics"
	"github.com/adiadia/concierge/internal/notify"
	"github.com/adiadia/concierge/internal/planner"
	"github.com/adiadia/concierge/internal/recorder"
	"github.com/adiadia/concierge/internal/review"
)

// MaxRedrafts bounds how many times a rejected draft is rebuilt before
// the step fails.
const MaxRedrafts = 2

// Reviewer scores a draft against its step. Satisfied by
// review.Reviewer; a deps field so policy can be swapped out.
type Reviewer interface {
	Review(d *domain.Draft, step *domain.Step) domain.ReviewResult
}

type Deps struct {
	Planner   *planner.Planner
	Extractor *extract.Extractor
	Drafter   *draft.Generator
	Reviewer  Reviewer
	Gate      *gate.Gate
	Fallback  *fallback.Fallback
	Recorder  recorder.Recorder
	Documents *documents.Store
	Notifier  *notify.Notifier
	Logger    *slog.Logger
	Now       func() time.Time
}

type Pipeline struct {
	deps Deps
}

func New(deps Deps) *Pipeline {
	if deps.Planner == nil {
		deps.Planner = planner.New()
	}
	if deps.Extractor == nil {
		deps.Extractor = extract.New(deps.Now)
	}
	if deps.Drafter == nil {
		deps.Drafter = draft.New()
	}
	if deps.Reviewer == nil {
		deps.Reviewer = review.New()
	}
	if deps.Recorder == nil {
		deps.Recorder = recorder.Discard{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Pipeline{deps: deps}
}

type TurnKind string

const (
	// TurnAsk means the dialogue needs one more answer from the user.
	TurnAsk TurnKind = "ASK"
	// TurnConfirm means a draft sits in the defer band and needs an
	// explicit user decision before the gate will take it.
	TurnConfirm TurnKind = "CONFIRM"
	// TurnDone means the request reached a terminal status.
	TurnDone TurnKind = "DONE"
)

// Turn is what the pipeline hands back to a surface after each resume.
type Turn struct {
	Kind        TurnKind
	Field       string
	Question    string
	RetryNotice string
	Draft       *domain.Draft
	Review      *domain.ReviewResult
	Status      domain.RequestStatus
	Message     string
	Outcomes    []domain.ExecutionOutcome
}

type pendingConfirm struct {
	draft  *domain.Draft
	review domain.ReviewResult
}

// Session holds the request-scoped state between suspensions. All
// methods serialize on the session mutex; nothing here is shared
// across requests.
type Session struct {
	mu sync.Mutex

	p       *Pipeline
	req     domain.Request
	status  domain.RequestStatus
	plan    *domain.Plan
	stepIdx int
	attempt int

	dlg     *dialogue.Dialogue
	confirm *pendingConfirm

	drafts   []domain.Draft
	reviews  []domain.ReviewResult
	outcomes []domain.ExecutionOutcome

	message  string
	recorded bool
}

// Begin plans a new request and runs it until the first suspension or
// terminal status.
func (p *Pipeline) Begin(ctx context.Context, text string) (*Session, Turn) {
	s := &Session{
		p:       p,
		req:     domain.NewRequest(text, p.deps.Now()),
		status:  domain.RequestRunning,
		attempt: 1,
	}

	p.deps.Logger.Info("request received", "request_id", s.req.ID)

	plan, err := p.deps.Planner.Plan(s.req)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownIntent) {
			return s, s.finish(ctx, domain.RequestFailed,
				"I could not determine what action you want. Try asking for an email, a contact, or calendar availability.")
		}
		return s, s.finish(ctx, domain.RequestFailed, err.Error())
	}
	s.plan = plan

	for _, step := range plan.Steps {
		for name, slot := range p.deps.Extractor.Extract(s.req.Text, step.Fields) {
			step.Slots.Resolve(name, slot.Value, slot.Provenance)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s, s.advance(ctx)
}

// ID returns the request identifier this session serves.
func (s *Session) ID() uuid.UUID { return s.req.ID }

// Request returns the immutable request this session serves.
func (s *Session) Request() domain.Request { return s.req }

// Status returns the current request status.
func (s *Session) Status() domain.RequestStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Snapshot is a point-in-time view of a session for status surfaces.
type Snapshot struct {
	RequestID            uuid.UUID                 `json:"request_id"`
	Text                 string                    `json:"text"`
	Status               domain.RequestStatus      `json:"status"`
	PlanSummary          string                    `json:"plan_summary"`
	PendingField         string                    `json:"pending_field,omitempty"`
	PendingQuestion      string                    `json:"pending_question,omitempty"`
	AwaitingConfirmation bool                      `json:"awaiting_confirmation"`
	Message              string                    `json:"message,omitempty"`
	Outcomes             []domain.ExecutionOutcome `json:"outcomes,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		RequestID:            s.req.ID,
		Text:                 s.req.Text,
		Status:               s.status,
		PlanSummary:          domain.SummarizePlan(s.plan),
		AwaitingConfirmation: s.confirm != nil,
		Message:              s.message,
		Outcomes:             append([]domain.ExecutionOutcome(nil), s.outcomes...),
	}
	if s.dlg != nil {
		if pending, ok := s.dlg.Pending(); ok {
			snap.PendingField = pending.Name
			snap.PendingQuestion = pending.Prompt
		}
	}
	return snap
}

// Answer resumes a suspended session with one user reply. When a
// confirmation is pending the reply is read as an approve/decline
// decision; otherwise it feeds the dialogue.
func (s *Session) Answer(ctx context.Context, text string) Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Terminal() {
		return s.doneTurn()
	}
	if s.confirm != nil {
		return s.resolveConfirm(ctx, isAffirmative(text))
	}
	if s.dlg == nil {
		return s.doneTurn()
	}

	out := s.dlg.Answer(text)
	switch out.State {
	case dialogue.StateAwaitingField:
		s.status = domain.RequestWaiting
		return Turn{
			Kind:        TurnAsk,
			Field:       out.Field,
			Question:    out.Prompt,
			RetryNotice: out.RetryNotice,
			Status:      s.status,
		}
	case dialogue.StateAbandoned:
		// Last resort: one generative attempt for the field the user
		// could not provide, then give up on the request. Only content
		// fields qualify; addresses, dates and names are never invented.
		step := s.currentStep()
		if step != nil && s.p.deps.Fallback != nil && out.FailedField.Semantic {
			if err := s.p.deps.Fallback.Fill(ctx, step, out.FailedField, s.fieldContext(step)); err == nil {
				s.dlg = dialogue.New(step, dialogue.Options{Logger: s.p.deps.Logger})
				s.status = domain.RequestRunning
				return s.advance(ctx)
			}
		}
		return s.finish(ctx, domain.RequestAbandoned,
			fmt.Sprintf("I could not get a usable value for %q and have stopped this request.", out.Field))
	default: // complete
		s.dlg = nil
		s.status = domain.RequestRunning
		return s.advance(ctx)
	}
}

// Confirm resolves a pending defer-band review with an explicit user
// decision.
func (s *Session) Confirm(ctx context.Context, approve bool) Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Terminal() {
		return s.doneTurn()
	}
	if s.confirm == nil {
		return s.advance(ctx)
	}
	return s.resolveConfirm(ctx, approve)
}

// Cancel abandons the request. Observed only between pipeline stages,
// never mid-operation.
func (s *Session) Cancel(ctx context.Context) Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Terminal() {
		return s.doneTurn()
	}
	if s.dlg != nil {
		s.dlg.Cancel()
	}
	return s.finish(ctx, domain.RequestAbandoned, "Request canceled.")
}

// advance runs the plan forward until it suspends or finishes. Caller
// holds the session mutex.
func (s *Session) advance(ctx context.Context) Turn {
	for s.stepIdx < len(s.plan.Steps) {
		if err := ctx.Err(); err != nil {
			return s.finish(ctx, domain.RequestAbandoned, "Request canceled.")
		}

		step := s.plan.Steps[s.stepIdx]
		step.Status = domain.StepRunning

		if s.dlg == nil {
			s.dlg = dialogue.New(step, dialogue.Options{Logger: s.p.deps.Logger})
		}
		if pending, ok := s.dlg.Pending(); ok {
			s.status = domain.RequestWaiting
			return Turn{
				Kind:     TurnAsk,
				Field:    pending.Name,
				Question: pending.Prompt,
				Status:   s.status,
			}
		}
		s.dlg = nil

		s.fillSemanticFields(ctx, step)
		if step.Status == domain.StepFailed {
			s.nextStep()
			continue
		}

		turn, suspended := s.draftAndReview(ctx, step)
		if suspended {
			return turn
		}
		s.nextStep()
	}

	return s.finishPlan(ctx)
}

// fillSemanticFields resolves required semantic fields through the
// generative fallback. Failure degrades the step, never the process.
func (s *Session) fillSemanticFields(ctx context.Context, step *domain.Step) {
	for _, f := range step.Fields {
		if !f.Semantic || !f.Required || step.Slots.Resolved(f.Name) {
			continue
		}
		if s.p.deps.Fallback == nil {
			s.failStep(step, fmt.Sprintf("no generator available for field %q", f.Name))
			return
		}

		started := s.p.deps.Now()
		err := s.p.deps.Fallback.Fill(ctx, step, f, s.fieldContext(step))
		metrics.ObserveGenerationDuration(s.p.deps.Now().Sub(started))
		if err != nil {
			s.plan.Incomplete = true
			s.failStep(step, fmt.Sprintf("could not generate %q: %v", f.Name, err))
			return
		}
	}
}

// draftAndReview materializes, reviews and dispatches the current step,
// re-drafting after rejection up to the bound. Returns a suspended turn
// when the review needs the user.
func (s *Session) draftAndReview(ctx context.Context, step *domain.Step) (Turn, bool) {
	for {
		d, err := s.p.deps.Drafter.Materialize(step, s.attempt)
		if err != nil {
			s.failStep(step, err.Error())
			return Turn{}, false
		}
		s.drafts = append(s.drafts, *d)

		rv := s.p.deps.Reviewer.Review(d, step)
		s.reviews = append(s.reviews, rv)
		metrics.ObserveReviewScore(rv.Score)

		switch {
		case rv.Approved:
			metrics.IncReviewDecision("approved")
			s.dispatch(ctx, step, d, rv)
			return Turn{}, false

		case rv.RequiresUser:
			metrics.IncReviewDecision("deferred")
			s.confirm = &pendingConfirm{draft: d, review: rv}
			s.status = domain.RequestWaiting
			return Turn{
				Kind:   TurnConfirm,
				Draft:  d,
				Review: &rv,
				Status: s.status,
				Message: fmt.Sprintf(
					"This %s draft scored %.2f and needs your judgment before it is sent.",
					step.Capability, rv.Score),
			}, true

		default:
			metrics.IncReviewDecision("rejected")
			if s.attempt > MaxRedrafts {
				s.failStep(step, fmt.Sprintf(
					"%v: draft rejected %d times (last score %.2f)",
					domain.ErrReviewRejected, s.attempt, rv.Score))
				return Turn{}, false
			}
			s.p.deps.Logger.Info("draft rejected, re-drafting",
				"request_id", s.req.ID,
				"step_id", step.ID,
				"attempt", s.attempt,
				"score", rv.Score,
			)
			s.regenerate(ctx, step, rv)
			s.attempt++
		}
	}
}

// regenerate clears generated slots the reviewer flagged and fills them
// again. Extracted and prompted values are never discarded.
func (s *Session) regenerate(ctx context.Context, step *domain.Step, rv domain.ReviewResult) {
	for _, issue := range rv.Issues {
		if issue.Field != "" {
			step.Slots.Clear(issue.Field)
		}
	}
	if s.p.deps.Fallback == nil {
		return
	}
	for _, f := range step.Fields {
		if f.Required && f.Semantic && !step.Slots.Resolved(f.Name) {
			_ = s.p.deps.Fallback.Fill(ctx, step, f, s.fieldContext(step))
		}
	}
}

func (s *Session) resolveConfirm(ctx context.Context, approve bool) Turn {
	pc := s.confirm
	s.confirm = nil
	s.status = domain.RequestRunning

	step := s.currentStep()
	if step == nil {
		return s.finish(ctx, domain.RequestFailed, "internal state lost for pending confirmation")
	}

	if !approve {
		s.failStep(step, "draft declined by user")
		s.nextStep()
		return s.advance(ctx)
	}

	rv := pc.review.UserApproved()
	s.reviews = append(s.reviews, rv)
	s.dispatch(ctx, step, pc.draft, rv)
	s.nextStep()
	return s.advance(ctx)
}

func (s *Session) dispatch(ctx context.Context, step *domain.Step, d *domain.Draft, rv domain.ReviewResult) {
	outcome, err := s.p.deps.Gate.Dispatch(ctx, d, rv)
	s.outcomes = append(s.outcomes, outcome)
	if err != nil {
		metrics.IncDispatch(string(step.Capability), "failure")
		step.Status = domain.StepFailed
		s.p.deps.Logger.Error("step dispatch failed",
			"request_id", s.req.ID,
			"step_id", step.ID,
			"capability", step.Capability,
			"error", err,
		)
		return
	}
	metrics.IncDispatch(string(step.Capability), "success")
	step.Status = domain.StepSuccess
	s.p.deps.Logger.Info("step executed",
		"request_id", s.req.ID,
		"step_id", step.ID,
		"capability", step.Capability,
		"reference", outcome.Reference,
	)
}

func (s *Session) failStep(step *domain.Step, reason string) {
	step.Status = domain.StepFailed
	s.p.deps.Logger.Warn("step failed",
		"request_id", s.req.ID,
		"step_id", step.ID,
		"capability", step.Capability,
		"reason", reason,
	)
	if s.message == "" {
		s.message = reason
	}
}

func (s *Session) nextStep() {
	s.stepIdx++
	s.attempt = 1
	s.dlg = nil
}

func (s *Session) currentStep() *domain.Step {
	if s.plan == nil || s.stepIdx >= len(s.plan.Steps) {
		return nil
	}
	return s.plan.Steps[s.stepIdx]
}

func (s *Session) finishPlan(ctx context.Context) Turn {
	status := domain.RequestSuccess
	message := "All planned actions completed."
	for _, step := range s.plan.Steps {
		if step.Status != domain.StepSuccess {
			status = domain.RequestFailed
			message = "Some planned actions did not complete."
			if s.message != "" {
				message = s.message
			}
			break
		}
	}
	return s.finish(ctx, status, message)
}

// finish moves the session to a terminal status exactly once, records
// the interaction and fires the terminal webhook.
func (s *Session) finish(ctx context.Context, status domain.RequestStatus, message string) Turn {
	s.status = status
	if message != "" {
		s.message = message
	}
	if s.recorded {
		return s.doneTurn()
	}
	s.recorded = true

	metrics.IncRequestStatus(string(status))

	finishedAt := s.p.deps.Now()
	rec := domain.InteractionRecord{
		RequestID:   s.req.ID,
		Query:       s.req.Text,
		Status:      status,
		PlanSummary: domain.SummarizePlan(s.plan),
		Drafts:      s.drafts,
		Reviews:     s.reviews,
		Outcomes:    s.outcomes,
		Sentiment:   domain.DeriveSentiment(status, s.outcomes),
		Tags:        s.planTags(),
		CreatedAt:   finishedAt,
	}
	if _, err := s.p.deps.Recorder.Record(ctx, rec); err != nil {
		s.p.deps.Logger.Error("interaction record failed",
			"request_id", s.req.ID,
			"error", err,
		)
	}

	if s.p.deps.Notifier != nil && s.p.deps.Notifier.Enabled() {
		s.p.deps.Notifier.DeliverTerminal(ctx, s.req.ID, status, finishedAt)
	}

	s.p.deps.Logger.Info("request finished",
		"request_id", s.req.ID,
		"status", status,
	)
	return s.doneTurn()
}

func (s *Session) doneTurn() Turn {
	return Turn{
		Kind:     TurnDone,
		Status:   s.status,
		Message:  s.message,
		Outcomes: append([]domain.ExecutionOutcome(nil), s.outcomes...),
	}
}

func (s *Session) planTags() []string {
	if s.plan == nil {
		return nil
	}
	seen := map[domain.CapabilityKind]bool{}
	var tags []string
	for _, step := range s.plan.Steps {
		if !seen[step.Capability] {
			seen[step.Capability] = true
			tags = append(tags, string(step.Capability))
		}
	}
	return tags
}

// fieldContext assembles everything the fallback may ground a prompt
// on, including a referenced document when one is available.
func (s *Session) fieldContext(step *domain.Step) fallback.FieldContext {
	fc := fallback.FieldContext{
		Query:       s.req.Text,
		Slots:       step.Slots,
		Requirement: extract.ContentRequirement(s.req.Text),
	}
	if s.p.deps.Documents == nil {
		return fc
	}

	name, ok := extract.DocumentReference(s.req.Text)
	if !ok {
		return fc
	}

	var (
		doc documents.Document
		err error
	)
	if name == "" {
		doc, err = s.p.deps.Documents.Latest()
	} else {
		doc, err = s.p.deps.Documents.Fetch(name)
	}
	if err != nil {
		s.p.deps.Logger.Warn("document lookup failed",
			"request_id", s.req.ID,
			"document", name,
			"error", err,
		)
		return fc
	}
	fc.Document = doc.Content
	return fc
}

func isAffirmative(text string) bool {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(text), ".!")) {
	case "y", "yes", "approve", "approved", "ok", "okay", "confirm", "send", "send it", "go ahead":
		return true
	default:
		return false
	}
}
