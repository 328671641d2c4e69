// SPDX-License-Identifier: Apache-2.0

// Package dialogue implements the per-request slot-filling state machine.
// It asks for one unresolved required field at a time, validates each
// answer, and never reorders the queue mid-conversation.
package dialogue

import (
	"fmt"
	"log/slog"

	"github.com/adiadia/concierge/internal/domain"
)

type State string

const (
	StateAwaitingField State = "AWAITING_FIELD"
	StateValidating    State = "VALIDATING"
	StateComplete      State = "COMPLETE"
	StateAbandoned     State = "ABANDONED"
)

const DefaultMaxRetries = 3

// Outcome describes what the machine did with one user answer.
type Outcome struct {
	State       State
	Field       string
	Prompt      string
	RetryNotice string
	FailedField domain.FieldSpec
}

type Dialogue struct {
	step       *domain.Step
	queue      []domain.FieldSpec
	state      State
	current    domain.FieldSpec
	retries    int
	maxRetries int
	logger     *slog.Logger
}

type Options struct {
	MaxRetries int
	Logger     *slog.Logger
}

// New builds the machine for one step. The queue holds the unresolved
// required non-semantic fields in declaration order; if it is empty the
// machine starts in COMPLETE.
func New(step *domain.Step, opts Options) *Dialogue {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dialogue{
		step:       step,
		state:      StateComplete,
		maxRetries: maxRetries,
		logger:     logger,
	}

	for _, f := range step.MissingRequired() {
		if f.Semantic {
			continue
		}
		d.queue = append(d.queue, f)
	}

	if len(d.queue) > 0 {
		d.state = StateAwaitingField
		d.current = d.queue[0]
		d.queue = d.queue[1:]
	}

	return d
}

func (d *Dialogue) State() State { return d.state }

// Pending returns the field currently awaiting an answer and its prompt.
func (d *Dialogue) Pending() (domain.FieldSpec, bool) {
	if d.state != StateAwaitingField {
		return domain.FieldSpec{}, false
	}
	return d.current, true
}

// Answer validates one user reply for the pending field. On success the
// slot is set with prompted provenance and the machine advances; on
// failure it re-asks the same field up to the retry bound, then abandons.
func (d *Dialogue) Answer(raw string) Outcome {
	if d.state != StateAwaitingField {
		return Outcome{State: d.state}
	}

	d.state = StateValidating

	value, err := d.current.Validate(raw)
	if err != nil {
		d.retries++
		d.logger.Debug("answer rejected",
			"field", d.current.Name,
			"attempt", d.retries,
			"error", err,
		)

		if d.retries >= d.maxRetries {
			failed := d.current
			d.state = StateAbandoned
			d.logger.Warn("dialogue abandoned: retries exhausted",
				"field", failed.Name,
				"attempts", d.retries,
			)
			return Outcome{State: StateAbandoned, Field: failed.Name, FailedField: failed}
		}

		d.state = StateAwaitingField
		return Outcome{
			State:       StateAwaitingField,
			Field:       d.current.Name,
			Prompt:      d.current.Prompt,
			RetryNotice: fmt.Sprintf("%v; %s", err, d.current.Prompt),
		}
	}

	d.step.Slots.Resolve(d.current.Name, value, domain.ProvenancePrompted)
	d.retries = 0

	// Skip any queued field resolved since the queue was computed.
	for len(d.queue) > 0 {
		next := d.queue[0]
		d.queue = d.queue[1:]
		if d.step.Slots.Resolved(next.Name) {
			continue
		}
		d.current = next
		d.state = StateAwaitingField
		return Outcome{State: StateAwaitingField, Field: next.Name, Prompt: next.Prompt}
	}

	d.state = StateComplete
	return Outcome{State: StateComplete}
}

// Cancel moves the machine to ABANDONED from any state. Cancellation is
// only observed here, at a transition point, never mid-validation.
func (d *Dialogue) Cancel() {
	if d.state == StateComplete {
		return
	}
	d.state = StateAbandoned
}
