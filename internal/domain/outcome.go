// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionOutcome is the dispatcher's verdict for one approved draft.
type ExecutionOutcome struct {
	StepID     uuid.UUID      `json:"step_id"`
	DraftID    uuid.UUID      `json:"draft_id"`
	Capability CapabilityKind `json:"capability"`
	Success    bool           `json:"success"`
	Reference  string         `json:"reference,omitempty"`
	Failure    string         `json:"failure,omitempty"`
	FinishedAt time.Time      `json:"finished_at"`
}
