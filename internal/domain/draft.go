// SPDX-License-Identifier: Apache-2.0

package domain

import "github.com/google/uuid"

// Draft is the materialized payload for one step. Re-drafting after a
// rejection produces a new Draft with a fresh ID so the audit trail keeps
// every attempt.
type Draft struct {
	ID         uuid.UUID         `json:"id"`
	StepID     uuid.UUID         `json:"step_id"`
	Capability CapabilityKind    `json:"capability"`
	Attempt    int               `json:"attempt"`
	Payload    map[string]string `json:"payload"`
}

// Issue describes one problem the reviewer found with a draft.
type Issue struct {
	Field         string `json:"field,omitempty"`
	Description   string `json:"description"`
	HumanJudgment bool   `json:"human_judgment"`
}

// ReviewResult is derived purely from a draft and its step's field specs.
type ReviewResult struct {
	DraftID      uuid.UUID `json:"draft_id"`
	Score        float64   `json:"score"`
	Approved     bool      `json:"approved"`
	ApprovedBy   string    `json:"approved_by,omitempty"`
	RequiresUser bool      `json:"requires_user"`
	Issues       []Issue   `json:"issues,omitempty"`
}

// UserApproved returns a copy carrying an explicit user override. This is
// the only path by which a non-policy-approved draft may pass the gate.
func (r ReviewResult) UserApproved() ReviewResult {
	out := r
	out.Approved = true
	out.ApprovedBy = "user"
	out.RequiresUser = false
	return out
}
