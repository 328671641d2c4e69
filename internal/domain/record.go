// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// InteractionRecord is the unit handed to the recorder once a request
// reaches a terminal status.
type InteractionRecord struct {
	ID          string             `json:"id"`
	RequestID   uuid.UUID          `json:"request_id"`
	Query       string             `json:"query"`
	Status      RequestStatus      `json:"status"`
	PlanSummary string             `json:"plan_summary"`
	Drafts      []Draft            `json:"drafts,omitempty"`
	Reviews     []ReviewResult     `json:"reviews,omitempty"`
	Outcomes    []ExecutionOutcome `json:"outcomes,omitempty"`
	Sentiment   string             `json:"sentiment"`
	Tags        []string           `json:"tags,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

type InteractionStats struct {
	Total       int            `json:"total"`
	BySentiment map[string]int `json:"by_sentiment"`
}

// SummarizePlan renders a one-line description of a plan for storage.
func SummarizePlan(plan *Plan) string {
	if plan == nil || len(plan.Steps) == 0 {
		return "general response"
	}
	parts := make([]string, 0, len(plan.Steps))
	for i, step := range plan.Steps {
		parts = append(parts, fmt.Sprintf("%d. %s", i+1, step.Capability))
	}
	return strings.Join(parts, ", ")
}

// DeriveSentiment tags a finished interaction from its terminal status
// and step outcomes.
func DeriveSentiment(status RequestStatus, outcomes []ExecutionOutcome) string {
	switch status {
	case RequestAbandoned:
		return "neutral"
	case RequestFailed:
		return "negative"
	}
	for _, o := range outcomes {
		if !o.Success {
			return "negative"
		}
	}
	if len(outcomes) == 0 {
		return "neutral"
	}
	return "positive"
}
