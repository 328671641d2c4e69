// SPDX-License-Identifier: Apache-2.0

package domain

import "github.com/google/uuid"

type CapabilityKind string

const (
	CapabilityMail       CapabilityKind = "mail"
	CapabilityCRM        CapabilityKind = "crm"
	CapabilityScheduling CapabilityKind = "scheduling"
)

type StepStatus string

const (
	StepPending StepStatus = "PENDING"
	StepRunning StepStatus = "RUNNING"
	StepSuccess StepStatus = "SUCCEEDED"
	StepFailed  StepStatus = "FAILED"
)

// Step is one planned action: a target capability, the fields it needs
// and the slots resolved so far.
type Step struct {
	ID         uuid.UUID      `json:"id"`
	Capability CapabilityKind `json:"capability"`
	Fields     []FieldSpec    `json:"fields"`
	Slots      SlotSet        `json:"slots"`
	Status     StepStatus     `json:"status"`
}

func NewStep(capability CapabilityKind, fields []FieldSpec) *Step {
	return &Step{
		ID:         uuid.New(),
		Capability: capability,
		Fields:     fields,
		Slots:      make(SlotSet),
		Status:     StepPending,
	}
}

// MissingRequired returns unresolved required fields in declaration order.
func (s *Step) MissingRequired() []FieldSpec {
	var missing []FieldSpec
	for _, f := range s.Fields {
		if f.Required && !s.Slots.Resolved(f.Name) {
			missing = append(missing, f)
		}
	}
	return missing
}

func (s *Step) Spec(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Plan is the ordered step list for one request.
type Plan struct {
	ID         uuid.UUID `json:"id"`
	RequestID  uuid.UUID `json:"request_id"`
	Steps      []*Step   `json:"steps"`
	Incomplete bool      `json:"incomplete"`
}

// Complete reports whether every step has its required fields resolved.
func (p *Plan) Complete() bool {
	for _, step := range p.Steps {
		if len(step.MissingRequired()) > 0 {
			return false
		}
	}
	return true
}
