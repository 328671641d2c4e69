// SPDX-License-Identifier: Apache-2.0

package domain

// SemanticType is the closed set of field value kinds. Each type maps to
// exactly one validator, selected by tag rather than runtime reflection.
type SemanticType string

const (
	FieldAddress    SemanticType = "address"
	FieldDateTime   SemanticType = "datetime"
	FieldFreeText   SemanticType = "free-text"
	FieldIdentifier SemanticType = "identifier"
)

// Provenance records which stage resolved a slot. Precedence is
// extracted > prompted > generated; a slot never moves down the order.
type Provenance string

const (
	ProvenanceExtracted Provenance = "extracted"
	ProvenancePrompted  Provenance = "prompted"
	ProvenanceGenerated Provenance = "generated"
)

func (p Provenance) rank() int {
	switch p {
	case ProvenanceExtracted:
		return 3
	case ProvenancePrompted:
		return 2
	case ProvenanceGenerated:
		return 1
	default:
		return 0
	}
}

// Validator normalizes a raw answer or rejects it. The returned string is
// the value to store when err is nil.
type Validator func(raw string) (string, error)

// FieldSpec declares one field a capability needs. Semantic fields cannot
// be dictated as a short literal value and are filled by the generative
// fallback instead of the dialogue.
type FieldSpec struct {
	Name     string       `json:"name"`
	Type     SemanticType `json:"type"`
	Required bool         `json:"required"`
	Semantic bool         `json:"semantic"`
	Prompt   string       `json:"prompt"`
	Validate Validator    `json:"-"`
}

type Slot struct {
	Value      string     `json:"value"`
	Provenance Provenance `json:"provenance"`
}

// SlotSet maps field name to resolved value plus provenance.
type SlotSet map[string]Slot

// Resolve sets a field unless it is already held with equal or higher
// provenance. It reports whether the value was stored.
func (s SlotSet) Resolve(name, value string, p Provenance) bool {
	if existing, ok := s[name]; ok && existing.Provenance.rank() >= p.rank() {
		// Same-rank generated values may be replaced during re-drafts.
		if !(existing.Provenance == ProvenanceGenerated && p == ProvenanceGenerated) {
			return false
		}
	}
	s[name] = Slot{Value: value, Provenance: p}
	return true
}

// Clear drops a field only when it was generated; deterministic and
// user-confirmed values survive re-drafts.
func (s SlotSet) Clear(name string) {
	if slot, ok := s[name]; ok && slot.Provenance == ProvenanceGenerated {
		delete(s, name)
	}
}

func (s SlotSet) Resolved(name string) bool {
	_, ok := s[name]
	return ok
}

func (s SlotSet) Value(name string) string {
	return s[name].Value
}

func (s SlotSet) ProvenanceOf(name string) (Provenance, bool) {
	slot, ok := s[name]
	return slot.Provenance, ok
}
