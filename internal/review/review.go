// SPDX-License-Identifier: Apache-2.0

// Package review scores drafts before they may reach the execution gate.
// The score weighs how the required fields were resolved, the structural
// validity of the payload, and the absence of flagged issues. Weights are
// calibration policy, not provider contract.
package review

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/adiadia/concierge/internal/domain"
)

const (
	// ApproveThreshold approves unconditionally at or above this score.
	ApproveThreshold = 0.8
	// DeferThreshold approves between here and ApproveThreshold only when
	// no issue requires human judgment; below it the draft is rejected.
	DeferThreshold = 0.6

	weightFields     = 0.60
	weightStructural = 0.25
	weightIssueFree  = 0.15

	// generatedFieldCredit discounts fields the fallback produced:
	// deterministic and user-confirmed data count full.
	generatedFieldCredit = 0.5

	issuePenalty = 0.25
)

var (
	addressPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// placeholderMarks flag template text that slipped into a payload.
// Placeholder findings always require human judgment.
var placeholderMarks = []string{"[insert", "[your", "<placeholder", "lorem ipsum", "xxx", "tbd"}

type Reviewer struct{}

func New() *Reviewer { return &Reviewer{} }

// Review derives a decision from a draft and its step's field specs. It
// has no side effects and consults nothing but its arguments.
func (r *Reviewer) Review(d *domain.Draft, step *domain.Step) domain.ReviewResult {
	issues := collectIssues(d, step)

	fieldScore := scoreFields(step)
	structural := scoreStructure(d)
	issueFree := 1.0 - issuePenalty*float64(len(issues))
	if issueFree < 0 || hasHumanJudgmentIssue(issues) {
		issueFree = 0
	}

	score := weightFields*fieldScore + weightStructural*structural + weightIssueFree*issueFree

	result := domain.ReviewResult{
		DraftID: d.ID,
		Score:   score,
		Issues:  issues,
	}

	switch {
	case score >= ApproveThreshold:
		result.Approved = true
		result.ApprovedBy = "policy"
	case score >= DeferThreshold:
		if hasHumanJudgmentIssue(issues) {
			result.RequiresUser = true
		} else {
			result.Approved = true
			result.ApprovedBy = "policy"
		}
	}

	return result
}

// scoreFields is the fraction of required fields resolved with
// non-generated provenance, with generated resolutions at half credit.
func scoreFields(step *domain.Step) float64 {
	var required, credit float64
	for _, f := range step.Fields {
		if !f.Required {
			continue
		}
		required++
		p, ok := step.Slots.ProvenanceOf(f.Name)
		switch {
		case !ok:
		case p == domain.ProvenanceGenerated:
			credit += generatedFieldCredit
		default:
			credit++
		}
	}
	if required == 0 {
		return 1
	}
	return credit / required
}

func scoreStructure(d *domain.Draft) float64 {
	checks := structuralChecks(d)
	if len(checks) == 0 {
		return 1
	}
	passed := 0
	for _, ok := range checks {
		if ok {
			passed++
		}
	}
	return float64(passed) / float64(len(checks))
}

func structuralChecks(d *domain.Draft) []bool {
	switch d.Capability {
	case domain.CapabilityMail:
		return []bool{
			addressPattern.MatchString(d.Payload["recipient"]),
			len(strings.TrimSpace(d.Payload["subject"])) >= 3,
			len(strings.TrimSpace(d.Payload["body"])) >= 20,
		}
	case domain.CapabilityCRM:
		return []bool{
			strings.TrimSpace(d.Payload["name"]) != "",
			addressPattern.MatchString(d.Payload["email"]),
		}
	case domain.CapabilityScheduling:
		return []bool{
			isoDatePattern.MatchString(d.Payload["date"]),
		}
	default:
		return nil
	}
}

func collectIssues(d *domain.Draft, step *domain.Step) []domain.Issue {
	var issues []domain.Issue

	for _, f := range step.Fields {
		if !f.Required {
			continue
		}
		if !step.Slots.Resolved(f.Name) {
			issues = append(issues, domain.Issue{
				Field:       f.Name,
				Description: fmt.Sprintf("required field %q is unresolved", f.Name),
			})
			continue
		}

		value := d.Payload[f.Name]
		if strings.TrimSpace(value) == "" {
			issues = append(issues, domain.Issue{
				Field:       f.Name,
				Description: fmt.Sprintf("field %q rendered empty", f.Name),
			})
			continue
		}

		lower := strings.ToLower(value)
		for _, mark := range placeholderMarks {
			if strings.Contains(lower, mark) {
				issues = append(issues, domain.Issue{
					Field:         f.Name,
					Description:   fmt.Sprintf("field %q contains placeholder text (%q)", f.Name, mark),
					HumanJudgment: true,
				})
				break
			}
		}
	}

	if d.Capability == domain.CapabilityMail {
		if !addressPattern.MatchString(d.Payload["recipient"]) {
			issues = append(issues, domain.Issue{
				Field:       "recipient",
				Description: "recipient is not a syntactically valid address",
			})
		}
		if body := d.Payload["body"]; body != "" && len(strings.TrimSpace(body)) < 20 {
			if p, _ := step.Slots.ProvenanceOf("body"); p == domain.ProvenanceGenerated {
				issues = append(issues, domain.Issue{
					Field:         "body",
					Description:   "generated body is suspiciously short",
					HumanJudgment: true,
				})
			}
		}
	}

	// An issue on a generated-provenance field always needs a human
	// decision; nobody vouched for the value it complains about.
	for i := range issues {
		if issues[i].HumanJudgment || issues[i].Field == "" {
			continue
		}
		if p, ok := step.Slots.ProvenanceOf(issues[i].Field); ok && p == domain.ProvenanceGenerated {
			issues[i].HumanJudgment = true
		}
	}

	return issues
}

func hasHumanJudgmentIssue(issues []domain.Issue) bool {
	for _, i := range issues {
		if i.HumanJudgment {
			return true
		}
	}
	return false
}
