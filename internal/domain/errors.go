// SPDX-License-Identifier: Apache-2.0

package domain

import "errors"

var (
	// ErrExtractionAmbiguous marks a field with more than one plausible
	// candidate; the field stays unresolved for the dialogue.
	ErrExtractionAmbiguous = errors.New("extraction ambiguous")

	// ErrValidationFailed marks a user answer the field validator rejected.
	ErrValidationFailed = errors.New("validation failed")

	// ErrGenerationFailed marks a fallback call that errored or timed out.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrReviewRejected marks a draft scored below the rejection floor.
	ErrReviewRejected = errors.New("review rejected")

	// ErrNotApproved marks an attempt to dispatch a draft without approval.
	ErrNotApproved = errors.New("draft not approved")

	// ErrDispatchTransient marks a dispatcher failure safe to retry.
	ErrDispatchTransient = errors.New("transient dispatch failure")

	// ErrDispatchPermanent marks a dispatcher failure surfaced without retry.
	ErrDispatchPermanent = errors.New("permanent dispatch failure")

	// ErrUnknownIntent marks a request that names no known capability.
	ErrUnknownIntent = errors.New("unknown intent")

	// ErrRequestAbandoned marks a request canceled by the user or by
	// exhausted field retries.
	ErrRequestAbandoned = errors.New("request abandoned")

	// ErrDocumentNotFound marks a missing document; callers treat it as a
	// normal unresolved-field outcome.
	ErrDocumentNotFound = errors.New("document not found")
)
