// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"time"

	"github.com/google/uuid"
)

type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDING"
	RequestRunning   RequestStatus = "RUNNING"
	RequestWaiting   RequestStatus = "WAITING_INPUT"
	RequestSuccess   RequestStatus = "SUCCEEDED"
	RequestFailed    RequestStatus = "FAILED"
	RequestAbandoned RequestStatus = "ABANDONED"
)

// Request is a raw user utterance. Immutable once created.
type Request struct {
	ID         uuid.UUID `json:"id"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

func NewRequest(text string, now time.Time) Request {
	return Request{
		ID:         uuid.New(),
		Text:       text,
		ReceivedAt: now,
	}
}

// Terminal reports whether a status admits no further transitions.
func (s RequestStatus) Terminal() bool {
	switch s {
	case RequestSuccess, RequestFailed, RequestAbandoned:
		return true
	default:
		return false
	}
}
