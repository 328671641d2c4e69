// SPDX-License-Identifier: Apache-2.0

// Package dispatch defines the boundary to external capability
// providers. The gate is the only caller; providers implement
// Dispatcher and report transient failures with
// domain.ErrDispatchTransient so the gate knows a retry is worthwhile.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adiadia/concierge/internal/domain"
	"github.com/oklog/ulid/v2"
)

// Dispatcher executes one approved draft payload against a capability
// provider. Implementations must be side-effect free on error paths:
// an error return means nothing external happened, or the failure is
// wrapped as permanent.
type Dispatcher interface {
	Execute(ctx context.Context, capability domain.CapabilityKind, payload map[string]string) (domain.ExecutionOutcome, error)
}

// Func adapts a plain function to the Dispatcher interface.
type Func func(ctx context.Context, capability domain.CapabilityKind, payload map[string]string) (domain.ExecutionOutcome, error)

func (f Func) Execute(ctx context.Context, capability domain.CapabilityKind, payload map[string]string) (domain.ExecutionOutcome, error) {
	return f(ctx, capability, payload)
}

// Memory is an in-process dispatcher for local runs and tests. It
// records every execution and hands back a reference the caller can
// show to the user.
type Memory struct {
	mu       sync.Mutex
	now      func() time.Time
	executed []Execution
}

type Execution struct {
	Capability domain.CapabilityKind
	Payload    map[string]string
	At         time.Time
}

func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{now: now}
}

func (m *Memory) Execute(ctx context.Context, capability domain.CapabilityKind, payload map[string]string) (domain.ExecutionOutcome, error) {
	if err := ctx.Err(); err != nil {
		return domain.ExecutionOutcome{}, fmt.Errorf("%w: %v", domain.ErrDispatchTransient, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make(map[string]string, len(payload))
	for k, v := range payload {
		copied[k] = v
	}
	at := m.now()
	m.executed = append(m.executed, Execution{Capability: capability, Payload: copied, At: at})

	return domain.ExecutionOutcome{
		Capability: capability,
		Success:    true,
		Reference:  fmt.Sprintf("%s-%s", capability, ulid.Make()),
		FinishedAt: at,
	}, nil
}

// Executed returns a snapshot of everything dispatched so far.
func (m *Memory) Executed() []Execution {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Execution, len(m.executed))
	copy(out, m.executed)
	return out
}
