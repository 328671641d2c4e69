// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"context"
	"log/slog"

	"github.com/adiadia/concierge/internal/pipeline"
	"github.com/adiadia/concierge/internal/recorder"
)

type HealthChecker interface {
	Check(ctx context.Context) error
}

type Deps struct {
	Pipeline  *pipeline.Pipeline
	Sessions  *pipeline.Registry
	History   recorder.Recorder
	Health    HealthChecker
	Logger    *slog.Logger
	Version   string
	Commit    string
	BuildDate string

	// RateLimitPerMinute caps requests per client. Zero disables limiting.
	RateLimitPerMinute int
}
