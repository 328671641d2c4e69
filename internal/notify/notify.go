// SPDX-License-Identifier: Apache-2.0

// Package notify delivers signed webhooks when a request reaches a
// terminal status. Delivery is best effort: failures are logged, never
// surfaced to the pipeline.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/adiadia/concierge/internal/domain"
	"github.com/google/uuid"
)

const (
	retryAttempts = 3
	retryBase     = 300 * time.Millisecond
	headerSig     = "X-Signature"
)

type terminalPayload struct {
	RequestID  uuid.UUID            `json:"request_id"`
	Status     domain.RequestStatus `json:"status"`
	FinishedAt time.Time            `json:"finished_at"`
}

type Notifier struct {
	url        string
	secret     string
	logger     *slog.Logger
	httpClient *http.Client
}

func New(url, secret string, logger *slog.Logger, client *http.Client) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Notifier{
		url:        strings.TrimSpace(url),
		secret:     secret,
		logger:     logger,
		httpClient: client,
	}
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool { return n.url != "" }

// DeliverTerminal posts the terminal status of a request to the
// configured webhook, retrying transient failures with exponential
// backoff. An empty URL makes this a no-op.
func (n *Notifier) DeliverTerminal(ctx context.Context, requestID uuid.UUID, status domain.RequestStatus, finishedAt time.Time) {
	if !n.Enabled() {
		return
	}

	body, err := json.Marshal(terminalPayload{
		RequestID:  requestID,
		Status:     status,
		FinishedAt: finishedAt,
	})
	if err != nil {
		n.logger.Error("webhook payload marshal failed",
			"request_id", requestID,
			"status", status,
			"error", err,
		)
		return
	}

	signature := signPayload(n.secret, body)

	var lastErr error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
		if err != nil {
			lastErr = err
			n.logger.Error("webhook request build failed",
				"request_id", requestID,
				"status", status,
				"attempt", attempt,
				"error", err,
			)
			break
		}
		req.Header.Set("Content-Type", "application/json")
		if signature != "" {
			req.Header.Set(headerSig, signature)
		}

		resp, err := n.httpClient.Do(req)
		if err != nil {
			lastErr = err
			n.logger.Warn("webhook failure",
				"request_id", requestID,
				"status", status,
				"attempt", attempt,
				"error", err,
			)
		} else {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
				n.logger.Info("webhook success",
					"request_id", requestID,
					"status", status,
					"attempt", attempt,
					"response_status", resp.StatusCode,
				)
				return
			}

			lastErr = fmt.Errorf("non-2xx response: %d", resp.StatusCode)
			n.logger.Warn("webhook failure",
				"request_id", requestID,
				"status", status,
				"attempt", attempt,
				"response_status", resp.StatusCode,
			)
		}

		if attempt < retryAttempts {
			wait := retryBase * time.Duration(1<<(attempt-1))
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				n.logger.Warn("webhook canceled before retry",
					"request_id", requestID,
					"status", status,
					"attempt", attempt,
					"error", ctx.Err(),
				)
				return
			case <-timer.C:
			}
		}
	}

	if lastErr != nil {
		n.logger.Error("webhook retries exhausted",
			"request_id", requestID,
			"status", status,
			"error", lastErr,
		)
	}
}

func signPayload(secret string, payload []byte) string {
	if strings.TrimSpace(secret) == "" {
		return ""
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
