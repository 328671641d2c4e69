// SPDX-License-Identifier: Apache-2.0

// Package repository holds the Postgres-backed stores. The interaction
// repository satisfies recorder.Recorder so deployments can keep their
// history in the shared database instead of a local SQLite file.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/adiadia/concierge/internal/domain"
	"github.com/adiadia/concierge/internal/recorder"
)

type InteractionRepository struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	entropy *rand.Rand
	cap     int
}

func NewInteractionRepository(pool *pgxpool.Pool, logger *slog.Logger) *InteractionRepository {
	return &InteractionRepository{
		pool:    pool,
		logger:  logger,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
		cap:     recorder.MaxRecords,
	}
}

func (r *InteractionRepository) Record(ctx context.Context, rec domain.InteractionRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = ulid.MustNew(ulid.Timestamp(time.Now()), r.entropy).String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	drafts, err := jsonOrNil(rec.Drafts, len(rec.Drafts) == 0)
	if err != nil {
		return "", fmt.Errorf("marshal drafts: %w", err)
	}
	reviews, err := jsonOrNil(rec.Reviews, len(rec.Reviews) == 0)
	if err != nil {
		return "", fmt.Errorf("marshal reviews: %w", err)
	}
	outcomes, err := jsonOrNil(rec.Outcomes, len(rec.Outcomes) == 0)
	if err != nil {
		return "", fmt.Errorf("marshal outcomes: %w", err)
	}
	tags, err := jsonOrNil(rec.Tags, len(rec.Tags) == 0)
	if err != nil {
		return "", fmt.Errorf("marshal tags: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error("begin tx failed", "error", err)
		return "", err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO interactions (id, request_id, query, status, plan_summary, drafts, reviews, outcomes, sentiment, tags, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.RequestID, rec.Query, rec.Status, rec.PlanSummary,
		drafts, reviews, outcomes, rec.Sentiment, tags, rec.CreatedAt,
	)
	if err != nil {
		r.logger.Error("insert interaction failed", "interaction_id", rec.ID, "error", err)
		return "", err
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM interactions WHERE id NOT IN (
			SELECT id FROM interactions ORDER BY created_at DESC, id DESC LIMIT $1
		)`, r.cap)
	if err != nil {
		r.logger.Error("trim history failed", "error", err)
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error("commit failed", "interaction_id", rec.ID, "error", err)
		return "", err
	}

	r.logger.Info("interaction recorded",
		"interaction_id", rec.ID,
		"request_id", rec.RequestID,
		"status", rec.Status,
	)
	return rec.ID, nil
}

func (r *InteractionRepository) Recent(ctx context.Context, limit int) ([]domain.InteractionRecord, error) {
	if limit <= 0 || limit > r.cap {
		limit = r.cap
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, request_id, query, status, plan_summary, drafts, reviews, outcomes, sentiment, tags, created_at
		 FROM interactions
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1`, limit)
	if err != nil {
		r.logger.Error("list interactions failed", "error", err)
		return nil, err
	}
	defer rows.Close()

	var records []domain.InteractionRecord
	for rows.Next() {
		var rec domain.InteractionRecord
		var drafts, reviews, outcomes, tags []byte
		if err := rows.Scan(&rec.ID, &rec.RequestID, &rec.Query, &rec.Status, &rec.PlanSummary,
			&drafts, &reviews, &outcomes, &rec.Sentiment, &tags, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if len(drafts) > 0 {
			json.Unmarshal(drafts, &rec.Drafts)
		}
		if len(reviews) > 0 {
			json.Unmarshal(reviews, &rec.Reviews)
		}
		if len(outcomes) > 0 {
			json.Unmarshal(outcomes, &rec.Outcomes)
		}
		if len(tags) > 0 {
			json.Unmarshal(tags, &rec.Tags)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *InteractionRepository) SearchSimilar(ctx context.Context, query string, limit int) ([]domain.InteractionRecord, error) {
	if limit <= 0 {
		limit = 5
	}
	all, err := r.Recent(ctx, r.cap)
	if err != nil {
		return nil, err
	}

	want := wordSet(query)
	type scored struct {
		rec   domain.InteractionRecord
		score float64
	}
	var matches []scored
	for _, rec := range all {
		if s := overlap(want, wordSet(rec.Query)); s > 0 {
			matches = append(matches, scored{rec, s})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]domain.InteractionRecord, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.rec)
	}
	return out, nil
}

func (r *InteractionRepository) Stats(ctx context.Context) (domain.InteractionStats, error) {
	stats := domain.InteractionStats{BySentiment: map[string]int{}}

	rows, err := r.pool.Query(ctx,
		`SELECT sentiment, COUNT(*) FROM interactions GROUP BY sentiment`)
	if err != nil {
		r.logger.Error("stats query failed", "error", err)
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var sentiment string
		var n int
		if err := rows.Scan(&sentiment, &n); err != nil {
			return stats, err
		}
		stats.BySentiment[sentiment] = n
		stats.Total += n
	}
	return stats, rows.Err()
}

func jsonOrNil(v any, empty bool) ([]byte, error) {
	if empty {
		return nil, nil
	}
	return json.Marshal(v)
}

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "for": true, "is": true,
	"of": true, "or": true, "the": true, "to": true, "with": true,
}

func wordSet(text string) map[string]bool {
	set := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?\"'")
		if len(w) < 2 || stopWords[w] {
			continue
		}
		set[w] = true
	}
	return set
}

func overlap(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for w := range a {
		if b[w] {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	return float64(shared) / float64(union)
}
