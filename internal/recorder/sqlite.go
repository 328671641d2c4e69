// SPDX-License-Identifier: Apache-2.0

package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/adiadia/concierge/internal/domain"
)

// SQLiteRecorder implements Recorder on a single SQLite file.
type SQLiteRecorder struct {
	db      *sql.DB
	entropy *rand.Rand
	cap     int
}

// NewSQLite opens or creates the interaction database at path.
func NewSQLite(path string) (*SQLiteRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	r := &SQLiteRecorder{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
		cap:     MaxRecords,
	}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS interactions (
		id           TEXT PRIMARY KEY,
		request_id   TEXT NOT NULL,
		query        TEXT NOT NULL,
		status       TEXT NOT NULL,
		plan_summary TEXT NOT NULL,
		drafts       TEXT,
		reviews      TEXT,
		outcomes     TEXT,
		sentiment    TEXT NOT NULL,
		tags         TEXT,
		created_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_interactions_created ON interactions(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_interactions_sentiment ON interactions(sentiment);
	`
	_, err := r.db.Exec(schema)
	return err
}

func (r *SQLiteRecorder) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), r.entropy).String()
}

func (r *SQLiteRecorder) Record(ctx context.Context, rec domain.InteractionRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = r.newID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	drafts, err := marshalOpt(rec.Drafts)
	if err != nil {
		return "", fmt.Errorf("marshal drafts: %w", err)
	}
	reviews, err := marshalOpt(rec.Reviews)
	if err != nil {
		return "", fmt.Errorf("marshal reviews: %w", err)
	}
	outcomes, err := marshalOpt(rec.Outcomes)
	if err != nil {
		return "", fmt.Errorf("marshal outcomes: %w", err)
	}
	tags, err := marshalOpt(rec.Tags)
	if err != nil {
		return "", fmt.Errorf("marshal tags: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO interactions (id, request_id, query, status, plan_summary, drafts, reviews, outcomes, sentiment, tags, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RequestID.String(), rec.Query, string(rec.Status), rec.PlanSummary,
		drafts, reviews, outcomes, rec.Sentiment, tags, rec.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("insert interaction: %w", err)
	}

	// Evict beyond the cap, oldest first.
	_, err = tx.ExecContext(ctx,
		`DELETE FROM interactions WHERE id NOT IN (
			SELECT id FROM interactions ORDER BY created_at DESC, id DESC LIMIT ?
		)`, r.cap)
	if err != nil {
		return "", fmt.Errorf("trim history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return rec.ID, nil
}

func (r *SQLiteRecorder) Recent(ctx context.Context, limit int) ([]domain.InteractionRecord, error) {
	if limit <= 0 || limit > r.cap {
		limit = r.cap
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, request_id, query, status, plan_summary, drafts, reviews, outcomes, sentiment, tags, created_at
		 FROM interactions ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.InteractionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SearchSimilar scores stored queries by word overlap with the given
// query and returns the best matches, most similar first. Records with
// no overlap are omitted.
func (r *SQLiteRecorder) SearchSimilar(ctx context.Context, query string, limit int) ([]domain.InteractionRecord, error) {
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

func (r *SQLiteRecorder) Stats(ctx context.Context) (domain.InteractionStats, error) {
	stats := domain.InteractionStats{BySentiment: map[string]int{}}

	rows, err := r.db.QueryContext(ctx,
		`SELECT sentiment, COUNT(*) FROM interactions GROUP BY sentiment`)
	if err != nil {
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

func (r *SQLiteRecorder) Close() error { return r.db.Close() }

func marshalOpt(v any) (*string, error) {
	switch x := v.(type) {
	case []domain.Draft:
		if len(x) == 0 {
			return nil, nil
		}
	case []domain.ReviewResult:
		if len(x) == 0 {
			return nil, nil
		}
	case []domain.ExecutionOutcome:
		if len(x) == 0 {
			return nil, nil
		}
	case []string:
		if len(x) == 0 {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (domain.InteractionRecord, error) {
	var rec domain.InteractionRecord
	var requestID, status, createdAt string
	var drafts, reviews, outcomes, tags sql.NullString

	err := row.Scan(&rec.ID, &requestID, &rec.Query, &status, &rec.PlanSummary,
		&drafts, &reviews, &outcomes, &rec.Sentiment, &tags, &createdAt)
	if err != nil {
		return rec, err
	}

	rec.RequestID, _ = uuid.Parse(requestID)
	rec.Status = domain.RequestStatus(status)
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if drafts.Valid {
		json.Unmarshal([]byte(drafts.String), &rec.Drafts)
	}
	if reviews.Valid {
		json.Unmarshal([]byte(reviews.String), &rec.Reviews)
	}
	if outcomes.Valid {
		json.Unmarshal([]byte(outcomes.String), &rec.Outcomes)
	}
	if tags.Valid {
		json.Unmarshal([]byte(tags.String), &rec.Tags)
	}
	return rec, nil
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

// overlap is |A∩B| / |A∪B| over the two word sets.
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
