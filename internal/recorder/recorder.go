// SPDX-License-Identifier: Apache-2.0

// Package recorder persists finished interactions for history, search
// and stats. The pipeline only depends on the Recorder interface; the
// SQLite implementation is the default backing store.
package recorder

import (
	"context"

	"github.com/adiadia/concierge/internal/domain"
)

// MaxRecords caps how much history a store keeps. Inserting past the
// cap evicts the oldest records.
const MaxRecords = 100

type Recorder interface {
	// Record stores one finished interaction and returns its assigned ID.
	Record(ctx context.Context, rec domain.InteractionRecord) (string, error)
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]domain.InteractionRecord, error)
	// SearchSimilar ranks stored records by word overlap with the query.
	SearchSimilar(ctx context.Context, query string, limit int) ([]domain.InteractionRecord, error)
	// Stats aggregates the stored history.
	Stats(ctx context.Context) (domain.InteractionStats, error)
}

// Discard is a Recorder that keeps nothing. Used when persistence is
// disabled.
type Discard struct{}

func (Discard) Record(_ context.Context, rec domain.InteractionRecord) (string, error) {
	return rec.ID, nil
}

func (Discard) Recent(context.Context, int) ([]domain.InteractionRecord, error) {
	return nil, nil
}

func (Discard) SearchSimilar(context.Context, string, int) ([]domain.InteractionRecord, error) {
	return nil, nil
}

func (Discard) Stats(context.Context) (domain.InteractionStats, error) {
	return domain.InteractionStats{BySentiment: map[string]int{}}, nil
}
