package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/abhisek/taxassign/internal/classify"
	"github.com/abhisek/taxassign/internal/taxonomy"
)

// Assignment is a persisted classification result.
type Assignment struct {
	RunID     string
	Position  int
	QueryID   string
	Status    classify.Status
	TaxID     taxonomy.TaxID
	Rank      string
	Name      string
	HitsUsed  int
	Lifts     int
	CreatedAt time.Time
}

// NewRunID returns a fresh identifier grouping the assignments of one run.
func NewRunID() string {
	return uuid.NewString()
}

// SaveAssignment stores the result of the query at position within run.
func (s *Store) SaveAssignment(ctx context.Context, runID string, position int, r *classify.Result) error {
	if _, err := uuid.Parse(runID); err != nil {
		return fmt.Errorf("save assignment: invalid run id %q: %w", runID, err)
	}

	var taxID, rank, name any
	if r.Classified() {
		taxID, rank, name = int64(r.TaxID), r.RankName(), r.Name
	}

	query, args := s.builder().Insert(tableAssignments).
		Columns("run_id", "position", "query_id", "status", "tax_id", "rank", "name", "hits_used", "lifts", "created_at").
		Values(runID, position, r.QueryID, string(r.Status), taxID, rank, name, r.HitsPlaced, r.Lifts,
			time.Now().UTC().Format(time.RFC3339Nano)).
		Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save assignment %s/%s: %w", runID, r.QueryID, err)
	}
	return nil
}

// Assignments returns the stored results of run in input order.
func (s *Store) Assignments(ctx context.Context, runID string) ([]Assignment, error) {
	query, args := s.builder().
		Select("run_id", "position", "query_id", "status", "tax_id", "rank", "name", "hits_used", "lifts", "created_at").
		From(s.builder().Table(tableAssignments)).
		Where(entsql.EQ("run_id", runID)).
		OrderBy("position").
		Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select assignments of %s: %w", runID, err)
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		var (
			a         Assignment
			status    string
			taxID     sql.NullInt64
			rank      sql.NullString
			name      sql.NullString
			createdAt string
		)
		if err := rows.Scan(&a.RunID, &a.Position, &a.QueryID, &status, &taxID, &rank, &name,
			&a.HitsUsed, &a.Lifts, &createdAt); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		a.Status = classify.Status(status)
		a.TaxID = taxonomy.TaxID(taxID.Int64)
		a.Rank = rank.String
		a.Name = name.String
		if a.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("assignment %s/%s created_at: %w", a.RunID, a.QueryID, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
