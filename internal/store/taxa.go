package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/taxassign/internal/taxonomy"
)

var taxonColumns = []string{"tax_id", "parent_id", "rank", "name"}

// Taxon returns the taxon stored under id.
func (s *Store) Taxon(ctx context.Context, id taxonomy.TaxID) (taxonomy.Record, bool, error) {
	key := taxonKey(id)
	var rec taxonomy.Record
	if s.cacheGet(ctx, key, &rec) {
		return rec, true, nil
	}

	query, args := s.builder().Select(taxonColumns...).
		From(s.builder().Table(tableTaxa)).
		Where(entsql.EQ("tax_id", int64(id))).
		Query()
	recs, err := s.queryTaxa(ctx, query, args)
	if err != nil {
		return taxonomy.Record{}, false, fmt.Errorf("select taxon %d: %w", id, err)
	}
	if len(recs) == 0 {
		return taxonomy.Record{}, false, nil
	}
	s.cacheSet(ctx, key, recs[0])
	return recs[0], true, nil
}

// ChildrenOf returns the direct children of id ordered by tax id. The root's
// self-reference is excluded.
func (s *Store) ChildrenOf(ctx context.Context, id taxonomy.TaxID) ([]taxonomy.Record, error) {
	key := childrenKey(id)
	var recs []taxonomy.Record
	if s.cacheGet(ctx, key, &recs) {
		return recs, nil
	}

	query, args := s.builder().Select(taxonColumns...).
		From(s.builder().Table(tableTaxa)).
		Where(entsql.And(
			entsql.EQ("parent_id", int64(id)),
			entsql.NEQ("tax_id", int64(id)),
		)).
		OrderBy("tax_id").
		Query()
	recs, err := s.queryTaxa(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("select children of %d: %w", id, err)
	}
	s.cacheSet(ctx, key, recs)
	return recs, nil
}

// Accession returns the taxon a reference sequence is filed under.
func (s *Store) Accession(ctx context.Context, accession int64) (taxonomy.TaxID, bool, error) {
	key := accessionKey(accession)
	var id taxonomy.TaxID
	if s.cacheGet(ctx, key, &id) {
		return id, true, nil
	}

	query, args := s.builder().Select("tax_id").
		From(s.builder().Table(tableAccessions)).
		Where(entsql.EQ("accession", accession)).
		Query()
	var raw int64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("select accession %d: %w", accession, err)
	}
	id = taxonomy.TaxID(raw)
	s.cacheSet(ctx, key, id)
	return id, true, nil
}

// PutTaxon inserts or replaces one taxon. The root is stored as its own
// parent.
func (s *Store) PutTaxon(ctx context.Context, rec taxonomy.Record) error {
	if !rec.Rank.Valid() {
		return fmt.Errorf("put taxon %d: %w: %d", rec.ID, taxonomy.ErrUnknownRank, int(rec.Rank))
	}

	prev, hadPrev, err := s.Taxon(ctx, rec.ID)
	if err != nil {
		return err
	}

	query, args := s.builder().Insert(tableTaxa).
		Columns(taxonColumns...).
		Values(int64(rec.ID), int64(rec.Parent), rec.Rank.String(), rec.Name).
		OnConflict(entsql.ConflictColumns("tax_id"), entsql.ResolveWithNewValues()).
		Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("put taxon %d: %w", rec.ID, err)
	}

	stale := []string{taxonKey(rec.ID), childrenKey(rec.Parent)}
	if hadPrev && prev.Parent != rec.Parent {
		stale = append(stale, childrenKey(prev.Parent))
	}
	s.cacheDelete(ctx, stale...)
	return nil
}

// PutAccession files accession under taxon id, replacing any previous entry.
func (s *Store) PutAccession(ctx context.Context, accession int64, id taxonomy.TaxID) error {
	query, args := s.builder().Insert(tableAccessions).
		Columns("accession", "tax_id").
		Values(accession, int64(id)).
		OnConflict(entsql.ConflictColumns("accession"), entsql.ResolveWithNewValues()).
		Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("put accession %d: %w", accession, err)
	}
	s.cacheDelete(ctx, accessionKey(accession))
	return nil
}

func (s *Store) queryTaxa(ctx context.Context, query string, args []any) ([]taxonomy.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []taxonomy.Record
	for rows.Next() {
		var (
			id, parent int64
			rank, name string
		)
		if err := rows.Scan(&id, &parent, &rank, &name); err != nil {
			return nil, err
		}
		r, err := taxonomy.ParseRank(rank)
		if err != nil {
			return nil, fmt.Errorf("taxon %d: %w", id, err)
		}
		recs = append(recs, taxonomy.Record{
			ID:     taxonomy.TaxID(id),
			Parent: taxonomy.TaxID(parent),
			Rank:   r,
			Name:   name,
		})
	}
	return recs, rows.Err()
}

func taxonKey(id taxonomy.TaxID) string    { return "taxon:" + strconv.FormatInt(int64(id), 10) }
func childrenKey(id taxonomy.TaxID) string { return "children:" + strconv.FormatInt(int64(id), 10) }
func accessionKey(acc int64) string        { return "accession:" + strconv.FormatInt(acc, 10) }

// cacheGet decodes the cached value of key into v. Cache failures are logged
// and treated as misses.
func (s *Store) cacheGet(ctx context.Context, key string, v any) bool {
	if s.cache == nil {
		return false
	}
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("cache read failed", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.logger.Warn("cache entry undecodable", "key", key, "error", err)
		return false
	}
	return true
}

func (s *Store) cacheSet(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("cache entry unencodable", "key", key, "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, data); err != nil {
		s.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

func (s *Store) cacheDelete(ctx context.Context, keys ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("cache invalidation failed", "keys", keys, "error", err)
	}
}
