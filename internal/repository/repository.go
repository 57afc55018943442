// Package repository provides data access interfaces and PostgreSQL
// implementations for the citation graph.
//
// # Repository Interfaces
//
//   - PaperRepository: papers keyed by DOI and arXiv identity
//   - RelationshipRepository: relationship kinds and directed paper edges
//   - TagRepository: read access to paper tags
//   - QueueRepository: the processing queue drained by the worker
//
// # Error Handling
//
// Lookups of absent rows return domain.ErrNotFound. Inserts that race with an
// existing row never fail: they use ON CONFLICT DO NOTHING and report
// AlreadyExists through InsertOutcome, so the surrounding transaction stays
// usable.
//
// # Transactions
//
// Repositories accept DBTX, so the same code runs against the pool or inside
// a transaction:
//
//	err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
//	    store := repository.NewStore(tx)
//	    paper, _, err := store.Papers.Create(ctx, "", "1401.2910")
//	    ...
//	})
package repository

import (
	"github.com/helixir/citation-graph-service/internal/database"
)

// DBTX is the database interface supporting both pool and transaction contexts.
type DBTX = database.DBTX

// InsertOutcome reports whether an idempotent insert created a row.
type InsertOutcome int

const (
	// Created means the row was inserted by this call.
	Created InsertOutcome = iota
	// AlreadyExists means an equal row was already present; nothing changed.
	AlreadyExists
)

// String implements fmt.Stringer.
func (o InsertOutcome) String() string {
	if o == Created {
		return "created"
	}
	return "already_exists"
}

// Store bundles the repositories bound to one DBTX.
type Store struct {
	Papers        PaperRepository
	Relationships RelationshipRepository
	Tags          TagRepository
	Queue         QueueRepository
}

// NewStore returns PostgreSQL repositories sharing db.
func NewStore(db DBTX) *Store {
	return &Store{
		Papers:        NewPgPaperRepository(db),
		Relationships: NewPgRelationshipRepository(db),
		Tags:          NewPgTagRepository(db),
		Queue:         NewPgQueueRepository(db),
	}
}

// StoreFactory builds a Store for a transaction or pool.
type StoreFactory func(db DBTX) *Store

// Filter pagination defaults and limits.
const (
	defaultFilterLimit = 100
	maxFilterLimit     = 1000
)

// applyPaginationDefaults normalizes limit and offset values for filter queries.
// It clamps limit to [1, maxFilterLimit] and ensures offset >= 0.
func applyPaginationDefaults(limit, offset *int) {
	if *limit <= 0 {
		*limit = defaultFilterLimit
	}
	if *limit > maxFilterLimit {
		*limit = maxFilterLimit
	}
	if *offset < 0 {
		*offset = 0
	}
}

// nullable maps "" to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
