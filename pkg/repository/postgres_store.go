package repository

import (
	"context"
	"database/sql"
)

// PostgresStore is the Store backed by Postgres.
type PostgresStore struct {
	db            *sql.DB
	persons       *PersonsRepository
	relationships *RelationshipsRepository
	memberships   *MembershipsRepository
	invites       *InvitesRepository
}

// NewPostgresStore creates a Store over a connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return newPostgresStore(db, db)
}

func newPostgresStore(db *sql.DB, q Querier) *PostgresStore {
	return &PostgresStore{
		db:            db,
		persons:       NewPersonsRepository(q),
		relationships: NewRelationshipsRepository(q),
		memberships:   NewMembershipsRepository(q),
		invites:       NewInvitesRepository(q),
	}
}

func (s *PostgresStore) Persons() PersonStore             { return s.persons }
func (s *PostgresStore) Relationships() RelationshipStore { return s.relationships }
func (s *PostgresStore) Memberships() MembershipStore     { return s.memberships }
func (s *PostgresStore) Invites() InviteStore             { return s.invites }

// InTx runs fn with repositories bound to one transaction.
func (s *PostgresStore) InTx(ctx context.Context, fn func(Store) error) error {
	return Tx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(&txStore{PostgresStore: newPostgresStore(s.db, tx)})
	})
}

// txStore is a PostgresStore already inside a transaction; nested InTx calls join it.
type txStore struct {
	*PostgresStore
}

func (s *txStore) InTx(_ context.Context, fn func(Store) error) error {
	return fn(s)
}
