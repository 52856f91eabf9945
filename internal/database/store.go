package database

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/ksred/curio-api/internal/types"
)

// Store is the explicitly constructed store client shared by the core
// services. Open it once at startup and Close it at shutdown.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB returns the handle for reads that need no transaction
func (s *Store) DB() *gorm.DB {
	return s.db
}

// InTransaction runs fn inside a single transaction. Any error rolls the
// whole unit back. Domain errors pass through untouched; anything else is
// logged and surfaced as types.ErrStorage.
//
// fn must only use the tx it is given.
func (s *Store) InTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := s.db.WithContext(ctx).Transaction(fn)
	if err == nil {
		return nil
	}

	var domainErr *types.Error
	if errors.As(err, &domainErr) {
		return err
	}

	log.Error().Err(err).Str("component", "store").Msg("transaction rolled back")
	return types.ErrStorage.Wrap(err)
}

// Ping checks the store is reachable
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the pooled connections
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
