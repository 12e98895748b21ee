// Package store is the gorm-backed data access layer. Every method is
// its own unit of work unless it takes part in an explicit Transaction,
// which is what gives bulk operations their per-item isolation.
package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/jimmi21/LogistikoCRM-sub003/internal/apperr"
	"github.com/jimmi21/LogistikoCRM-sub003/internal/model"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates all tables, including the composite
// unique indexes the engine relies on for idempotence.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(
		&model.Client{},
		&model.ObligationType{},
		&model.ObligationProfile{},
		&model.ProfileGroup{},
		&model.Obligation{},
		&model.EmailTemplate{},
		&model.AutomationRule{},
		&model.RuleFire{},
		&model.EmailJob{},
		&model.EmailLog{},
		&model.Document{},
	)
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn against a transactional copy of the store.
func (s *Store) Transaction(fn func(tx *Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// translate folds gorm errors into the shared taxonomy.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.ErrDuplicate
	default:
		return err
	}
}

func wrap(what string, err error) error {
	if err == nil {
		return nil
	}
	if t := translate(err); t == apperr.ErrNotFound || t == apperr.ErrDuplicate {
		return t
	}
	return fmt.Errorf("%s: %w", what, err)
}
