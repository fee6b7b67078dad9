// Copyright (C) 2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package confdb is the persistence layer for tenant configuration
// sections: one row per (tenant_id, section_name) holding an opaque JSONB
// value. All writes are transactional; multi-step mutations go through
// execTx so any failure rolls back fully.
package confdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides all functions to execute db queries and transactions.
type Store struct {
	*Queries
	connPool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given pool.
func NewStore(connPool *pgxpool.Pool) *Store {
	return &Store{
		Queries:  New(connPool),
		connPool: connPool,
	}
}

func (store *Store) Pool() *pgxpool.Pool {
	return store.connPool
}

// Close closes the underlying connection pool.
func (store *Store) Close() {
	if store.connPool != nil {
		store.connPool.Close()
	}
}

func (store *Store) execTx(ctx context.Context, fn func(*Store) error) (err error) {
	tx, err := store.connPool.Begin(ctx)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		// Use a timeout to prevent infinite hangs during cleanup.
		// Never use the caller ctx for cleanup as it may be cancelled.
		rbCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if rbErr := tx.Rollback(rbCtx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			if err != nil {
				err = errors.Join(err, fmt.Errorf("rollback failed: %w", rbErr))
			} else {
				err = fmt.Errorf("rollback failed: %w", rbErr)
			}
		}
	}()

	txStore := &Store{
		Queries:  New(tx),
		connPool: store.connPool,
	}

	if err = fn(txStore); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	committed = true
	return nil
}

// UpdateSectionLocked opens a transaction, locks the (tenantID, sectionName)
// row for its duration, applies mutate to the current value (or an empty
// object if the row is absent), writes the result back, and commits. Two
// concurrent updates of the same row serialize on the lock, so neither is
// lost even though each rewrites the whole section value.
func (store *Store) UpdateSectionLocked(ctx context.Context, tenantID, sectionName string, mutate func(map[string]any) (map[string]any, error)) (map[string]any, error) {
	var updated map[string]any
	err := store.execTx(ctx, func(s *Store) error {
		current, err := s.GetSectionForUpdate(ctx, tenantID, sectionName)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				current = map[string]any{}
			} else {
				return fmt.Errorf("lock section %s/%s: %w", tenantID, sectionName, err)
			}
		}

		updated, err = mutate(current)
		if err != nil {
			return err
		}

		return s.UpsertSection(ctx, UpsertSectionParams{
			TenantID:    tenantID,
			SectionName: sectionName,
			Value:       updated,
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpsertSections writes every given section for a tenant in one transaction.
// Used to seed the global tenant from the defaults document.
func (store *Store) UpsertSections(ctx context.Context, tenantID string, sections map[string]map[string]any) error {
	return store.execTx(ctx, func(s *Store) error {
		for name, value := range sections {
			if err := s.UpsertSection(ctx, UpsertSectionParams{
				TenantID:    tenantID,
				SectionName: name,
				Value:       value,
			}); err != nil {
				return fmt.Errorf("upsert section %s/%s: %w", tenantID, name, err)
			}
		}
		return nil
	})
}

// ReplaceTenantSections makes the tenant's rows exactly match the given
// sections in one transaction: every listed section is upserted and every
// row not listed is deleted.
func (store *Store) ReplaceTenantSections(ctx context.Context, tenantID string, sections map[string]map[string]any) error {
	return store.execTx(ctx, func(s *Store) error {
		existing, err := s.ListSectionNames(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("list sections for %s: %w", tenantID, err)
		}
		for _, name := range existing {
			if _, ok := sections[name]; ok {
				continue
			}
			if err := s.DeleteSection(ctx, tenantID, name); err != nil {
				return fmt.Errorf("delete stale section %s/%s: %w", tenantID, name, err)
			}
		}
		for name, value := range sections {
			if err := s.UpsertSection(ctx, UpsertSectionParams{
				TenantID:    tenantID,
				SectionName: name,
				Value:       value,
			}); err != nil {
				return fmt.Errorf("upsert section %s/%s: %w", tenantID, name, err)
			}
		}
		return nil
	})
}
