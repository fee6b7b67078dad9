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

package confdb

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so the same queries
// run inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries executes individual statements against a DBTX.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// SectionRow is one persisted configuration section.
type SectionRow struct {
	TenantID    string
	SectionName string
	Value       map[string]any
	UpdatedAt   time.Time
}

// UpsertSectionParams identifies a section and the value to write.
type UpsertSectionParams struct {
	TenantID    string
	SectionName string
	Value       map[string]any
}

const fetchAllSectionsSQL = `
SELECT tenant_id, section_name, value, updated_at
FROM tenant_config_sections
ORDER BY tenant_id, section_name`

// FetchAllSections returns every persisted section row for every tenant.
func (q *Queries) FetchAllSections(ctx context.Context) ([]SectionRow, error) {
	rows, err := q.db.Query(ctx, fetchAllSectionsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SectionRow
	for rows.Next() {
		var row SectionRow
		if err := rows.Scan(&row.TenantID, &row.SectionName, &row.Value, &row.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

const getSectionSQL = `
SELECT value
FROM tenant_config_sections
WHERE tenant_id = $1 AND section_name = $2`

// GetSection returns one section's value, or pgx.ErrNoRows if absent.
func (q *Queries) GetSection(ctx context.Context, tenantID, sectionName string) (map[string]any, error) {
	var value map[string]any
	err := q.db.QueryRow(ctx, getSectionSQL, tenantID, sectionName).Scan(&value)
	if err != nil {
		return nil, err
	}
	return value, nil
}

const getSectionForUpdateSQL = `
SELECT value
FROM tenant_config_sections
WHERE tenant_id = $1 AND section_name = $2
FOR UPDATE`

// GetSectionForUpdate reads one section's value under a row lock. Must run
// inside a transaction; the lock is held until commit or rollback.
func (q *Queries) GetSectionForUpdate(ctx context.Context, tenantID, sectionName string) (map[string]any, error) {
	var value map[string]any
	err := q.db.QueryRow(ctx, getSectionForUpdateSQL, tenantID, sectionName).Scan(&value)
	if err != nil {
		return nil, err
	}
	return value, nil
}

const upsertSectionSQL = `
INSERT INTO tenant_config_sections (tenant_id, section_name, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (tenant_id, section_name)
DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

// UpsertSection writes one section value, replacing any existing row.
func (q *Queries) UpsertSection(ctx context.Context, params UpsertSectionParams) error {
	_, err := q.db.Exec(ctx, upsertSectionSQL, params.TenantID, params.SectionName, params.Value)
	return err
}

const deleteSectionSQL = `
DELETE FROM tenant_config_sections
WHERE tenant_id = $1 AND section_name = $2`

// DeleteSection removes one section row. Deleting an absent row is not an
// error.
func (q *Queries) DeleteSection(ctx context.Context, tenantID, sectionName string) error {
	_, err := q.db.Exec(ctx, deleteSectionSQL, tenantID, sectionName)
	return err
}

const deleteTenantSQL = `
DELETE FROM tenant_config_sections
WHERE tenant_id = $1`

// DeleteTenant removes every section row for a tenant.
func (q *Queries) DeleteTenant(ctx context.Context, tenantID string) error {
	_, err := q.db.Exec(ctx, deleteTenantSQL, tenantID)
	return err
}

const listSectionNamesSQL = `
SELECT section_name
FROM tenant_config_sections
WHERE tenant_id = $1
ORDER BY section_name`

// ListSectionNames returns the section names persisted for a tenant.
func (q *Queries) ListSectionNames(ctx context.Context, tenantID string) ([]string, error) {
	rows, err := q.db.Query(ctx, listSectionNamesSQL, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

var _ DBTX = (*pgxpool.Pool)(nil)
