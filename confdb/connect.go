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
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cardinalhq/tenantconf/confdb/migrations"
	"github.com/cardinalhq/tenantconf/internal/dbopen"
)

// DefaultEnvPrefix is the environment variable prefix the configuration
// database connection is read from (CONFDB_URL, CONFDB_HOST, ...).
const DefaultEnvPrefix = "CONFDB"

// Connect opens a connection pool to the configuration database using the
// environment and verifies the schema is at the expected migration version.
// An unconfigured environment yields dbopen.ErrDatabaseNotConfigured.
func Connect(ctx context.Context, envPrefix string, opts ...migrations.CheckOption) (*pgxpool.Pool, error) {
	if envPrefix == "" {
		envPrefix = DefaultEnvPrefix
	}
	connURL, err := dbopen.URLFromEnv(envPrefix)
	if err != nil {
		return nil, err
	}

	pool, err := dbopen.NewConnectionPool(ctx, connURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection pool: %w", err)
	}

	if err := migrations.CheckVersion(ctx, pool, opts...); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration version check failed: %w", err)
	}

	return pool, nil
}

// Open connects and wraps the pool in a Store. When the environment has no
// database configuration it returns (nil, nil): callers run memory-only.
func Open(ctx context.Context, envPrefix string, opts ...migrations.CheckOption) (*Store, error) {
	pool, err := Connect(ctx, envPrefix, opts...)
	if err != nil {
		if errors.Is(err, dbopen.ErrDatabaseNotConfigured) {
			return nil, nil
		}
		return nil, err
	}
	return NewStore(pool), nil
}
