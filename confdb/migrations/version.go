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

package migrations

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cardinalhq/tenantconf/internal/logctx"
)

// CheckMode defines how migration version checking behaves.
type CheckMode int

const (
	// CheckModeWait waits for migrations to complete, failing if they do
	// not complete within the timeout.
	CheckModeWait CheckMode = iota
	// CheckModeWarn logs version mismatches but continues.
	CheckModeWarn
	// CheckModeSkip skips migration checking entirely.
	CheckModeSkip
)

// CheckOptions controls CheckVersion behavior.
type CheckOptions struct {
	Mode          CheckMode
	Timeout       time.Duration
	RetryInterval time.Duration
	AllowDirty    bool
}

// CheckOption mutates CheckOptions.
type CheckOption func(*CheckOptions)

// WithCheckMode sets the check mode.
func WithCheckMode(mode CheckMode) CheckOption {
	return func(opts *CheckOptions) {
		opts.Mode = mode
	}
}

// WithTimeout sets how long CheckModeWait waits for migrations to land.
func WithTimeout(timeout time.Duration) CheckOption {
	return func(opts *CheckOptions) {
		opts.Timeout = timeout
	}
}

// WithRetryInterval sets the interval between version checks while waiting.
func WithRetryInterval(interval time.Duration) CheckOption {
	return func(opts *CheckOptions) {
		opts.RetryInterval = interval
	}
}

// WithAllowDirty allows proceeding even if migrations are in a dirty state.
func WithAllowDirty(allow bool) CheckOption {
	return func(opts *CheckOptions) {
		opts.AllowDirty = allow
	}
}

// DefaultCheckOptions returns the defaults used when no options are given.
func DefaultCheckOptions() CheckOptions {
	return CheckOptions{
		Mode:          CheckModeWait,
		Timeout:       60 * time.Second,
		RetryInterval: 5 * time.Second,
	}
}

// CheckVersion verifies that the database is at the migration version implied
// by the embedded migration files, waiting, warning, or skipping per the
// options.
func CheckVersion(ctx context.Context, pool *pgxpool.Pool, opts ...CheckOption) error {
	options := DefaultCheckOptions()
	for _, opt := range opts {
		opt(&options)
	}
	ll := logctx.FromContext(ctx)

	if options.Mode == CheckModeSkip {
		ll.Debug("Migration version checking skipped")
		return nil
	}

	expectedVersion, err := latestEmbeddedVersion()
	if err != nil {
		return fmt.Errorf("failed to extract expected migration version: %w", err)
	}

	deadline := time.Now().Add(options.Timeout)
	ticker := time.NewTicker(options.RetryInterval)
	defer ticker.Stop()

	for {
		currentVersion, dirty, err := currentVersion(pool)
		if err != nil {
			return fmt.Errorf("failed to get current migration version: %w", err)
		}

		if dirty && !options.AllowDirty {
			return fmt.Errorf("migration is in dirty state, please fix before proceeding")
		}
		if dirty {
			ll.Warn("Migration is dirty but allowed to continue")
		}

		if currentVersion == expectedVersion {
			ll.Debug("Migration version check passed",
				"version", currentVersion)
			return nil
		}

		if currentVersion > expectedVersion {
			err := fmt.Errorf("database version %d is newer than expected version %d - you may need to update the application",
				currentVersion, expectedVersion)
			if options.Mode == CheckModeWarn {
				ll.Warn("Migration version mismatch", "error", err)
				return nil
			}
			return err
		}

		// currentVersion < expectedVersion
		if options.Mode == CheckModeWarn {
			ll.Warn("Database is behind expected migration version",
				"current_version", currentVersion,
				"expected_version", expectedVersion)
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for migration to complete: current version %d, expected %d",
				currentVersion, expectedVersion)
		}

		ll.Info("Waiting for migrations to complete",
			"current_version", currentVersion,
			"expected_version", expectedVersion,
			"remaining_timeout", time.Until(deadline))

		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled while waiting for migrations: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// latestEmbeddedVersion extracts the highest migration version from the
// embedded migration files, named like "1767225600_initial.up.sql".
func latestEmbeddedVersion() (uint, error) {
	entries, err := migrationFiles.ReadDir(".")
	if err != nil {
		return 0, fmt.Errorf("failed to read migration directory: %w", err)
	}

	var maxVersion uint
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		prefix, _, found := strings.Cut(name, "_")
		if !found {
			continue
		}
		version, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			continue
		}
		if uint(version) > maxVersion {
			maxVersion = uint(version)
		}
	}

	if maxVersion == 0 {
		return 0, fmt.Errorf("no valid migration files found")
	}
	return maxVersion, nil
}

// currentVersion reads the applied migration version from the database.
func currentVersion(pool *pgxpool.Pool) (uint, bool, error) {
	m, cleanup, err := newMigrator(pool)
	if err != nil {
		return 0, false, err
	}
	defer cleanup()

	version, dirty, err := m.Version()
	if err != nil {
		if err == migrate.ErrNilVersion {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, dirty, nil
}
