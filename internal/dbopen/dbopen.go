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

// Package dbopen builds PostgreSQL connection URLs from the environment and
// opens pgx connection pools. A missing configuration is reported with
// ErrDatabaseNotConfigured so callers can select a memory-only degraded mode
// instead of failing outright.
package dbopen

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDatabaseNotConfigured indicates that no connection configuration is
// present in the environment. Callers treat this as a recognized degraded
// mode, not a hard failure.
var ErrDatabaseNotConfigured = errors.New("database connection configuration is unavailable")

// URLFromEnv constructs a PostgreSQL URL from environment variables named
// PREFIX_HOST, PREFIX_PORT, PREFIX_USER, PREFIX_PASSWORD, PREFIX_DBNAME, and
// optionally PREFIX_SSLMODE. If PREFIX_URL is set it is returned directly.
// If PREFIX does not end in "_", it is added automatically.
//
// HOST and DBNAME are required; PORT defaults to 5432. Missing required
// variables produce ErrDatabaseNotConfigured.
func URLFromEnv(prefix string) (string, error) {
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}

	if urlStr := os.Getenv(prefix + "URL"); urlStr != "" {
		return urlStr, nil
	}

	host := os.Getenv(prefix + "HOST")
	dbname := os.Getenv(prefix + "DBNAME")

	var missing []string
	if host == "" {
		missing = append(missing, prefix+"HOST")
	}
	if dbname == "" {
		missing = append(missing, prefix+"DBNAME")
	}
	if len(missing) > 0 {
		return "", errors.Join(ErrDatabaseNotConfigured,
			fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", ")))
	}

	port := os.Getenv(prefix + "PORT")
	if port == "" {
		port = "5432"
	}

	u := &url.URL{
		Scheme: "postgresql",
		Host:   host + ":" + port,
		Path:   dbname,
	}

	if user := os.Getenv(prefix + "USER"); user != "" {
		if pass := os.Getenv(prefix + "PASSWORD"); pass != "" {
			u.User = url.UserPassword(user, pass)
		} else {
			u.User = url.User(user)
		}
	}

	q := u.Query()
	if sslmode := os.Getenv(prefix + "SSLMODE"); sslmode != "" {
		q.Set("sslmode", sslmode)
	}
	if appName := os.Getenv(prefix + "APPNAME"); appName != "" && q.Get("application_name") == "" {
		q.Set("application_name", sanitizeAppName(appName))
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// NewConnectionPool opens a pgx v5 connection pool for the given URL.
func NewConnectionPool(ctx context.Context, connURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection url: %w", err)
	}
	return pgxpool.NewWithConfig(ctx, cfg)
}

// sanitizeAppName restricts the application_name parameter to characters
// Postgres accepts without quoting, truncated to the 63-byte identifier limit.
func sanitizeAppName(name string) string {
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') ||
			r == '-' || r == '_' {
			return r
		}
		return '_'
	}, name)
	if len(name) > 63 {
		name = name[:63]
	}
	return name
}
