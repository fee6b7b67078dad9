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

// Package migrations holds the embedded schema migrations for the
// configuration database and the helpers to apply and verify them.
package migrations

import "embed"

//go:embed *.sql
var migrationFiles embed.FS

// MigrationsTable is the golang-migrate bookkeeping table for this database.
const MigrationsTable = "gomigrate_tenantconf"
