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

package confstore

import "errors"

var (
	// ErrSeedNotFound indicates the seed defaults document does not exist
	// and no cached copy is available.
	ErrSeedNotFound = errors.New("seed document not found")

	// ErrSeedParse indicates the seed defaults document is not a
	// well-formed tree of named sections.
	ErrSeedParse = errors.New("seed document is malformed")

	// ErrNoSeed indicates a global reset was requested but no seed
	// baseline is available to reset to.
	ErrNoSeed = errors.New("no seed document available for reset")

	// ErrInvalidPath indicates a malformed, too deep, too long, or
	// reserved-key configuration path. Rejected before any I/O.
	ErrInvalidPath = errors.New("invalid configuration path")
)
