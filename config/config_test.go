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

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "defaults.yaml", cfg.Seed.Path)
	assert.Equal(t, 128, cfg.Cache.MergedViews)
	assert.Equal(t, "CONFDB", cfg.Database.EnvPrefix)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TENANTCONF_SEED_PATH", "/etc/tenantconf/seed.json")
	t.Setenv("TENANTCONF_CACHE_MERGED_VIEWS", "16")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/etc/tenantconf/seed.json", cfg.Seed.Path)
	assert.Equal(t, 16, cfg.Cache.MergedViews)
}
