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

// Package config loads the service configuration from files and the
// environment.
package config

import (
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

// Config aggregates configuration for the application.
type Config struct {
	Seed     SeedConfig     `mapstructure:"seed"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Database DatabaseConfig `mapstructure:"database"`
}

// SeedConfig locates the baseline defaults document.
type SeedConfig struct {
	Path string `mapstructure:"path"`
}

// CacheConfig sizes the in-memory caches.
type CacheConfig struct {
	MergedViews int `mapstructure:"merged_views"`
}

// DatabaseConfig selects where connection settings are read from.
type DatabaseConfig struct {
	EnvPrefix string `mapstructure:"env_prefix"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Seed:     SeedConfig{Path: "defaults.yaml"},
		Cache:    CacheConfig{MergedViews: 128},
		Database: DatabaseConfig{EnvPrefix: "CONFDB"},
	}
}

// Load reads configuration from an optional config file and environment
// variables. Environment variables use the prefix "TENANTCONF" with dots
// replaced by underscores, so "seed.path" becomes "TENANTCONF_SEED_PATH".
func Load() (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("TENANTCONF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.ReadInConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
