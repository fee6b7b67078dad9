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

package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/tenantconf/confdb"
	"github.com/cardinalhq/tenantconf/config"
	"github.com/cardinalhq/tenantconf/confstore"
)

var verbose bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tenantconf",
	Short: "Multi-tenant hierarchical configuration store",
	Long:  `Manage global default configuration and per-tenant overrides backed by PostgreSQL.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// openStore loads the service configuration, opens the database when one is
// configured, and returns a hydrated store.
func openStore(ctx context.Context) (*confstore.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	db, err := confdb.Open(ctx, cfg.Database.EnvPrefix)
	if err != nil {
		return nil, err
	}

	return confstore.Open(ctx, confstore.Options{
		DB:             db,
		SeedPath:       cfg.Seed.Path,
		MergeCacheSize: cfg.Cache.MergedViews,
	})
}
