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
	"github.com/spf13/cobra"

	"github.com/cardinalhq/tenantconf/confstore"
)

var resetTenantID string

var resetCmd = &cobra.Command{
	Use:   "reset [section]",
	Short: "Remove a tenant's overrides, or restore global defaults from the seed",
	Long: `For a tenant, remove its override for the named section, or every
override when no section is given. For the global tenant, restore the named
section (or all sections) to the seed document's baseline.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}

		sectionName := ""
		if len(args) == 1 {
			sectionName = args[0]
		}

		tree, err := store.Reset(ctx, sectionName, resetTenantID)
		if err != nil {
			return err
		}
		return printJSON(tree)
	},
}

func init() {
	resetCmd.Flags().StringVar(&resetTenantID, "tenant", confstore.GlobalTenantID, "tenant id")
	rootCmd.AddCommand(resetCmd)
}
