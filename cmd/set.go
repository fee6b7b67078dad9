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

var setTenantID string

var setCmd = &cobra.Command{
	Use:   "set <path> <value>",
	Short: "Write a configuration value at a dot-separated path",
	Long: `Write a configuration value. The value argument is coerced: "true",
"false", and "null" become typed values, numeric literals become numbers
(integers too large for exact representation stay strings), and JSON
object/array literals are parsed. Anything else is stored as a string.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}

		coerced := confstore.CoerceString(args[1])
		section, err := store.Set(ctx, args[0], coerced.Value, setTenantID)
		if err != nil {
			return err
		}
		return printJSON(section)
	},
}

func init() {
	setCmd.Flags().StringVar(&setTenantID, "tenant", confstore.GlobalTenantID, "tenant id")
	rootCmd.AddCommand(setCmd)
}
