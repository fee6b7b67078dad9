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
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/tenantconf/confstore"
)

var getTenantID string

var getCmd = &cobra.Command{
	Use:   "get [path]",
	Short: "Print a tenant's effective configuration, or the value at a path",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}

		tree, err := store.Get(ctx, getTenantID)
		if err != nil {
			return err
		}

		var out any = tree
		if len(args) == 1 {
			value, ok := lookupPath(tree, args[0])
			if !ok {
				return fmt.Errorf("no value at path %q", args[0])
			}
			out = value
		}
		return printJSON(out)
	},
}

func init() {
	getCmd.Flags().StringVar(&getTenantID, "tenant", confstore.GlobalTenantID, "tenant id")
	rootCmd.AddCommand(getCmd)
}

// lookupPath walks a dot-separated path through a configuration tree.
func lookupPath(tree map[string]any, path string) (any, bool) {
	var current any = tree
	for _, seg := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = node[seg]; !ok {
			return nil, false
		}
	}
	return current, true
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
