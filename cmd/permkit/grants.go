package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/permkit-dev/permkit/internal/domain/capabilities"
	"github.com/permkit-dev/permkit/internal/infrastructure/platform"
)

// grantsCmd manages the standing grants store.
var grantsCmd = &cobra.Command{
	Use:   "grants",
	Short: "Manage standing capability grants",
	Long: `Standing grants are capabilities treated as already granted by every
scenario run with --stored-grants. They live in a YAML file under the user's
config directory.`,
}

var grantsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List standing grants",
	RunE: func(_ *cobra.Command, _ []string) error {
		store := grantStore()
		grants, err := store.Load()
		if err != nil {
			return err
		}

		if len(grants) == 0 {
			fmt.Fprintf(os.Stdout, "no standing grants (%s)\n", store.ConfigPath())
			return nil
		}
		for _, id := range grants {
			fmt.Fprintln(os.Stdout, id)
		}
		return nil
	},
}

var grantsAddCmd = &cobra.Command{
	Use:   "add <capability>...",
	Short: "Add standing grants",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		store := grantStore()
		grants, err := store.Load()
		if err != nil {
			return err
		}

		existing := make(map[capabilities.ID]bool, len(grants))
		for _, id := range grants {
			existing[id] = true
		}

		added := 0
		for _, raw := range args {
			id := capabilities.ID(raw)
			if id.IsZero() || existing[id] {
				continue
			}
			existing[id] = true
			grants = append(grants, id)
			added++
		}

		if err := store.Save(grants); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "added %d grants (%d total)\n", added, len(grants))
		return nil
	},
}

var grantsRemoveCmd = &cobra.Command{
	Use:   "remove <capability>...",
	Short: "Remove standing grants",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		store := grantStore()
		grants, err := store.Load()
		if err != nil {
			return err
		}

		drop := make(map[capabilities.ID]bool, len(args))
		for _, raw := range args {
			drop[capabilities.ID(raw)] = true
		}

		kept := grants[:0]
		for _, id := range grants {
			if !drop[id] {
				kept = append(kept, id)
			}
		}

		if err := store.Save(kept); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "removed %d grants (%d remain)\n", len(grants)-len(kept), len(kept))
		return nil
	},
}

func grantStore() *platform.GrantStore {
	return platform.NewGrantStore(viper.GetString("grants_file"))
}

func init() {
	grantsCmd.AddCommand(grantsListCmd)
	grantsCmd.AddCommand(grantsAddCmd)
	grantsCmd.AddCommand(grantsRemoveCmd)
	rootCmd.AddCommand(grantsCmd)
}
