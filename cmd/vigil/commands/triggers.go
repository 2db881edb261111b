package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// TriggersCmd represents the triggers command
var TriggersCmd = &cobra.Command{
	Use:   "triggers",
	Short: "Manage triggers",
	Long: `Trigger management.

Triggers are executables dropped into the triggers directory. Vigil never
installs or validates them beyond the execute bit; exit 0 means fired,
anything else means not fired. An optional sidecar (<name>.yaml, .yml or
.json) describes the trigger for listings.

Example:
  vigil triggers ls    # List installed triggers`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// TriggersLsCmd lists installed triggers
var TriggersLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List installed triggers",
	Long: `List executables in the triggers directory with any sidecar metadata.

Example:
  vigil triggers ls`,
	RunE: func(cmd *cobra.Command, args []string) error {
		api, cleanup, err := openControlAPI()
		if err != nil {
			return err
		}
		defer cleanup()

		triggers, err := api.ListTriggers()
		if err != nil {
			return err
		}

		if len(triggers) == 0 {
			fmt.Println("No triggers installed")
			return nil
		}

		fmt.Printf("%-20s %s\n", "TRIGGER", "DESCRIPTION")
		fmt.Printf("%-20s %s\n", "-------", "-----------")
		for _, t := range triggers {
			description := ""
			if t.Meta != nil {
				description = t.Meta.Description
			}
			fmt.Printf("%-20s %s\n", truncate(t.Name, 20), description)
		}
		fmt.Printf("\nTotal: %d trigger(s)\n", len(triggers))
		return nil
	},
}

func init() {
	TriggersCmd.AddCommand(TriggersLsCmd)
}
