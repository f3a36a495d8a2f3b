package cli

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/ossinventory/pkg/inventory"
)

func (c *CLI) inspectCommand() *cobra.Command {
	var (
		interactive bool
		sorted      bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <oss-packages.csv>",
		Short: "Show the records of an inventory",
		Long: `Print an inventory written by fetch as a table, or browse it interactively
with --interactive. Only the csv format can be read back.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := inventory.ReadFile(args[0])
			if err != nil {
				return err
			}
			if sorted {
				inventory.Sort(records)
			}
			if len(records) == 0 {
				printInfo("Inventory is empty")
				return nil
			}

			if !interactive {
				fmt.Println(recordsTable(records))
				printDetail("%d packages, %d without license", len(records), countUnlicensed(records))
				return nil
			}

			p := tea.NewProgram(newInventoryModel(records), tea.WithContext(cmd.Context()), tea.WithOutput(os.Stderr))
			_, err = p.Run()
			return err
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "browse records interactively")
	cmd.Flags().BoolVar(&sorted, "sort", false, "sort by package and version")

	return cmd
}

func countUnlicensed(records []inventory.Record) int {
	n := 0
	for _, r := range records {
		if r.License == "" {
			n++
		}
	}
	return n
}
