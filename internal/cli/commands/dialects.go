package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/declsql/pkg/adapter"
	"github.com/leapstack-labs/declsql/pkg/dialect"

	// All dialects self-register for the listing.
	_ "github.com/leapstack-labs/declsql/pkg/dialects/ansi"
	_ "github.com/leapstack-labs/declsql/pkg/dialects/clickhouse"
	_ "github.com/leapstack-labs/declsql/pkg/dialects/db2"
	_ "github.com/leapstack-labs/declsql/pkg/dialects/mysql"
	_ "github.com/leapstack-labs/declsql/pkg/dialects/oracle"
	_ "github.com/leapstack-labs/declsql/pkg/dialects/postgres"
	_ "github.com/leapstack-labs/declsql/pkg/dialects/sqlite"
	_ "github.com/leapstack-labs/declsql/pkg/dialects/sqlserver"
	_ "github.com/leapstack-labs/declsql/pkg/dialects/tidb"
)

// NewDialectsCommand creates the dialects command.
func NewDialectsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dialects",
		Short: "List supported SQL dialects and database adapters",
		Run: func(cmd *cobra.Command, _ []string) {
			adapters := make(map[string]bool)
			for _, name := range adapter.ListAdapters() {
				adapters[name] = true
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Dialect", "Quote", "Default Schema", "Adapter"})

			for _, name := range dialect.List() {
				d, _ := dialect.Get(name)
				driver := "render only"
				if adapters[name] {
					driver = "available"
				}
				t.AppendRow(table.Row{name, d.Identifiers.Quote, d.DefaultSchema, driver})
			}

			t.Render()
		},
	}
}
