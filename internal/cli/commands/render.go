package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/declsql/internal/parser"
	"github.com/leapstack-labs/declsql/internal/sqlbuild"
	"github.com/leapstack-labs/declsql/internal/verify"
	"github.com/leapstack-labs/declsql/pkg/core"
)

// NewRenderCommand creates the render command, which compiles a query
// document to SQL without touching the database.
func NewRenderCommand(load ConfigLoader) *cobra.Command {
	var (
		filePath string
		verb     string
		literal  bool
	)

	cmd := &cobra.Command{
		Use:   "render [document]",
		Short: "Compile a query document to SQL without executing it",
		Long: `Parse, verify, and compile a JSON query document, printing the SQL
that would run. Reference values are shown as placeholders since they
are only resolved during execution.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readDocument(args, filePath, cmd.InOrStdin())
			if err != nil {
				return err
			}

			cfg, _, err := load(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg.LogLevel)

			parsed, err := parser.New(cfg.Limits, logger).Parse(body, strings.ToUpper(verb))
			if err != nil {
				return err
			}
			if result := verify.New(cfg.Limits, logger).Verify(parsed); !result.Valid() {
				return result.Err()
			}

			builder, err := sqlbuild.New(cfg.Target.Type, cfg.Limits, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, tq := range parsed.Tables {
				// References resolve at execution time; stand in the path
				// so the preview still compiles.
				for _, ref := range tq.Refs {
					for i := range tq.Conditions {
						if _, ok := tq.Conditions[i].Value.(core.Reference); ok && tq.Conditions[i].Field == ref.OwnerField {
							tq.Conditions[i].Value = ref.Path
						}
					}
					if _, ok := tq.Payload[ref.OwnerField].(core.Reference); ok {
						tq.Payload[ref.OwnerField] = ref.Path
					}
				}
				if literal {
					sql, err := builder.Render(tq)
					if err != nil {
						return err
					}
					_, _ = fmt.Fprintf(out, "-- %s\n%s\n\n", tq.Table, sql)
					continue
				}
				built, err := builder.Build(tq)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "-- %s\n%s\n", tq.Table, built.SQL)
				if len(built.Params) > 0 {
					_, _ = fmt.Fprintf(out, "-- params: %v\n", built.Params)
				}
				_, _ = fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "read the query document from a file")
	cmd.Flags().StringVarP(&verb, "method", "m", "GET", "request method (GET|POST|PUT|DELETE|HEAD)")
	cmd.Flags().BoolVar(&literal, "literal", false, "inline values instead of bind placeholders")

	return cmd
}
