package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/declsql/internal/engine"
)

// NewQueryCommand creates the query command, which runs one JSON document
// against the configured target and prints the result.
func NewQueryCommand(load ConfigLoader) *cobra.Command {
	var (
		filePath string
		verb     string
		format   string
	)

	cmd := &cobra.Command{
		Use:   "query [document]",
		Short: "Run one query document against the configured database",
		Long: `Run a JSON query document and print the per-table results. The
document is taken from the argument, --file, or stdin, in that order.`,
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

			eng, err := newEngine(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			result, err := eng.Process(cmd.Context(), engine.Request{
				Body: body,
				Verb: strings.ToUpper(verb),
			})
			if err != nil {
				return err
			}

			return renderResult(cmd.OutOrStdout(), result, format)
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "read the query document from a file")
	cmd.Flags().StringVarP(&verb, "method", "m", "GET", "request method (GET|POST|PUT|DELETE|HEAD)")
	cmd.Flags().StringVarP(&format, "output", "o", "table", "output format (table|json)")

	return cmd
}

func readDocument(args []string, filePath string, stdin io.Reader) ([]byte, error) {
	switch {
	case len(args) == 1:
		return []byte(args[0]), nil
	case filePath != "":
		body, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", filePath, err)
		}
		return body, nil
	default:
		body, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		if len(body) == 0 {
			return nil, fmt.Errorf("no query document given")
		}
		return body, nil
	}
}
