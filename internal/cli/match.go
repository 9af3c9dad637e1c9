package cli

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	filter "github.com/Stamhoofd/Stamhoofd-sub000"
)

// MatchOptions holds flags for the match command.
type MatchOptions struct {
	Filter FilterFlags
	Order  []string
}

// MatchResult is the output of the match command.
type MatchResult struct {
	Total   int   `json:"total"`
	Matched int   `json:"matched"`
	Records []any `json:"records"`
}

// NewMatchCommand creates the match command.
func NewMatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MatchOptions{}

	cmd := &cobra.Command{
		Use:   "match <records-file>",
		Short: "Run a filter against records in memory",
		Long: `Run a filter against records loaded from a JSON, JSON lines or YAML file and
print the matching records, optionally sorted.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(rootOpts, opts, args[0], cmd)
		},
	}

	opts.Filter.register(cmd)
	cmd.Flags().StringArrayVar(&opts.Order, "order", nil, `ordering such as "age desc" (repeatable)`)

	return cmd
}

func runMatch(rootOpts *RootOptions, opts *MatchOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
	log := rootOpts.logger()

	expr, err := opts.Filter.Load()
	if err != nil {
		_ = formatter.Error(err)
		return WrapExitError(ExitCommandError, "load filter", err)
	}

	records, err := LoadRecords(path)
	if err != nil {
		_ = formatter.Error(err)
		return WrapExitError(ExitCommandError, "load records", err)
	}
	log.Debug("records loaded", "path", path, "count", len(records))

	matcher, err := rootOpts.Config.MemoryCompiler().Compile(expr)
	if err != nil {
		_ = formatter.Error(err)
		return WrapExitError(ExitFailure, "compile filter", err)
	}

	matched, err := filter.Select(matcher, records)
	if err != nil {
		_ = formatter.Error(err)
		return WrapExitError(ExitFailure, "run filter", err)
	}

	ords, err := parseOrds(opts.Order)
	if err != nil {
		_ = formatter.Error(err)
		return WrapExitError(ExitCommandError, "parse ordering", err)
	}
	filter.SortRecords(ords, matched)

	if matched == nil {
		matched = []any{}
	}
	result := MatchResult{Total: len(records), Matched: len(matched), Records: matched}
	return formatter.Success(result.text(), result)
}

func (r MatchResult) text() string {
	lines := make([]string, 0, len(r.Records))
	for _, record := range r.Records {
		line, err := json.Marshal(record)
		if err != nil {
			continue
		}
		lines = append(lines, string(line))
	}
	return strings.Join(lines, "\n")
}
