package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	filter "github.com/Stamhoofd/Stamhoofd-sub000"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	Filter  FilterFlags
	Records string
	DBPath  string
	Key     string
}

// CheckResult is the output of the check command.
type CheckResult struct {
	Valid     bool     `json:"valid"`
	Compared  bool     `json:"compared"`
	Agree     bool     `json:"agree"`
	OnlyInMem []string `json:"only_in_memory,omitempty"`
	OnlyInSQL []string `json:"only_in_sql,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a filter with both compilers",
		Long: `Compile a filter in memory and to SQL, reporting the first error.

With --records and a database, also run the filter both ways and compare the
selected keys: the records file must hold the same rows as the table.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, opts, cmd)
		},
	}

	opts.Filter.register(cmd)
	cmd.Flags().StringVar(&opts.Records, "records", "", "records file to compare against the database")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "SQLite database path (overrides config)")
	cmd.Flags().StringVar(&opts.Key, "key", "id", "field identifying a record in both backends")

	return cmd
}

func runCheck(rootOpts *RootOptions, opts *CheckOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
	log := rootOpts.logger()
	cfg := rootOpts.Config

	expr, err := opts.Filter.Load()
	if err != nil {
		_ = formatter.Error(err)
		return WrapExitError(ExitCommandError, "load filter", err)
	}

	matcher, err := cfg.MemoryCompiler().Compile(expr)
	if err != nil {
		_ = formatter.Error(err)
		return WrapExitError(ExitFailure, "in-memory compile", err)
	}
	cond, err := cfg.SQLCompiler().Compile(expr)
	if err != nil {
		_ = formatter.Error(err)
		return WrapExitError(ExitFailure, "SQL compile", err)
	}

	result := CheckResult{Valid: true, Agree: true}
	if opts.Records == "" {
		return formatter.Success("✓ filter is valid", result)
	}

	records, err := LoadRecords(opts.Records)
	if err != nil {
		_ = formatter.Error(err)
		return WrapExitError(ExitCommandError, "load records", err)
	}
	matched, err := filter.Select(matcher, records)
	if err != nil {
		_ = formatter.Error(err)
		return WrapExitError(ExitFailure, "run filter", err)
	}

	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = cfg.DBPath
	}
	store, err := OpenStore(dbPath, cfg)
	if err != nil {
		_ = formatter.Error(err)
		return WrapExitError(ExitCommandError, "open database", err)
	}
	defer store.Close()

	rows, err := store.Select(cmd.Context(), cond, nil)
	if err != nil {
		_ = formatter.Error(err)
		return WrapExitError(ExitCommandError, "run query", err)
	}

	memKeys := make([]string, 0, len(matched))
	for _, record := range matched {
		memKeys = append(memKeys, keyString(filter.Resolve(record, opts.Key)))
	}
	sqlKeys := make([]string, 0, len(rows))
	for _, row := range rows {
		sqlKeys = append(sqlKeys, keyString(row[opts.Key]))
	}

	result.Compared = true
	result.OnlyInMem = difference(memKeys, sqlKeys)
	result.OnlyInSQL = difference(sqlKeys, memKeys)
	result.Agree = len(result.OnlyInMem) == 0 && len(result.OnlyInSQL) == 0
	log.Debug("compared backends", "memory", len(memKeys), "sql", len(sqlKeys))

	if !result.Agree {
		_ = formatter.Success(fmt.Sprintf("✗ backends disagree: only in memory %v, only in SQL %v",
			result.OnlyInMem, result.OnlyInSQL), result)
		return NewExitError(ExitFailure, "backends disagree")
	}
	return formatter.Success(fmt.Sprintf("✓ backends agree on %d record(s)", len(memKeys)), result)
}

// keyString formats keys so that JSON numbers and SQLite integers compare equal.
func keyString(val any) string {
	norm := filter.Normalize(val)
	if norm.Kind == filter.KindNumber {
		return fmt.Sprint(norm.Num)
	}
	return fmt.Sprint(val)
}

func difference(a, b []string) []string {
	var out []string
	for _, key := range a {
		if !slices.Contains(b, key) {
			out = append(out, key)
		}
	}
	return out
}
