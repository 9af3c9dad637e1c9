package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	filter "github.com/Stamhoofd/Stamhoofd-sub000"
)

// SQLOptions holds flags for the sql command.
type SQLOptions struct {
	Filter FilterFlags
	Order  []string
	Exec   bool
	DBPath string
}

// SQLResult is the output of the sql command.
type SQLResult struct {
	Where   string           `json:"where"`
	OrderBy string           `json:"order_by,omitempty"`
	Args    []any            `json:"args"`
	Rows    []map[string]any `json:"rows,omitempty"`
}

// NewSQLCommand creates the sql command.
func NewSQLCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SQLOptions{}

	cmd := &cobra.Command{
		Use:   "sql",
		Short: "Compile a filter to an SQL condition",
		Long: `Compile a filter to a parameterized SQL condition for the configured dialect,
using the fields declared in the config file.

With --exec, the condition is run against the configured SQLite database and
the matching rows are printed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSQL(rootOpts, opts, cmd)
		},
	}

	opts.Filter.register(cmd)
	cmd.Flags().StringArrayVar(&opts.Order, "order", nil, `ordering such as "age desc" (repeatable)`)
	cmd.Flags().BoolVar(&opts.Exec, "exec", false, "run against the SQLite database and print matching rows")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "SQLite database path (overrides config)")

	return cmd
}

func runSQL(rootOpts *RootOptions, opts *SQLOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
	log := rootOpts.logger()
	cfg := rootOpts.Config

	expr, err := opts.Filter.Load()
	if err != nil {
		_ = formatter.Error(err)
		return WrapExitError(ExitCommandError, "load filter", err)
	}

	compiler := cfg.SQLCompiler()
	cond, err := compiler.Compile(expr)
	if err != nil {
		_ = formatter.Error(err)
		return WrapExitError(ExitFailure, "compile filter", err)
	}

	ords, err := parseOrds(opts.Order)
	if err != nil {
		_ = formatter.Error(err)
		return WrapExitError(ExitCommandError, "parse ordering", err)
	}
	order, err := compiler.OrderBy(ords)
	if err != nil {
		_ = formatter.Error(err)
		return WrapExitError(ExitFailure, "compile ordering", err)
	}

	renderOpts := cfg.RenderOptions()
	where, args := filter.Render(cond, renderOpts)
	orderBy, _ := filter.Render(order, renderOpts)
	result := SQLResult{Where: where, OrderBy: orderBy, Args: args}
	log.Debug("compiled filter", "dialect", renderOpts.Dialect.String(), "args", len(args))

	if opts.Exec {
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

		rows, err := store.Select(cmd.Context(), cond, order)
		if err != nil {
			_ = formatter.Error(err)
			return WrapExitError(ExitCommandError, "run query", err)
		}
		log.Debug("query finished", "rows", len(rows))
		result.Rows = rows
	}

	return formatter.Success(result.text(), result)
}

func (r SQLResult) text() string {
	var b strings.Builder
	b.WriteString("WHERE ")
	b.WriteString(r.Where)
	if r.OrderBy != "" {
		b.WriteString("\n")
		b.WriteString(r.OrderBy)
	}
	fmt.Fprintf(&b, "\nargs: %v", r.Args)
	for _, row := range r.Rows {
		fmt.Fprintf(&b, "\n%v", row)
	}
	return b.String()
}
