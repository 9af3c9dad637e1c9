package cli

import (
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"

	filter "github.com/Stamhoofd/Stamhoofd-sub000"
)

// ConvertOptions holds flags for the convert command.
type ConvertOptions struct {
	Filter FilterFlags
	To     string
}

// ConvertResult is the output of the convert command.
type ConvertResult struct {
	Encoding string `json:"encoding"`
	Data     string `json:"data"`
}

// NewConvertCommand creates the convert command.
func NewConvertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConvertOptions{}

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a filter between wire formats",
		Long: `Read a filter from JSON, YAML, CEL or MessagePack and print it as canonical
JSON, or as base64-encoded MessagePack for storage.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(rootOpts, opts, cmd)
		},
	}

	opts.Filter.register(cmd)
	cmd.Flags().StringVar(&opts.To, "to", "json", "output encoding (json|msgpack)")

	return cmd
}

func runConvert(rootOpts *RootOptions, opts *ConvertOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}

	expr, err := opts.Filter.Load()
	if err != nil {
		_ = formatter.Error(err)
		return WrapExitError(ExitCommandError, "load filter", err)
	}

	var result ConvertResult
	switch opts.To {
	case "json":
		data, err := filter.EncodeJSON(expr)
		if err != nil {
			_ = formatter.Error(err)
			return WrapExitError(ExitFailure, "encode filter", err)
		}
		result = ConvertResult{Encoding: "json", Data: string(data)}
	case "msgpack":
		data, err := filter.EncodeMsgpack(expr)
		if err != nil {
			_ = formatter.Error(err)
			return WrapExitError(ExitFailure, "encode filter", err)
		}
		result = ConvertResult{Encoding: "msgpack+base64", Data: base64.StdEncoding.EncodeToString(data)}
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid encoding %q: must be json or msgpack", opts.To))
	}

	rootOpts.logger().Debug("converted filter", "encoding", result.Encoding, "size", len(result.Data))
	return formatter.Success(result.Data, result)
}
