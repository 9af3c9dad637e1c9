package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	filter "github.com/Stamhoofd/Stamhoofd-sub000"
)

// FilterFlags selects where a command reads its filter from.
type FilterFlags struct {
	JSON string
	CEL  string
	File string
}

func (f *FilterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.JSON, "filter", "f", "", "filter as inline JSON")
	cmd.Flags().StringVar(&f.CEL, "cel", "", "filter as an inline CEL expression")
	cmd.Flags().StringVar(&f.File, "filter-file", "", "filter file (.json, .yaml, .yml, .cel, .msgpack)")
	cmd.MarkFlagsMutuallyExclusive("filter", "cel", "filter-file")
}

// Load returns the selected filter. Without any flag the filter is empty and
// matches everything.
func (f FilterFlags) Load() (filter.Expr, error) {
	switch {
	case f.JSON != "":
		return filter.DecodeJSON([]byte(f.JSON))
	case f.CEL != "":
		return filter.ParseCEL(f.CEL)
	case f.File != "":
		return LoadFilterFile(f.File)
	}
	return filter.Object{}, nil
}

// LoadFilterFile reads a filter, choosing the decoder by file extension.
func LoadFilterFile(path string) (filter.Expr, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read filter: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return filter.DecodeJSON(data)
	case ".yaml", ".yml":
		var val any
		if err := yaml.Unmarshal(data, &val); err != nil {
			return nil, fmt.Errorf("parse filter %s: %w", path, err)
		}
		return filter.ExprOf(val)
	case ".cel":
		return filter.ParseCEL(string(data))
	case ".msgpack", ".mp":
		return filter.DecodeMsgpack(data)
	}
	return nil, fmt.Errorf("unsupported filter file extension %q", filepath.Ext(path))
}

// LoadRecords reads records from a JSON array, JSON lines or YAML list file.
func LoadRecords(path string) ([]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}

	var out []any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &out)
	case ".jsonl", ".ndjson":
		out, err = decodeJSONLines(data)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &out)
	default:
		return nil, fmt.Errorf("unsupported records file extension %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("parse records %s: %w", path, err)
	}
	return out, nil
}

func decodeJSONLines(data []byte) ([]any, error) {
	var out []any
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var record any
		if err := json.Unmarshal(text, &record); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, record)
	}
	return out, scanner.Err()
}

// parseOrds parses repeated --order values such as "age desc".
func parseOrds(vals []string) (filter.Ords, error) {
	var ords filter.Ords
	err := ords.ParseSlice(vals)
	return ords, err
}
