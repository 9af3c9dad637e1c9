// Package config loads filterc settings from a YAML file with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	filter "github.com/Stamhoofd/Stamhoofd-sub000"
)

// Field kinds accepted in the `fields` section.
const (
	KindColumn   = "column"
	KindJSON     = "json"
	KindArray    = "array"
	KindRelation = "relation"
)

// FieldConfig describes one filterable field.
type FieldConfig struct {
	Kind     string `yaml:"kind"`
	Column   string `yaml:"column"`
	Path     string `yaml:"path"`
	Nullable bool   `yaml:"nullable"`

	// Relation fields only.
	Table      string                 `yaml:"table"`
	Alias      string                 `yaml:"alias"`
	ForeignKey string                 `yaml:"foreign_key"`
	ParentKey  string                 `yaml:"parent_key"`
	Fields     map[string]FieldConfig `yaml:"fields"`
}

// Config holds the settings shared by all commands.
type Config struct {
	Dialect   filter.Dialect         `yaml:"dialect"`
	DBPath    string                 `yaml:"db"`
	Table     string                 `yaml:"table"`
	Namespace string                 `yaml:"namespace"`
	MaxDepth  int                    `yaml:"max_depth"`
	Operators []string               `yaml:"operators"`
	Fields    map[string]FieldConfig `yaml:"fields"`

	// Unicode case folding for SQLite, see filter.RenderOptions.
	UnicodeFold bool `yaml:"unicode_fold"`
}

// Default returns the configuration used without a config file.
func Default() Config {
	return Config{
		Dialect:  filter.SQLite,
		MaxDepth: filter.DefaultMaxDepth,
	}
}

// Load reads the config file, if any, and applies FILTERC_* overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := env("FILTERC_DIALECT", ""); v != "" {
		dialect, err := filter.ParseDialect(v)
		if err != nil {
			return Config{}, err
		}
		cfg.Dialect = dialect
	}
	cfg.DBPath = env("FILTERC_DB", cfg.DBPath)
	cfg.Table = env("FILTERC_TABLE", cfg.Table)
	cfg.Namespace = env("FILTERC_NAMESPACE", cfg.Namespace)
	cfg.MaxDepth = envInt("FILTERC_MAX_DEPTH", cfg.MaxDepth)
	cfg.UnicodeFold = envBool("FILTERC_UNICODE_FOLD", cfg.UnicodeFold)

	return cfg, cfg.Validate()
}

// Validate checks field definitions.
func (c Config) Validate() error {
	return validateFields("", c.Fields)
}

func validateFields(prefix string, fields map[string]FieldConfig) error {
	var errs []error
	for name, field := range fields {
		if err := field.validate(prefix + name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f FieldConfig) validate(name string) error {
	switch f.Kind {
	case "", KindColumn, KindJSON, KindArray:
		if f.Column == "" {
			return fmt.Errorf("field %q: column is required", name)
		}
		return nil
	case KindRelation:
		if f.Table == "" || f.ForeignKey == "" || f.ParentKey == "" {
			return fmt.Errorf("field %q: relation needs table, foreign_key and parent_key", name)
		}
		return validateFields(name+".", f.Fields)
	}
	return fmt.Errorf("field %q: unknown kind %q", name, f.Kind)
}

// SQLFields converts the field definitions for the SQL compiler.
func (c Config) SQLFields() filter.Fields {
	return sqlFields(c.Fields)
}

func sqlFields(fields map[string]FieldConfig) filter.Fields {
	out := make(filter.Fields, len(fields))
	for name, field := range fields {
		out[name] = field.sqlField()
	}
	return out
}

func (f FieldConfig) sqlField() filter.Field {
	switch f.Kind {
	case KindJSON:
		return filter.JSONField(f.Column, f.Path)
	case KindArray:
		return filter.JSONArrayField(f.Column, f.Path)
	case KindRelation:
		return filter.RelationField(filter.Relation{
			Table:      f.Table,
			Alias:      f.Alias,
			ForeignKey: f.ForeignKey,
			ParentKey:  f.ParentKey,
		}, sqlFields(f.Fields))
	}
	return filter.ColumnField(f.Column, f.Nullable)
}

// SQLCompiler builds the SQL compiler described by the config.
func (c Config) SQLCompiler() filter.SQLCompiler {
	out := filter.SQLCompiler{Fields: c.SQLFields(), MaxDepth: c.MaxDepth}
	if len(c.Operators) > 0 {
		out.Ops = filter.Restrict(filter.DefaultSQLOps(), c.Operators...)
	}
	return out
}

// MemoryCompiler builds the in-memory compiler described by the config.
func (c Config) MemoryCompiler() filter.MemoryCompiler {
	out := filter.MemoryCompiler{MaxDepth: c.MaxDepth}
	if len(c.Operators) > 0 {
		out.Ops = filter.Restrict(filter.DefaultMemoryOps(), c.Operators...)
	}
	return out
}

// RenderOptions returns the SQL rendering options.
func (c Config) RenderOptions() filter.RenderOptions {
	return filter.RenderOptions{Dialect: c.Dialect, Namespace: c.Namespace, UnicodeFold: c.UnicodeFold}
}

func env(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
