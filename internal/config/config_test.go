package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	filter "github.com/Stamhoofd/Stamhoofd-sub000"
)

const sampleConfig = `
dialect: postgres
db: members.db
table: people
namespace: people
max_depth: 8
operators: ["$eq", "$in", "$and"]
fields:
  name:
    column: name
  age:
    column: age
    nullable: true
  city:
    kind: json
    column: data
    path: address.city
  tags:
    kind: array
    column: tags
  parents:
    kind: relation
    table: parents
    alias: p
    foreign_key: person_id
    parent_key: id
    fields:
      name:
        column: name
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "filterc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, filter.SQLite, cfg.Dialect)
	assert.Equal(t, filter.DefaultMaxDepth, cfg.MaxDepth)
}

func TestLoadFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, filter.Postgres, cfg.Dialect)
	assert.Equal(t, "members.db", cfg.DBPath)
	assert.Equal(t, "people", cfg.Table)
	assert.Equal(t, 8, cfg.MaxDepth)
	assert.Equal(t, []string{"$eq", "$in", "$and"}, cfg.Operators)

	fields := cfg.SQLFields()
	assert.Equal(t, filter.ColumnField("name", false), fields["name"])
	assert.Equal(t, filter.ColumnField("age", true), fields["age"])
	assert.Equal(t, filter.JSONField("data", "address.city"), fields["city"])
	assert.Equal(t, filter.JSONArrayField("tags", ""), fields["tags"])
	assert.Equal(t, filter.RelationField(
		filter.Relation{Table: "parents", Alias: "p", ForeignKey: "person_id", ParentKey: "id"},
		filter.Fields{"name": filter.ColumnField("name", false)},
	), fields["parents"])
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read config")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "fields: [1, 2"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse config")
	})

	t.Run("invalid dialect", func(t *testing.T) {
		_, err := Load(writeConfig(t, "dialect: oracle\n"))
		require.Error(t, err)
	})
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FILTERC_DIALECT", "mysql")
	t.Setenv("FILTERC_DB", "other.db")
	t.Setenv("FILTERC_TABLE", "members")
	t.Setenv("FILTERC_NAMESPACE", " m ")
	t.Setenv("FILTERC_MAX_DEPTH", "3")
	t.Setenv("FILTERC_UNICODE_FOLD", "true")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, filter.MySQL, cfg.Dialect)
	assert.Equal(t, "other.db", cfg.DBPath)
	assert.Equal(t, "members", cfg.Table)
	assert.Equal(t, "m", cfg.Namespace)
	assert.Equal(t, 3, cfg.MaxDepth)
	assert.True(t, cfg.UnicodeFold)
	assert.Equal(t, filter.RenderOptions{Dialect: filter.MySQL, Namespace: "m", UnicodeFold: true}, cfg.RenderOptions())
}

func TestEnvOverrideErrors(t *testing.T) {
	t.Run("invalid dialect", func(t *testing.T) {
		t.Setenv("FILTERC_DIALECT", "oracle")
		_, err := Load("")
		require.Error(t, err)
	})

	t.Run("invalid max depth is ignored", func(t *testing.T) {
		t.Setenv("FILTERC_MAX_DEPTH", "-1")
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, filter.DefaultMaxDepth, cfg.MaxDepth)
	})

	t.Run("invalid unicode fold is ignored", func(t *testing.T) {
		t.Setenv("FILTERC_UNICODE_FOLD", "maybe")
		cfg, err := Load("")
		require.NoError(t, err)
		assert.False(t, cfg.UnicodeFold)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]FieldConfig
		errMsg string
	}{
		{
			name:   "missing column",
			fields: map[string]FieldConfig{"name": {Kind: KindColumn}},
			errMsg: `field "name": column is required`,
		},
		{
			name:   "unknown kind",
			fields: map[string]FieldConfig{"name": {Kind: "blob", Column: "name"}},
			errMsg: `field "name": unknown kind "blob"`,
		},
		{
			name:   "incomplete relation",
			fields: map[string]FieldConfig{"parents": {Kind: KindRelation, Table: "parents"}},
			errMsg: `field "parents": relation needs table, foreign_key and parent_key`,
		},
		{
			name: "nested relation field",
			fields: map[string]FieldConfig{"parents": {
				Kind:       KindRelation,
				Table:      "parents",
				ForeignKey: "person_id",
				ParentKey:  "id",
				Fields:     map[string]FieldConfig{"name": {}},
			}},
			errMsg: `field "parents.name": column is required`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Config{Fields: tt.fields}.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	assert.NoError(t, Config{}.Validate())
}

func TestCompilers(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	t.Run("sql", func(t *testing.T) {
		compiler := cfg.SQLCompiler()
		assert.Equal(t, 8, compiler.MaxDepth)

		cond, err := compiler.Compile(map[string]any{"age": map[string]any{"$in": []any{1, 2}}})
		require.NoError(t, err)
		text, args := filter.Render(cond, cfg.RenderOptions())
		assert.Equal(t, `"people"."age" IN ($1, $2)`, text)
		assert.Equal(t, []any{int64(1), int64(2)}, args)

		_, err = compiler.Compile(map[string]any{"age": map[string]any{"$gt": 1}})
		assert.ErrorIs(t, err, filter.ErrUnsupportedOperator)
	})

	t.Run("memory", func(t *testing.T) {
		compiler := cfg.MemoryCompiler()

		matcher, err := compiler.Compile(map[string]any{"name": "alice"})
		require.NoError(t, err)
		ok, err := matcher.Match(map[string]any{"name": "Alice"})
		require.NoError(t, err)
		assert.True(t, ok)

		_, err = compiler.Compile(map[string]any{"name": map[string]any{"$contains": "a"}})
		assert.ErrorIs(t, err, filter.ErrUnsupportedOperator)
	})

	t.Run("unrestricted", func(t *testing.T) {
		compiler := Default().SQLCompiler()
		assert.Nil(t, compiler.Ops)
	})
}
