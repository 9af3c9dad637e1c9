package cli

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testConfig = `
dialect: sqlite
table: people
fields:
  id:
    column: id
  name:
    column: name
  age:
    column: age
    nullable: true
  tags:
    kind: array
    column: tags
  meta:
    kind: json
    column: meta
`

const testRecords = `[
  {"id": 1, "name": "Alice", "age": 30, "tags": ["a", "b"], "meta": {"city": "Gent"}},
  {"id": 2, "name": "bob", "age": null, "tags": [], "meta": null},
  {"id": 3, "name": "Carol", "age": 15, "tags": ["b"], "meta": {"city": "Antwerpen"}}
]`

type testRow struct {
	id   int64
	name string
	age  any
	tags string
	meta any
}

var testRows = []testRow{
	{1, "Alice", int64(30), `["a","b"]`, `{"city":"Gent"}`},
	{2, "bob", nil, `[]`, nil},
	{3, "Carol", int64(15), `["b"]`, `{"city":"Antwerpen"}`},
}

// writeFile writes content to name inside a fresh temp dir and returns the path.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// createDB creates a SQLite database holding the given people rows.
func createDB(t *testing.T, rows []testRow) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "people.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE people (
		id   INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		age  INTEGER,
		tags TEXT NOT NULL,
		meta TEXT
	)`)
	require.NoError(t, err)

	for _, row := range rows {
		_, err = db.Exec(`INSERT INTO people (id, name, age, tags, meta) VALUES (?, ?, ?, ?, ?)`,
			row.id, row.name, row.age, row.tags, row.meta)
		require.NoError(t, err)
	}
	return path
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// decodeResponse parses JSON output into a response with generic data.
func decodeResponse(t *testing.T, out string) (CLIResponse, map[string]any) {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	data, _ := resp.Data.(map[string]any)
	return resp, data
}
