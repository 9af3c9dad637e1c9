package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	filter "github.com/Stamhoofd/Stamhoofd-sub000"
)

func TestMatchText(t *testing.T) {
	records := writeFile(t, "people.json", testRecords)

	out, err := execute(t, "match", records, "-f", `{"tags": "b"}`, "--order", "name desc")
	require.NoError(t, err)
	assert.Equal(t,
		`{"age":15,"id":3,"meta":{"city":"Antwerpen"},"name":"Carol","tags":["b"]}`+"\n"+
			`{"age":30,"id":1,"meta":{"city":"Gent"},"name":"Alice","tags":["a","b"]}`+"\n",
		out,
	)
}

func TestMatchJSON(t *testing.T) {
	records := writeFile(t, "people.json", testRecords)

	out, err := execute(t, "match", records, "--format", "json", "--cel", "age < 20")
	require.NoError(t, err)

	resp, data := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, float64(3), data["total"])
	assert.Equal(t, float64(1), data["matched"])
}

func TestMatchNoResults(t *testing.T) {
	records := writeFile(t, "people.json", testRecords)

	out, err := execute(t, "match", records, "--format", "json", "-f", `{"name": "nobody"}`)
	require.NoError(t, err)

	_, data := decodeResponse(t, out)
	assert.Equal(t, []any{}, data["records"])
}

func TestMatchRecordFormats(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "people.jsonl",
			content: `{"id": 1, "name": "Alice", "age": 30}

{"id": 2, "name": "bob"}
{"id": 3, "name": "Carol", "age": 15}
`,
		},
		{
			name: "people.yaml",
			content: `- id: 1
  name: Alice
  age: 30
- id: 2
  name: bob
- id: 3
  name: Carol
  age: 15
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := writeFile(t, tt.name, tt.content)

			out, err := execute(t, "match", records, "--format", "json", "-f", `{"age": {"$gte": 18}}`)
			require.NoError(t, err)

			_, data := decodeResponse(t, out)
			assert.Equal(t, float64(3), data["total"])
			// bob has no age, and null sorts above every number
			assert.Equal(t, float64(2), data["matched"])
		})
	}
}

func TestMatchFilterFiles(t *testing.T) {
	records := writeFile(t, "people.json", testRecords)

	msgpack, err := filter.EncodeMsgpack(filter.Object{{Key: "id", Value: int64(2)}})
	require.NoError(t, err)
	msgpackPath := filepath.Join(t.TempDir(), "filter.msgpack")
	require.NoError(t, os.WriteFile(msgpackPath, msgpack, 0o644))

	tests := []struct {
		name    string
		path    string
		matched float64
	}{
		{"json", writeFile(t, "filter.json", `{"meta.city": "gent"}`), 1},
		{"yaml", writeFile(t, "filter.yaml", "name:\n  $in: [alice, BOB]\n"), 2},
		{"cel", writeFile(t, "filter.cel", "size(tags) > 0 && !(name == \"carol\")\n"), 1},
		{"msgpack", msgpackPath, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, "match", records, "--format", "json", "--filter-file", tt.path)
			require.NoError(t, err)

			_, data := decodeResponse(t, out)
			assert.Equal(t, tt.matched, data["matched"])
		})
	}
}

func TestMatchErrors(t *testing.T) {
	records := writeFile(t, "people.json", testRecords)

	t.Run("missing records argument", func(t *testing.T) {
		_, err := execute(t, "match")
		require.Error(t, err)
	})

	t.Run("unsupported records extension", func(t *testing.T) {
		_, err := execute(t, "match", writeFile(t, "people.txt", "[]"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("invalid json lines", func(t *testing.T) {
		_, err := execute(t, "match", writeFile(t, "people.jsonl", "{}\n{oops\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2")
	})

	t.Run("unsupported filter extension", func(t *testing.T) {
		_, err := execute(t, "match", records, "--filter-file", writeFile(t, "filter.txt", "{}"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("unknown operator", func(t *testing.T) {
		out, err := execute(t, "match", records, "-f", `{"age": {"$regex": "x"}}`)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "Error [unsupported operator]")
	})

	t.Run("length of a number", func(t *testing.T) {
		_, err := execute(t, "match", records, "-f", `{"age": {"$length": 2}}`)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
	})
}
