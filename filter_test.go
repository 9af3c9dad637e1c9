package filter

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

func eq(t testing.TB, exp, act any) {
	t.Helper()
	if !reflect.DeepEqual(exp, act) {
		t.Fatalf(`
expected (detailed):
	%#[1]v
actual (detailed):
	%#[2]v
expected (simple):
	%[1]v
actual (simple):
	%[2]v
`, exp, act)
	}
}

func decode(t testing.TB, src string) Expr {
	t.Helper()
	expr, err := DecodeJSON([]byte(src))
	require.NoError(t, err, src)
	return expr
}

func render(frag Fragment, dialect Dialect) (string, []any) {
	return Render(frag, RenderOptions{Dialect: dialect})
}

// Records shared by the in-memory tests.
func people() []any {
	return []any{
		map[string]any{
			`id`:      1,
			`name`:    `Alice`,
			`age`:     30,
			`tags`:    []any{`a`, `b`},
			`address`: map[string]any{`city`: `Gent`},
		},
		map[string]any{
			`id`:   2,
			`name`: `bob`,
			`age`:  nil,
			`tags`: []any{},
		},
		map[string]any{
			`id`:      3,
			`name`:    `Élodie`,
			`age`:     15,
			`tags`:    []any{`B`},
			`address`: map[string]any{`city`: `Antwerpen`},
		},
	}
}

func idsOf(t testing.TB, records []any) []int {
	t.Helper()
	out := []int{}
	for _, record := range records {
		id, ok := Resolve(record, `id`).(int)
		require.True(t, ok, `record without int id: %v`, record)
		out = append(out, id)
	}
	return out
}

func selectPeople(t testing.TB, compiler MemoryCompiler, src string) []int {
	t.Helper()
	matcher, err := compiler.Compile(decode(t, src))
	require.NoError(t, err, src)
	out, err := Select(matcher, people())
	require.NoError(t, err, src)
	return idsOf(t, out)
}
