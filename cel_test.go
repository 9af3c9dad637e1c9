package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func field(path string, op string, val Expr) Object {
	return Object{{Key: path, Value: Object{{Key: op, Value: val}}}}
}

func TestParseCEL(t *testing.T) {
	cases := []struct {
		src string
		exp Expr
	}{
		{`age >= 18`, field(`age`, `$gte`, int64(18))},
		{`18 <= age`, field(`age`, `$gte`, int64(18))},
		{`5 > age`, field(`age`, `$lt`, int64(5))},
		{`address.city == "Gent"`, field(`address.city`, `$eq`, `Gent`)},
		{`age != null`, field(`age`, `$neq`, nil)},
		{`age == 5u`, field(`age`, `$eq`, int64(5))},
		{`age > -5`, field(`age`, `$gt`, int64(-5))},
		{`score < -1.5`, field(`score`, `$lt`, -1.5)},
		{`name in ["a", "b"]`, field(`name`, `$in`, List{`a`, `b`})},
		{`"a" in tags`, field(`tags`, `$eq`, `a`)},
		{`name.contains("ali")`, field(`name`, `$contains`, `ali`)},
		{`size(tags) > 1`, Object{{Key: `tags`, Value: Object{{Key: `$length`, Value: Object{{Key: `$gt`, Value: int64(1)}}}}}}},
		{`tags.size() == 0`, Object{{Key: `tags`, Value: Object{{Key: `$length`, Value: Object{{Key: `$eq`, Value: int64(0)}}}}}}},
		{`active`, field(`active`, `$eq`, true)},
		{`true`, Object{}},
		{`false`, Object{{Key: `$or`, Value: List{}}}},
		{`born < now()`, field(`born`, `$lt`, Now{})},
		{
			`born >= timestamp("2000-01-01T00:00:00Z")`,
			field(`born`, `$gte`, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)),
		},
		{
			`age < 10 || !(name == "bob")`,
			Object{{Key: `$or`, Value: List{
				field(`age`, `$lt`, int64(10)),
				Object{{Key: `$not`, Value: field(`name`, `$eq`, `bob`)}},
			}}},
		},
		{
			`age < 10 && tags == null`,
			Object{{Key: `$and`, Value: List{
				field(`age`, `$lt`, int64(10)),
				field(`tags`, `$eq`, nil),
			}}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			expr, err := ParseCEL(tc.src)
			require.NoError(t, err)
			eq(t, tc.exp, expr)
		})
	}
}

func TestParseCELErrors(t *testing.T) {
	t.Run(`syntax`, func(t *testing.T) {
		_, err := ParseCEL(`age >`)
		assert.Error(t, err)
	})

	for _, src := range []string{
		`1`,
		`"str"`,
		`age + 1 > 2`,
		`age > other`,
		`foo(age)`,
		`name.startsWith("a")`,
		`has(address.city)`,
		`age in other`,
	} {
		t.Run(src, func(t *testing.T) {
			_, err := ParseCEL(src)
			assert.ErrorIs(t, err, ErrInvalidFilterShape)
		})
	}

	t.Run(`invalid_timestamp`, func(t *testing.T) {
		_, err := ParseCEL(`born < timestamp("yesterday")`)
		assert.ErrorIs(t, err, ErrInvalidCompareValue)
	})
}

func TestParseCELMatch(t *testing.T) {
	cases := []struct {
		src string
		ids []int
	}{
		{`true`, []int{1, 2, 3}},
		{`false`, []int{}},
		{`"b" in tags`, []int{1, 3}},
		{`size(tags) > 0 && !(name == "alice")`, []int{3}},
		{`age < 20 || address.city == "gent"`, []int{1, 3}},
		{`name in ["BOB", "élodie"]`, []int{2, 3}},
	}

	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			expr, err := ParseCEL(tc.src)
			require.NoError(t, err)

			matcher, err := MemoryCompiler{}.Compile(expr)
			require.NoError(t, err)

			out, err := Select(matcher, people())
			require.NoError(t, err)
			eq(t, tc.ids, idsOf(t, out))
		})
	}
}
