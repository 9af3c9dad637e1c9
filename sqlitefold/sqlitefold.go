/*
Package sqlitefold registers Unicode case folding with the "modernc.org/sqlite"
driver: the `filter.FoldCollation` collation and the `filter.FoldFunction`
function. Conditions rendered with `filter.RenderOptions.UnicodeFold` need
both. Import for side effects, like the driver itself:

	import _ "github.com/Stamhoofd/Stamhoofd-sub000/sqlitefold"

Registration affects connections opened afterwards.
*/
package sqlitefold

import (
	"database/sql/driver"
	"strings"

	"modernc.org/sqlite"

	filter "github.com/Stamhoofd/Stamhoofd-sub000"
)

func init() {
	sqlite.MustRegisterCollationUtf8(filter.FoldCollation, Compare)
	sqlite.MustRegisterDeterministicScalarFunction(filter.FoldFunction, 1, lower)
}

// Collation function: compares strings after `filter.Fold`, which is also how
// the in-memory compiler orders them.
func Compare(left, right string) int {
	return strings.Compare(filter.Fold(left), filter.Fold(right))
}

// Non-text values pass through, so NULL stays NULL.
func lower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch val := args[0].(type) {
	case string:
		return filter.Fold(val), nil
	case []byte:
		return filter.Fold(string(val)), nil
	}
	return args[0], nil
}
