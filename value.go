package filter

import (
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

/*
Placeholder produced by path resolution when a field doesn't exist on a
record. Normalizes to null, so `{"field": null}` matches records without that
field.
*/
type absent struct{}

// See `absent`.
var Absent any = absent{}

/*
Opaque filter leaf that isn't resolved by the compilers. SQL rendering
delegates to the sentinel's own fragment; in-memory evaluation asks
`MemoryCompiler.Resolve` for a concrete value every time a record is matched.
*/
type Deferred interface {
	Fragment
	DeferredName() string
}

/*
Deferred sentinel for the current time. Encoded on the wire as
`{"$": "$now"}`.
*/
type Now struct{}

func (Now) DeferredName() string { return `$now` }

// Implement `Fragment`. Renders the dialect's current-time expression.
func (Now) AppendTo(buf *Buffer) { appendStr(&buf.Text, buf.Options.Dialect.now()) }

// Normalized kind of a value. Values of different kinds never match.
type Kind byte

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindOther
)

// Normalized value, as used for comparisons.
type Norm struct {
	Kind Kind
	Str  string
	Num  float64
}

/*
Validates a filter leaf. Returns the canonical form of the value: one of nil,
string, int64, float64, bool, `time.Time` or a `Deferred` sentinel. Anything
else fails with `ErrInvalidCompareValue`.
*/
func Guard(val any) (any, error) {
	out, ok := canonicalScalar(val)
	if !ok {
		return nil, errorf(ErrInvalidCompareValue, ``, `unsupported value of type %v`, typeName(val))
	}
	return out, nil
}

func canonicalScalar(val any) (any, bool) {
	switch val := val.(type) {
	case nil:
		return nil, true
	case string:
		return val, true
	case bool:
		return val, true
	case int:
		return int64(val), true
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint:
		return uintScalar(uint64(val)), true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		return uintScalar(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case time.Time:
		return val, true
	case *time.Time:
		if val == nil {
			return nil, true
		}
		return *val, true
	case uuid.UUID:
		return val.String(), true
	case Deferred:
		return val, true
	case absent:
		return nil, true
	}
	return nil, false
}

func uintScalar(val uint64) any {
	if val > math.MaxInt64 {
		return float64(val)
	}
	return int64(val)
}

/*
Normalizes a value for comparison. Strings are lower-cased, times become
integer epoch milliseconds, booleans become 0 or 1. This is total: values that
are not scalars normalize to `KindOther`, which never equals or orders against
anything.
*/
func Normalize(val any) Norm {
	canon, ok := canonicalScalar(val)
	if !ok {
		return normalizeReflect(val)
	}

	switch val := canon.(type) {
	case nil:
		return Norm{Kind: KindNull}
	case string:
		return Norm{Kind: KindString, Str: lower(val)}
	case bool:
		if val {
			return Norm{Kind: KindNumber, Num: 1}
		}
		return Norm{Kind: KindNumber, Num: 0}
	case int64:
		return Norm{Kind: KindNumber, Num: float64(val)}
	case float64:
		if math.IsNaN(val) {
			return Norm{Kind: KindOther}
		}
		return Norm{Kind: KindNumber, Num: val}
	case time.Time:
		return Norm{Kind: KindNumber, Num: float64(val.UnixMilli())}
	}
	return Norm{Kind: KindOther}
}

// Named string and number types from records, such as enums.
func normalizeReflect(val any) Norm {
	rval := derefValue(reflect.ValueOf(val))
	if !rval.IsValid() {
		return Norm{Kind: KindNull}
	}

	switch rval.Kind() {
	case reflect.String:
		return Norm{Kind: KindString, Str: lower(rval.String())}
	case reflect.Bool:
		if rval.Bool() {
			return Norm{Kind: KindNumber, Num: 1}
		}
		return Norm{Kind: KindNumber, Num: 0}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Norm{Kind: KindNumber, Num: float64(rval.Int())}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Norm{Kind: KindNumber, Num: float64(rval.Uint())}
	case reflect.Float32, reflect.Float64:
		return Norm{Kind: KindNumber, Num: rval.Float()}
	}

	if rval.CanInterface() {
		if inst, ok := rval.Interface().(time.Time); ok {
			return Norm{Kind: KindNumber, Num: float64(inst.UnixMilli())}
		}
	}
	return Norm{Kind: KindOther}
}

/*
Lower-cases a string the way case-insensitive comparisons do. Exposed for
database functions that must agree with the in-memory compiler, see
`FoldCollation`.
*/
func Fold(str string) string { return lower(str) }

// `cases.Caser` is stateful, hence one per call.
func lower(str string) string {
	if isLowerASCII(str) {
		return str
	}
	return cases.Lower(language.Und).String(str)
}

func isLowerASCII(str string) bool {
	for i := 0; i < len(str); i++ {
		char := str[i]
		if char >= 0x80 || (char >= 'A' && char <= 'Z') {
			return false
		}
	}
	return true
}

// Exact equality of normalized values. Null only equals null.
func (self Norm) Equal(other Norm) bool {
	if self.Kind != other.Kind {
		return false
	}
	switch self.Kind {
	case KindNull:
		return true
	case KindString:
		return self.Str == other.Str
	case KindNumber:
		return self.Num == other.Num
	}
	return false
}

/*
Orders two normalized values. Null is greater than every other value and equal
to itself. The boolean result is false when the values can't be ordered:
different non-null kinds, or `KindOther` on either side.
*/
func (self Norm) Compare(other Norm) (int, bool) {
	if self.Kind == KindOther || other.Kind == KindOther {
		return 0, false
	}
	if other.Kind == KindNull {
		if self.Kind == KindNull {
			return 0, true
		}
		return -1, true
	}
	if self.Kind == KindNull {
		return 1, true
	}
	if self.Kind != other.Kind {
		return 0, false
	}

	switch self.Kind {
	case KindString:
		return strings.Compare(self.Str, other.Str), true
	default:
		switch {
		case self.Num < other.Num:
			return -1, true
		case self.Num > other.Num:
			return 1, true
		}
		return 0, true
	}
}

// Strict "less than" under the null-is-greatest ordering.
func (self Norm) Less(other Norm) bool {
	cmp, ok := self.Compare(other)
	return ok && cmp < 0
}

// String view of a normalized value, used by `$contains`.
func (self Norm) String() (string, bool) {
	return self.Str, self.Kind == KindString
}

/*
Returns the elements of a list-like value: `List`, `[]any` or any other slice
or array except byte slices. The second result is false for non-lists.
*/
func asList(val any) ([]any, bool) {
	switch val := val.(type) {
	case nil:
		return nil, false
	case List:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = elem
		}
		return out, true
	case []any:
		return val, true
	case []string:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = elem
		}
		return out, true
	case []byte:
		return nil, false
	}

	rval := derefValue(reflect.ValueOf(val))
	if !rval.IsValid() {
		return nil, false
	}
	if rval.Kind() != reflect.Slice && rval.Kind() != reflect.Array {
		return nil, false
	}
	if rval.Kind() == reflect.Slice && rval.IsNil() {
		return []any{}, true
	}

	out := make([]any, rval.Len())
	for i := range out {
		out[i] = rval.Index(i).Interface()
	}
	return out, true
}
