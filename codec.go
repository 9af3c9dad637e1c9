package filter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/valyala/fastjson"
	"github.com/vmihailenco/msgpack/v5"
)

var jsonParsers fastjson.ParserPool

/*
Decodes a filter from its JSON wire form. Unlike decoding into `map[string]any`
and calling `ExprOf`, this preserves key order, keeps integers as `int64`, and
decodes value markers:

	{"$": "$date", "value": 1700000000000}
	{"$": "$now"}
*/
func DecodeJSON(input []byte) (out Expr, err error) {
	parser := jsonParsers.Get()
	defer jsonParsers.Put(parser)

	val, err := parser.ParseBytes(input)
	if err != nil {
		return nil, fmt.Errorf(`[filter] failed to decode JSON filter: %w`, err)
	}

	defer rec(&err)
	return exprOfJSON(val, 0), nil
}

func exprOfJSON(val *fastjson.Value, depth int) Expr {
	if depth > DefaultMaxDepth {
		panic(errorf(ErrInvalidFilterShape, ``, `filter nesting exceeds %v levels`, DefaultMaxDepth))
	}

	switch val.Type() {
	case fastjson.TypeNull:
		return nil
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	case fastjson.TypeString:
		return string(val.GetStringBytes())
	case fastjson.TypeNumber:
		return numberOfJSON(val)

	case fastjson.TypeArray:
		elems := val.GetArray()
		out := make(List, len(elems))
		for i, elem := range elems {
			out[i] = exprOfJSON(elem, depth+1)
		}
		return out

	case fastjson.TypeObject:
		obj := val.GetObject()
		if marker := obj.Get(`$`); marker != nil {
			dict := map[string]any{}
			obj.Visit(func(key []byte, val *fastjson.Value) {
				dict[string(key)] = exprOfJSON(val, depth+1)
			})
			return exprMarker(dict[`$`], dict)
		}

		out := make(Object, 0, obj.Len())
		obj.Visit(func(key []byte, val *fastjson.Value) {
			out = append(out, Entry{Key: string(key), Value: exprOfJSON(val, depth+1)})
		})
		return out
	}

	panic(errorf(ErrInvalidCompareValue, ``, `unsupported JSON value %v`, val.Type()))
}

func numberOfJSON(val *fastjson.Value) any {
	num, err := val.Int64()
	if err == nil {
		return num
	}
	flo, err := val.Float64()
	must(err)
	return flo
}

/*
Encodes a filter into its JSON wire form, the inverse of `DecodeJSON`. Object
keys keep their order, times become `$date` markers with epoch milliseconds,
`Now` becomes a `$now` marker.
*/
func EncodeJSON(expr Expr) (out []byte, err error) {
	defer rec(&err)
	return appendJSON(nil, expr), nil
}

func appendJSON(buf []byte, expr Expr) []byte {
	switch expr := expr.(type) {
	case nil:
		return append(buf, `null`...)
	case Object:
		buf = append(buf, '{')
		for i, entry := range expr {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = appendJSONString(buf, entry.Key)
			buf = append(buf, ':')
			buf = appendJSON(buf, entry.Value)
		}
		return append(buf, '}')
	case List:
		buf = append(buf, '[')
		for i, elem := range expr {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = appendJSON(buf, elem)
		}
		return append(buf, ']')
	case time.Time:
		buf = append(buf, `{"$":"$date","value":`...)
		buf = strconv.AppendInt(buf, expr.UnixMilli(), 10)
		return append(buf, '}')
	case Deferred:
		buf = append(buf, `{"$":`...)
		buf = appendJSONString(buf, expr.DeferredName())
		return append(buf, '}')
	}

	scalar, err := Guard(expr)
	must(err)
	chunk, err := json.Marshal(scalar)
	must(err)
	return append(buf, chunk...)
}

func appendJSONString(buf []byte, str string) []byte {
	chunk, err := json.Marshal(str)
	must(err)
	return append(buf, chunk...)
}

/*
Encodes a filter as MessagePack, for compact storage of saved filters. Times
use the native MessagePack timestamp; `Now` uses the same marker as JSON.
Objects are encoded as maps, so key order is not preserved.
*/
func EncodeMsgpack(expr Expr) ([]byte, error) {
	val, err := wireOf(expr)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(val)
}

// Inverse of `EncodeMsgpack`. The result is canonical, as if from `ExprOf`.
func DecodeMsgpack(input []byte) (Expr, error) {
	var val any
	err := msgpack.Unmarshal(input, &val)
	if err != nil {
		return nil, fmt.Errorf(`[filter] failed to decode MessagePack filter: %w`, err)
	}
	return ExprOf(val)
}

func wireOf(expr Expr) (out any, err error) {
	defer rec(&err)
	return wireValue(expr), nil
}

func wireValue(expr Expr) any {
	switch expr := expr.(type) {
	case Object:
		out := make(map[string]any, len(expr))
		for _, entry := range expr {
			out[entry.Key] = wireValue(entry.Value)
		}
		return out
	case List:
		out := make([]any, len(expr))
		for i, elem := range expr {
			out[i] = wireValue(elem)
		}
		return out
	case Deferred:
		return map[string]any{`$`: expr.DeferredName()}
	}

	scalar, err := Guard(expr)
	must(err)
	return scalar
}
