package filter

import (
	"reflect"
)

/*
Resolves a dot-separated path such as "address.city" against a record.
Records may be arbitrarily nested maps with string keys, structs (fields are
matched by their `json` tag name, including fields of embedded structs),
pointers, and lists. Stepping into a list maps the step over every element and
flattens nested lists, so "children.name" on a record with several children
yields the list of their names. Missing fields yield `Absent`.
*/
func Resolve(record any, path string) any {
	out := record
	for _, key := range splitPath(path) {
		out = step(out, key)
	}
	return out
}

func step(val any, key string) any {
	switch val := val.(type) {
	case nil, absent:
		return Absent
	case map[string]any:
		out, ok := val[key]
		if !ok {
			return Absent
		}
		return out
	case []any:
		return stepList(val, key)
	}

	rval := derefValue(reflect.ValueOf(val))
	if !rval.IsValid() {
		return Absent
	}

	switch rval.Kind() {
	case reflect.Map:
		if rval.Type().Key().Kind() != reflect.String {
			return Absent
		}
		out := rval.MapIndex(reflect.ValueOf(key).Convert(rval.Type().Key()))
		if !out.IsValid() {
			return Absent
		}
		return out.Interface()

	case reflect.Struct:
		_, index, ok := fieldByJsonName(rval.Type(), key)
		if !ok {
			return Absent
		}
		out, err := rval.FieldByIndexErr(index)
		if err != nil || !out.CanInterface() {
			return Absent
		}
		return out.Interface()

	case reflect.Slice, reflect.Array:
		if list, ok := asList(rval.Interface()); ok {
			return stepList(list, key)
		}
	}
	return Absent
}

func stepList(list []any, key string) []any {
	out := make([]any, 0, len(list))
	for _, elem := range list {
		val := step(elem, key)
		if inner, ok := asList(val); ok {
			out = append(out, inner...)
		} else {
			out = append(out, val)
		}
	}
	return out
}
