package filter

import (
	"reflect"
	"time"

	"github.com/mitranim/refut"
)

var timeType = reflect.TypeOf(time.Time{})

/*
Derives SQL fields from a struct type. The input is used only as a type
carrier. Every field tagged with both `json` and `db` becomes a filter field
named after its `json` tag and stored in the column named by its `db` tag:

	* nested structs and maps become JSON document fields
	* slices and arrays become JSON array fields
	* pointers, interfaces and `time.Time` pointers are nullable columns
	* everything else is a non-nullable column

Fields of embedded structs are included. Fields missing either tag are
skipped, which makes the struct a whitelist of filterable fields.
*/
func FieldsFor(val any) Fields {
	return FieldsForType(reflect.TypeOf(val))
}

// Same as `FieldsFor` but takes a type.
func FieldsForType(rtype reflect.Type) Fields {
	out := Fields{}
	rtype = derefType(rtype)
	if rtype == nil || rtype.Kind() != reflect.Struct {
		return out
	}

	must(refut.TraverseStructRtype(rtype, func(sfield reflect.StructField, _ []int) error {
		name, column := jsonName(sfield), dbName(sfield)
		if name == `` || column == `` {
			return nil
		}
		out[name] = fieldOfType(column, sfield.Type)
		return nil
	}))
	return out
}

func fieldOfType(column string, rtype reflect.Type) Field {
	base := derefType(rtype)

	switch {
	case base == timeType:
	case base.Kind() == reflect.Struct, base.Kind() == reflect.Map:
		return JSONField(column, ``)
	case base.Kind() == reflect.Slice && base.Elem().Kind() != reflect.Uint8,
		base.Kind() == reflect.Array:
		return JSONArrayField(column, ``)
	}

	nullable := rtype.Kind() == reflect.Ptr || rtype.Kind() == reflect.Interface
	return ColumnField(column, nullable)
}
