package filter

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unsafe"

	"github.com/mitranim/refut"
)

const dottedPath = `(?:\w+\.)*\w+`

var dottedPathReg = regexp.MustCompile(`^` + dottedPath + `$`)
var ordReg = regexp.MustCompile(`^(` + dottedPath + `)(?:\s+(?i)(asc|desc))?$`)

func rec(ptr *error) {
	val := recover()
	if val == nil {
		return
	}

	recErr, ok := val.(error)
	if ok {
		*ptr = recErr
		return
	}

	panic(val)
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func isDottedPath(str string) bool { return dottedPathReg.MatchString(str) }

func splitPath(str string) []string { return strings.Split(str, `.`) }

func jsonName(sfield reflect.StructField) string {
	return refut.TagIdent(sfield.Tag.Get(`json`))
}

func dbName(sfield reflect.StructField) string {
	return refut.TagIdent(sfield.Tag.Get(`db`))
}

var errBreak = errors.New(``)

/*
Finds the struct field that has the given JSON field name. The field may be in
an embedded struct, but not in any non-embedded nested structs. Returns the
field index path suitable for `reflect.Value.FieldByIndex`.
*/
func fieldByJsonName(rtype reflect.Type, name string) (reflect.StructField, []int, bool) {
	var out reflect.StructField
	var index []int

	err := refut.TraverseStructRtype(rtype, func(sfield reflect.StructField, path []int) error {
		if jsonName(sfield) == name {
			out = sfield
			index = append([]int(nil), path...)
			return errBreak
		}
		return nil
	})
	if errors.Is(err, errBreak) {
		return out, index, true
	}
	return out, nil, false
}

func derefType(rtype reflect.Type) reflect.Type {
	for rtype != nil && rtype.Kind() == reflect.Ptr {
		rtype = rtype.Elem()
	}
	return rtype
}

func derefValue(rval reflect.Value) reflect.Value {
	for rval.IsValid() && (rval.Kind() == reflect.Ptr || rval.Kind() == reflect.Interface) {
		if rval.IsNil() {
			return reflect.Value{}
		}
		rval = rval.Elem()
	}
	return rval
}

func appendStr(buf *[]byte, str string) {
	*buf = append(*buf, str...)
}

/*
Allocation-free conversion. Reinterprets a byte slice as a string. Should not
be used when the underlying byte array is volatile.
*/
func bytesToMutableString(bytes []byte) string {
	return unsafe.String(unsafe.SliceData(bytes), len(bytes))
}

func typeName(val any) string { return fmt.Sprintf(`%T`, val) }
