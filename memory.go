package filter

import (
	"reflect"
	"strings"
	"time"
	"unicode/utf8"
)

/*
Compiled in-memory predicate. Receives the value under test: the whole record
at the top level, or the value resolved for the current field path.
*/
type Runner func(val any) bool

// In-memory operator compiler, see `DefaultMemoryOps`.
type MemoryOp func(scope MemoryScope, filter Expr) (Runner, error)

// In-memory operator registry, keyed by operator name such as "$eq".
type MemoryOps map[string]MemoryOp

// Filled in `init`: the operators reach the registry through their scope.
var defaultMemoryOps MemoryOps

func init() {
	defaultMemoryOps = MemoryOps{
		`$and`:       MemAnd,
		`$or`:        MemOr,
		`$not`:       MemNot,
		`$eq`:        MemEq,
		`$neq`:       MemNeq,
		`$lt`:        MemLt,
		`$lte`:       MemLte,
		`$gt`:        MemGt,
		`$gte`:       MemGte,
		`$in`:        MemIn,
		`$contains`:  MemContains,
		`$length`:    MemLength,
		`$elemMatch`: MemElemMatch,
	}
}

/*
Returns a fresh copy of the built-in in-memory operators. The copy may be
modified freely, for example restricted with `Restrict` or extended with
custom operators.
*/
func DefaultMemoryOps() MemoryOps { return copyOps(defaultMemoryOps) }

/*
Compiles filter expressions into in-memory predicates. The zero value is ready
to use: nil `.Ops` means the built-in operators, zero `.MaxDepth` means
`DefaultMaxDepth`, nil `.Resolve` means `ResolveDeferred`.

A compiler holds no mutable state and may be shared between goroutines.
*/
type MemoryCompiler struct {
	Ops      MemoryOps
	MaxDepth int
	Resolve  func(Deferred) any
}

/*
Compiles the given filter. The input may be any value accepted by `ExprOf`.
Shape errors, unknown operators and invalid leaf values are reported here,
before any record is touched.
*/
func (self MemoryCompiler) Compile(filter any) (Matcher, error) {
	expr, err := ExprOf(filter)
	if err != nil {
		return Matcher{}, err
	}

	runner, err := MemoryScope{compiler: &self}.Compile(expr)
	if err != nil {
		return Matcher{}, err
	}
	return Matcher{run: runner}, nil
}

/*
Passed to every `MemoryOp`. Allows operators to compile nested sub-filters,
which counts toward the depth limit, and to build comparands that may be
`Deferred`.
*/
type MemoryScope struct {
	compiler *MemoryCompiler
	depth    int
	key      string
}

// Key of the operator or field currently being compiled.
func (self MemoryScope) Key() string { return self.key }

/*
Compiles a sub-filter as an implicit conjunction, exactly like the top level.
*/
func (self MemoryScope) Compile(filter Expr) (Runner, error) {
	limit := self.compiler.MaxDepth
	if limit <= 0 {
		limit = DefaultMaxDepth
	}
	if self.depth >= limit {
		return nil, errorf(ErrInvalidFilterShape, self.key, `filter nesting exceeds %v levels`, limit)
	}

	inner := self
	inner.depth++
	return MemAnd(inner, filter)
}

func (self MemoryScope) compileEntry(entry Entry) (Runner, error) {
	scope := self
	scope.key = entry.Key

	if isOperator(entry.Key) {
		op := self.ops()[entry.Key]
		if op == nil {
			return nil, errorf(ErrUnsupportedOperator, entry.Key, `operator is not registered`)
		}
		return op(scope, entry.Value)
	}

	inner, err := scope.Compile(entry.Value)
	if err != nil {
		return nil, err
	}
	path := entry.Key
	return func(val any) bool { return inner(Resolve(val, path)) }, nil
}

func (self MemoryScope) ops() MemoryOps {
	if self.compiler.Ops != nil {
		return self.compiler.Ops
	}
	return defaultMemoryOps
}

/*
Validates a comparison leaf and returns a function producing its normalized
form. For ordinary values the result is precomputed; `Deferred` values are
resolved on every call.
*/
func (self MemoryScope) Comparand(filter Expr) (func() Norm, error) {
	val, err := Guard(filter)
	if err != nil {
		err.(*Error).Key = self.key
		return nil, err
	}

	deferred, ok := val.(Deferred)
	if !ok {
		norm := Normalize(val)
		return func() Norm { return norm }, nil
	}

	resolve := self.compiler.Resolve
	if resolve == nil {
		resolve = ResolveDeferred
	}
	return func() Norm { return Normalize(resolve(deferred)) }, nil
}

// Default resolution of `Deferred` sentinels at evaluation time.
func ResolveDeferred(val Deferred) any {
	switch val.(type) {
	case Now, *Now:
		return time.Now()
	}
	panic(errorf(ErrInvalidCompareValue, val.DeferredName(), `no in-memory resolution for deferred value`))
}

/*
Compiled filter. Safe for concurrent use. The zero value matches every
record.
*/
type Matcher struct{ run Runner }

/*
Runs the filter against a single record. Fails only on runtime type
mismatches, such as `$length` applied to a number.
*/
func (self Matcher) Match(record any) (ok bool, err error) {
	if self.run == nil {
		return true, nil
	}
	defer rec(&err)
	return self.run(record), nil
}

// Returns the records accepted by the matcher, in their original order.
func Select[A any](matcher Matcher, records []A) ([]A, error) {
	var out []A
	for _, record := range records {
		ok, err := matcher.Match(record)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, record)
		}
	}
	return out, nil
}

// Conjunction of clauses. Vacuously true when empty.
func MemAnd(scope MemoryScope, filter Expr) (Runner, error) {
	clauses := Clauses(filter)
	runners := make([]Runner, 0, len(clauses))

	for _, entry := range clauses {
		runner, err := scope.compileEntry(entry)
		if err != nil {
			return nil, err
		}
		runners = append(runners, runner)
	}

	if len(runners) == 1 {
		return runners[0], nil
	}
	return func(val any) bool {
		for _, runner := range runners {
			if !runner(val) {
				return false
			}
		}
		return true
	}, nil
}

// Disjunction of operands, see `Items`. Vacuously false when empty.
func MemOr(scope MemoryScope, filter Expr) (Runner, error) {
	items := Items(filter)
	runners := make([]Runner, 0, len(items))

	for _, item := range items {
		runner, err := scope.Compile(item)
		if err != nil {
			return nil, err
		}
		runners = append(runners, runner)
	}

	return func(val any) bool {
		for _, runner := range runners {
			if runner(val) {
				return true
			}
		}
		return false
	}, nil
}

// Negation of the conjunction of the operand.
func MemNot(scope MemoryScope, filter Expr) (Runner, error) {
	runner, err := scope.Compile(filter)
	if err != nil {
		return nil, err
	}
	return func(val any) bool { return !runner(val) }, nil
}

/*
Equality. When the value under test is a list, matches if any element is
equal.
*/
func MemEq(scope MemoryScope, filter Expr) (Runner, error) {
	want, err := scope.Comparand(filter)
	if err != nil {
		return nil, err
	}

	return func(val any) bool {
		norm := want()
		if list, ok := asList(val); ok {
			for _, elem := range list {
				if Normalize(elem).Equal(norm) {
					return true
				}
			}
			return false
		}
		return Normalize(val).Equal(norm)
	}, nil
}

/*
Negation of `MemEq`. Against a list this means "no element is equal", not
"some element differs".
*/
func MemNeq(scope MemoryScope, filter Expr) (Runner, error) {
	runner, err := MemEq(scope, filter)
	if err != nil {
		return nil, err
	}
	return func(val any) bool { return !runner(val) }, nil
}

func MemLt(scope MemoryScope, filter Expr) (Runner, error) {
	return memOrder(scope, filter, func(cmp int) bool { return cmp < 0 })
}

func MemLte(scope MemoryScope, filter Expr) (Runner, error) {
	return memOrder(scope, filter, func(cmp int) bool { return cmp <= 0 })
}

/*
Inversion of `MemLte` among values that can be ordered. Since null is greater
than everything, `{"$gt": null}` matches nothing while `{"$gt": 5}` matches
null.
*/
func MemGt(scope MemoryScope, filter Expr) (Runner, error) {
	return memOrder(scope, filter, func(cmp int) bool { return cmp > 0 })
}

// Inversion of `MemLt` among values that can be ordered.
func MemGte(scope MemoryScope, filter Expr) (Runner, error) {
	return memOrder(scope, filter, func(cmp int) bool { return cmp >= 0 })
}

func memOrder(scope MemoryScope, filter Expr, accept func(int) bool) (Runner, error) {
	want, err := scope.Comparand(filter)
	if err != nil {
		return nil, err
	}

	return func(val any) bool {
		cmp, ok := Normalize(val).Compare(want())
		return ok && accept(cmp)
	}, nil
}

/*
Membership. The filter value must be a list. When the value under test is a
list, matches if any element is a member.
*/
func MemIn(scope MemoryScope, filter Expr) (Runner, error) {
	list, ok := filter.(List)
	if !ok {
		return nil, errorf(ErrInvalidFilterShape, scope.key, `expected a list, got %v`, typeName(filter))
	}

	wants := make([]func() Norm, 0, len(list))
	for _, elem := range list {
		want, err := scope.Comparand(elem)
		if err != nil {
			return nil, err
		}
		wants = append(wants, want)
	}

	member := func(val any) bool {
		norm := Normalize(val)
		for _, want := range wants {
			if norm.Equal(want()) {
				return true
			}
		}
		return false
	}

	return func(val any) bool {
		if list, ok := asList(val); ok {
			for _, elem := range list {
				if member(elem) {
					return true
				}
			}
			return false
		}
		return member(val)
	}, nil
}

/*
Case-insensitive substring test. Never matches unless both sides are strings.
*/
func MemContains(scope MemoryScope, filter Expr) (Runner, error) {
	want, err := scope.Comparand(filter)
	if err != nil {
		return nil, err
	}

	return func(val any) bool {
		needle, ok := want().String()
		if !ok {
			return false
		}
		hay, ok := Normalize(val).String()
		return ok && strings.Contains(hay, needle)
	}, nil
}

/*
Applies the sub-filter to the length of the value under test, which must be a
string (length in characters) or a list. Anything else fails at evaluation
time with `ErrInvalidFilterTarget`.
*/
func MemLength(scope MemoryScope, filter Expr) (Runner, error) {
	runner, err := scope.Compile(filter)
	if err != nil {
		return nil, err
	}
	key := scope.key

	return func(val any) bool {
		if list, ok := asList(val); ok {
			return runner(int64(len(list)))
		}
		if str, ok := stringOf(val); ok {
			return runner(int64(utf8.RuneCountInString(str)))
		}
		panic(errorf(ErrInvalidFilterTarget, key, `expected a string or a list, got %v`, typeName(val)))
	}, nil
}

/*
Matches lists where at least one element satisfies the whole sub-filter. Null
and missing values never match. Other non-list values fail at evaluation time
with `ErrInvalidFilterTarget`.
*/
func MemElemMatch(scope MemoryScope, filter Expr) (Runner, error) {
	runner, err := scope.Compile(filter)
	if err != nil {
		return nil, err
	}
	key := scope.key

	return func(val any) bool {
		list, ok := asList(val)
		if !ok {
			if Normalize(val).Kind == KindNull {
				return false
			}
			panic(errorf(ErrInvalidFilterTarget, key, `expected a list, got %v`, typeName(val)))
		}
		for _, elem := range list {
			if runner(elem) {
				return true
			}
		}
		return false
	}, nil
}

func stringOf(val any) (string, bool) {
	if str, ok := val.(string); ok {
		return str, true
	}
	rval := derefValue(reflect.ValueOf(val))
	if rval.IsValid() && rval.Kind() == reflect.String {
		return rval.String(), true
	}
	return ``, false
}

/*
Returns a copy of the registry that only contains the named operators. Useful
for building restricted compilers, for example for filters supplied by
untrusted clients.
*/
func Restrict[A any](ops map[string]A, names ...string) map[string]A {
	out := make(map[string]A, len(names))
	for _, name := range names {
		if op, ok := ops[name]; ok {
			out[name] = op
		}
	}
	return out
}

func copyOps[A any](ops map[string]A) map[string]A {
	out := make(map[string]A, len(ops))
	for key, val := range ops {
		out[key] = val
	}
	return out
}
