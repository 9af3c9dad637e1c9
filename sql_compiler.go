package filter

import (
	"strings"
)

// SQL operator compiler, see `DefaultSQLOps`.
type SQLOp func(scope SQLScope, filter Expr) (Condition, error)

// SQL operator registry, keyed by the same names as `MemoryOps`.
type SQLOps map[string]SQLOp

// Filled in `init`: the operators reach the registry through their scope.
var defaultSQLOps SQLOps

func init() {
	defaultSQLOps = SQLOps{
		`$and`:       SQLAnd,
		`$or`:        SQLOr,
		`$not`:       SQLNot,
		`$eq`:        SQLEq,
		`$neq`:       SQLNeq,
		`$lt`:        SQLLt,
		`$lte`:       SQLLte,
		`$gt`:        SQLGt,
		`$gte`:       SQLGte,
		`$in`:        SQLIn,
		`$contains`:  SQLContains,
		`$length`:    SQLLength,
		`$elemMatch`: SQLElemMatch,
	}
}

// Returns a fresh copy of the built-in SQL operators.
func DefaultSQLOps() SQLOps { return copyOps(defaultSQLOps) }

// Kind of a `Field`.
type FieldKind byte

const (
	FieldColumn FieldKind = iota
	FieldJSON
	FieldJSONArray
	FieldRelation
)

/*
Maps a filter field to SQL. Build with `ColumnField`, `JSONField`,
`JSONArrayField` or `RelationField`, or derive a whole table with `FieldsFor`.
*/
type Field struct {
	Kind     FieldKind
	Column   string
	Path     string
	Nullable bool
	Relation Relation
	Fields   Fields
}

// Field definitions keyed by filter field name.
type Fields map[string]Field

// Plain column.
func ColumnField(column string, nullable bool) Field {
	return Field{Kind: FieldColumn, Column: column, Nullable: nullable}
}

/*
Scalar inside a JSON column. The path may be empty to address the whole
document. Keys that continue past the field name, such as "meta.city" for a
field "meta", address deeper paths in the same document.
*/
func JSONField(column string, path string) Field {
	return Field{Kind: FieldJSON, Column: column, Path: path, Nullable: true}
}

// Multi-valued field stored as a JSON array.
func JSONArrayField(column string, path string) Field {
	return Field{Kind: FieldJSONArray, Column: column, Path: path, Nullable: true}
}

/*
One-to-many relation. Filters on it must use `$elemMatch`, whose sub-filter is
compiled against the related table's own fields.
*/
func RelationField(rel Relation, fields Fields) Field {
	return Field{Kind: FieldRelation, Relation: rel, Fields: fields}
}

func (self Field) target(rest string) Target {
	switch self.Kind {
	case FieldJSON:
		path := joinPath(self.Path, rest)
		return Target{
			Kind:     TargetScalar,
			Expr:     JSONValue{Doc: Col(self.Column), Path: path},
			Doc:      Col(self.Column),
			Path:     path,
			Nullable: true,
		}
	case FieldJSONArray:
		return Target{Kind: TargetArray, Doc: Col(self.Column), Path: self.Path, Nullable: true}
	case FieldRelation:
		return Target{Kind: TargetRelation, Relation: self.Relation, Fields: self.Fields}
	}
	return Target{Kind: TargetScalar, Expr: Col(self.Column), Nullable: self.Nullable}
}

func joinPath(prefix string, suffix string) string {
	if prefix == `` {
		return suffix
	}
	if suffix == `` {
		return prefix
	}
	return prefix + `.` + suffix
}

// Kind of a `Target`.
type TargetKind byte

const (
	TargetScalar TargetKind = iota
	TargetArray
	TargetRelation
)

/*
What the operators of a field scope apply to. Scalars have `.Expr`; arrays and
scalars inside JSON have `.Doc` and `.Path`; relations have `.Relation` and
`.Fields`.
*/
type Target struct {
	Kind     TargetKind
	Expr     Fragment
	Doc      Fragment
	Path     string
	Nullable bool
	Relation Relation
	Fields   Fields
}

/*
Compiles filter expressions into SQL conditions. The zero value has no fields,
so only field-free filters such as `{}` compile. Nil `.Ops` means the built-in
operators, zero `.MaxDepth` means `DefaultMaxDepth`.

Like `MemoryCompiler`, this is a plain value safe for concurrent use. The
dialect is chosen later, when rendering.
*/
type SQLCompiler struct {
	Ops      SQLOps
	Fields   Fields
	MaxDepth int
}

/*
Compiles the given filter. The input may be any value accepted by `ExprOf`.
Every error is reported here; rendering never fails.
*/
func (self SQLCompiler) Compile(filter any) (Condition, error) {
	expr, err := ExprOf(filter)
	if err != nil {
		return nil, err
	}
	return self.scope().Compile(expr)
}

func (self SQLCompiler) scope() SQLScope {
	return SQLScope{compiler: &self, fields: self.Fields}
}

/*
Passed to every `SQLOp`. Carries the fields in scope and, inside a field, the
current `Target`.
*/
type SQLScope struct {
	compiler *SQLCompiler
	fields   Fields
	target   *Target
	depth    int
	key      string
}

// Key of the operator or field currently being compiled.
func (self SQLScope) Key() string { return self.key }

// Current field target, if any.
func (self SQLScope) Target() (Target, bool) {
	if self.target == nil {
		return Target{}, false
	}
	return *self.target, true
}

// Compiles a sub-filter as an implicit conjunction, exactly like the top level.
func (self SQLScope) Compile(filter Expr) (Condition, error) {
	limit := self.compiler.MaxDepth
	if limit <= 0 {
		limit = DefaultMaxDepth
	}
	if self.depth >= limit {
		return nil, errorf(ErrInvalidFilterShape, self.key, `filter nesting exceeds %v levels`, limit)
	}

	inner := self
	inner.depth++
	return SQLAnd(inner, filter)
}

// Compiles a sub-filter against another target, such as a derived length.
func (self SQLScope) CompileFor(target Target, filter Expr) (Condition, error) {
	inner := self
	inner.target = &target
	return inner.Compile(filter)
}

// Validates a comparison leaf. The result may be a `Deferred` sentinel.
func (self SQLScope) Comparand(filter Expr) (any, error) {
	val, err := Guard(filter)
	if err != nil {
		err.(*Error).Key = self.key
		return nil, err
	}
	return val, nil
}

func (self SQLScope) compileEntry(entry Entry) (Condition, error) {
	scope := self
	scope.key = entry.Key

	if isOperator(entry.Key) {
		op := self.ops()[entry.Key]
		if op == nil {
			return nil, errorf(ErrUnsupportedOperator, entry.Key, `operator is not registered`)
		}
		return op(scope, entry.Value)
	}

	target, err := self.resolveField(entry.Key)
	if err != nil {
		return nil, err
	}
	return scope.CompileFor(target, entry.Value)
}

/*
Field lookup: inside a JSON scalar, keys extend the JSON path. Otherwise the
key must name a field exactly, or start with the name of a JSON field followed
by a dotted sub-path.
*/
func (self SQLScope) resolveField(key string) (Target, error) {
	if self.target != nil {
		if self.target.Kind == TargetScalar && self.target.Doc != nil {
			return Field{Kind: FieldJSON, Path: self.target.Path}.targetOf(self.target.Doc, key)
		}
		return Target{}, errorf(ErrInvalidFilterShape, key, `field has no nested fields`)
	}

	field, ok := self.fields[key]
	if ok {
		return field.target(``), nil
	}

	head, rest, ok := strings.Cut(key, `.`)
	if ok {
		field, ok := self.fields[head]
		if ok && field.Kind == FieldJSON {
			return field.targetOf(Col(field.Column), rest)
		}
	}
	return Target{}, errorf(ErrUnsupportedOperator, key, `unknown field`)
}

func (self Field) targetOf(doc Fragment, rest string) (Target, error) {
	if !isDottedPath(rest) {
		return Target{}, errorf(ErrInvalidFilterShape, rest, `invalid JSON path`)
	}
	path := joinPath(self.Path, rest)
	return Target{
		Kind:     TargetScalar,
		Expr:     JSONValue{Doc: doc, Path: path},
		Doc:      doc,
		Path:     path,
		Nullable: true,
	}, nil
}

// Target of a field operator. Fails outside of a field and on relations.
func (self SQLScope) fieldTarget() (Target, error) {
	if self.target == nil {
		return Target{}, errorf(ErrInvalidFilterShape, self.key, `operator must be applied to a field`)
	}
	if self.target.Kind == TargetRelation {
		return Target{}, errorf(ErrInvalidFilterShape, self.key, `relation fields only support "$elemMatch"`)
	}
	return *self.target, nil
}

func (self SQLScope) ops() SQLOps {
	if self.compiler.Ops != nil {
		return self.compiler.Ops
	}
	return defaultSQLOps
}

// Conjunction of clauses. Renders as a true constant when empty.
func SQLAnd(scope SQLScope, filter Expr) (Condition, error) {
	clauses := Clauses(filter)
	conds := make(And, 0, len(clauses))

	for _, entry := range clauses {
		cond, err := scope.compileEntry(entry)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}

	if len(conds) == 1 {
		return conds[0], nil
	}
	return conds, nil
}

// Disjunction of operands, see `Items`. Renders as a false constant when empty.
func SQLOr(scope SQLScope, filter Expr) (Condition, error) {
	items := Items(filter)
	conds := make(Or, 0, len(items))

	for _, item := range items {
		cond, err := scope.Compile(item)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	return anyOf(conds), nil
}

// Negation via `Invert`: single comparisons flip their sign.
func SQLNot(scope SQLScope, filter Expr) (Condition, error) {
	cond, err := scope.Compile(filter)
	if err != nil {
		return nil, err
	}
	return Invert(cond), nil
}

/*
Equality. On JSON arrays this is containment. Comparing an array with null
also matches a missing or null document, like a null list in memory.
*/
func SQLEq(scope SQLScope, filter Expr) (Condition, error) {
	target, err := scope.fieldTarget()
	if err != nil {
		return nil, err
	}
	val, err := scope.Comparand(filter)
	if err != nil {
		return nil, err
	}

	if target.Kind == TargetArray {
		contains := JSONContains{Doc: target.Doc, Path: target.Path, Value: val}
		if val == nil {
			return Or{contains, target.isNull()}, nil
		}
		return contains, nil
	}

	out, err := Compare(target.Expr, Equal, val)
	if err != nil {
		err.(*Error).Key = scope.key
		return nil, err
	}
	out.Nullable = target.Nullable
	return out, nil
}

// Exact negation of `SQLEq`.
func SQLNeq(scope SQLScope, filter Expr) (Condition, error) {
	cond, err := SQLEq(scope, filter)
	if err != nil {
		return nil, err
	}
	return Invert(cond), nil
}

func SQLLt(scope SQLScope, filter Expr) (Condition, error) {
	return sqlOrder(scope, filter, Less)
}

func SQLLte(scope SQLScope, filter Expr) (Condition, error) {
	return sqlOrder(scope, filter, LessEqual)
}

func SQLGt(scope SQLScope, filter Expr) (Condition, error) {
	return sqlOrder(scope, filter, Greater)
}

func SQLGte(scope SQLScope, filter Expr) (Condition, error) {
	return sqlOrder(scope, filter, GreaterEqual)
}

/*
Ordering comparisons. Null is the greatest value, so comparisons against null
reduce to null checks or constants:

	< null    IS NOT NULL
	<= null   true
	> null    false
	>= null   IS NULL

Arrays are never ordered, like lists in memory.
*/
func sqlOrder(scope SQLScope, filter Expr, sign Sign) (Condition, error) {
	target, err := scope.fieldTarget()
	if err != nil {
		return nil, err
	}

	if target.Kind == TargetArray {
		return arrayOrder(scope, target, filter, sign)
	}

	if filter == nil {
		switch sign {
		case Less:
			return target.isNotNull(), nil
		case LessEqual:
			return Bool(true), nil
		case Greater:
			return Bool(false), nil
		default:
			return target.isNull(), nil
		}
	}

	out, err := Compare(target.Expr, sign, filter)
	if err != nil {
		err.(*Error).Key = scope.key
		return nil, err
	}
	out.Nullable = target.Nullable
	return out, nil
}

/*
A present list is never ordered against anything. A missing or null list is
null, the greatest value: it passes "$gt"/"$gte" against any value and
"$lte"/"$gte" against null.
*/
func arrayOrder(scope SQLScope, target Target, filter Expr, sign Sign) (Condition, error) {
	if filter != nil {
		_, err := Compare(target.Expr, sign, filter)
		if err != nil {
			err.(*Error).Key = scope.key
			return nil, err
		}
	}

	greatest := sign == Greater || sign == GreaterEqual
	if filter == nil {
		greatest = sign == LessEqual || sign == GreaterEqual
	}
	if greatest {
		return target.isNull(), nil
	}
	return Bool(false), nil
}

/*
Membership. The filter value must be a list. Null members become a separate
null check, since "IN" never matches NULL.
*/
func SQLIn(scope SQLScope, filter Expr) (Condition, error) {
	list, ok := filter.(List)
	if !ok {
		return nil, errorf(ErrInvalidFilterShape, scope.key, `expected a list, got %v`, typeName(filter))
	}
	target, err := scope.fieldTarget()
	if err != nil {
		return nil, err
	}

	vals := make([]any, 0, len(list))
	hasNull := false
	for _, elem := range list {
		val, err := scope.Comparand(elem)
		if err != nil {
			return nil, err
		}
		if val == nil {
			hasNull = true
		} else {
			vals = append(vals, val)
		}
	}

	var conds Or
	if target.Kind == TargetArray {
		if len(vals) > 0 {
			conds = append(conds, JSONOverlaps{Doc: target.Doc, Path: target.Path, Values: vals})
		}
		if hasNull {
			conds = append(conds, JSONContains{Doc: target.Doc, Path: target.Path}, target.isNull())
		}
		return anyOf(conds), nil
	}

	if len(vals) > 0 {
		conds = append(conds, Comparison{Left: target.Expr, Sign: Equal, Value: vals, Nullable: target.Nullable})
	}
	if hasNull {
		conds = append(conds, target.isNull())
	}
	return anyOf(conds), nil
}

/*
Case-insensitive substring test. Only strings contain anything: other
comparands and array fields compile to a false constant.
*/
func SQLContains(scope SQLScope, filter Expr) (Condition, error) {
	target, err := scope.fieldTarget()
	if err != nil {
		return nil, err
	}
	val, err := scope.Comparand(filter)
	if err != nil {
		return nil, err
	}

	str, ok := val.(string)
	if !ok || target.Kind == TargetArray {
		return Bool(false), nil
	}
	return Like{
		Left:     target.Expr,
		Pattern:  `%` + EscapeLike(lower(str)) + `%`,
		Nullable: target.Nullable,
	}, nil
}

// Applies the sub-filter to the character length or array length.
func SQLLength(scope SQLScope, filter Expr) (Condition, error) {
	target, err := scope.fieldTarget()
	if err != nil {
		return nil, err
	}

	var expr Fragment
	if target.Kind == TargetArray {
		expr = JSONLength{Doc: target.Doc, Path: target.Path}
	} else {
		expr = CharLength{Expr: target.Expr}
	}
	return scope.CompileFor(Target{Kind: TargetScalar, Expr: expr}, filter)
}

/*
Some element satisfies the sub-filter. On relations this is a correlated
`EXISTS` whose sub-filter uses the relation's fields; on JSON arrays the
sub-filter applies to each element.
*/
func SQLElemMatch(scope SQLScope, filter Expr) (Condition, error) {
	if scope.target == nil {
		return nil, errorf(ErrInvalidFilterShape, scope.key, `operator must be applied to a field`)
	}
	target := *scope.target

	switch target.Kind {
	case TargetRelation:
		inner := scope
		inner.fields = target.Fields
		inner.target = nil
		where, err := inner.Compile(filter)
		if err != nil {
			return nil, err
		}
		return Exists{Query: RelationQuery{Relation: target.Relation, Where: where}}, nil

	case TargetArray:
		where, err := scope.CompileFor(Target{Kind: TargetScalar, Expr: JSONElem{}, Nullable: true}, filter)
		if err != nil {
			return nil, err
		}
		return JSONElemMatch{Doc: target.Doc, Path: target.Path, Where: where}, nil
	}

	return nil, errorf(ErrInvalidFilterTarget, scope.key, `expected a relation or an array field`)
}

func (self Target) isNull() Comparison {
	if self.Kind == TargetArray {
		return Comparison{Left: JSONExtract{Doc: self.Doc, Path: self.Path}, Sign: Equal}
	}
	return Comparison{Left: self.Expr, Sign: Equal}
}

func (self Target) isNotNull() Comparison {
	return self.isNull().Inverted().(Comparison)
}

func anyOf(conds Or) Condition {
	if len(conds) == 1 {
		return conds[0]
	}
	return conds
}

/*
One-to-many relation between the current table and `.Table`, joined on
`.ForeignKey` (a column of `.Table`) and `.ParentKey` (a column of the current
table). `.Alias` defaults to the table name.
*/
type Relation struct {
	Table      string
	Alias      string
	ForeignKey string
	ParentKey  string
}

func (self Relation) alias() string {
	if self.Alias != `` {
		return self.Alias
	}
	return self.Table
}

/*
Correlated sub-select used by relation filters. `.Where` is rendered with the
relation's alias as the default namespace, so its columns refer to the related
table. The parent key is qualified with the enclosing namespace; set
`RenderOptions.Namespace` when both tables share column names.
*/
type RelationQuery struct {
	Relation Relation
	Where    Condition
}

func (self RelationQuery) AppendTo(buf *Buffer) {
	rel := self.Relation
	alias := rel.alias()

	buf.Str(`SELECT 1 FROM `)
	buf.Ident(rel.Table)
	if alias != rel.Table {
		buf.Str(` AS `)
		buf.Ident(alias)
	}
	buf.Str(` WHERE `)
	Column{Namespace: alias, Name: rel.ForeignKey}.AppendTo(buf)
	buf.Str(` = `)
	Col(rel.ParentKey).AppendTo(buf)

	if self.Where == nil || isEmptyAnd(self.Where) {
		return
	}
	buf.Str(` AND `)
	if self.Where.NeedsParens() {
		buf.Str(`(`)
		buf.FragIn(alias, self.Where)
		buf.Str(`)`)
	} else {
		buf.FragIn(alias, self.Where)
	}
}

func isEmptyAnd(cond Condition) bool {
	and, ok := cond.(And)
	return ok && len(and) == 0
}
