/*
Overview

Portable filter expressions. One declarative filter is compiled two ways: into
an in-memory predicate over already-loaded records, and into a parameterized
SQL condition, including conditions on JSON columns, for pushdown. Both
compilations select the same records.

Example filter, as JSON:

  {
    "age": {"$gte": 18},
    "$or": [
      {"address.city": "Gent"},
      {"tags": {"$in": ["member", "volunteer"]}}
    ]
  }

Language structure

A filter is a scalar, a list or an object:

  * an object is a conjunction of its keys; each key is an operator such as
    "$eq", or a dotted field path such as "address.city" whose value is a
    sub-filter applied to that field
  * a list is a conjunction of its items
  * a bare scalar means "$eq"

So these are equivalent:

  {"name": "Alice"}

  {"name": {"$eq": "Alice"}}

  [{"name": {"$eq": "Alice"}}]

Built-in operators: "$and", "$or", "$not", "$eq", "$neq", "$lt", "$lte",
"$gt", "$gte", "$in", "$contains", "$length" and "$elemMatch". Operators are
plain functions registered in maps (`MemoryOps`, `SQLOps`); unknown operators
always fail with `ErrUnsupportedOperator`, never get skipped.

Values

Leaves are strings, numbers, booleans, timestamps and null. Strings compare
case-insensitively. Timestamps compare as epoch milliseconds and booleans as 0
and 1. Null is greater than every other value. Fields that a record doesn't
have are null. When a field holds a list, "$eq" and "$in" match if any element
matches.

Timestamps and the current time use markers on the wire:

  {"$": "$date", "value": 1700000000000}

  {"$": "$now"}

The second one decodes to `Now`, a `Deferred` value: SQL renders it as the
dialect's current time, the in-memory compiler resolves it for every record.

Compiling

In memory:

  matcher, err := MemoryCompiler{}.Compile(filter)
  ok, err := matcher.Match(record)

To SQL, with fields declared explicitly or derived from a struct:

  compiler := SQLCompiler{Fields: FieldsFor(Person{})}
  cond, err := compiler.Compile(filter)
  text, args := Render(cond, RenderOptions{Dialect: SQLite})

The SQL side is built from composable fragments (`Comparison`, `Like`, `And`,
`Or`, `Not`, `Exists`, the `JSON*` helpers) which can also be used directly.
`Where` and `Order` adapt compiled filters and orderings to `sqlb`.

Producers

Filters may come from Go values (`ExprOf`), JSON (`DecodeJSON`), MessagePack
(`DecodeMsgpack`) or a subset of CEL (`ParseCEL`). All of them produce the
same `Expr`.

Orderings

`Ords` describes orderings such as "lastName asc". They sort records in memory
(`SortRecords`) and compile to "ORDER BY" (`SQLCompiler.OrderBy`) with the same
null placement.
*/
package filter
