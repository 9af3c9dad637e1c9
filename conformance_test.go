package filter

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

type member struct {
	ID      int64          `json:"id"     db:"id"`
	Name    string         `json:"name"   db:"name"`
	Age     *int64         `json:"age"    db:"age"`
	Born    *time.Time     `json:"born"   db:"born"`
	Active  bool           `json:"active" db:"active"`
	Meta    map[string]any `json:"meta"   db:"meta"`
	Tags    []string       `json:"tags"   db:"tags"`
	Parents []parent       `json:"parents"`
}

type parent struct {
	Name string `json:"name" db:"name"`
}

func ptr[A any](val A) *A { return &val }

func members() []member {
	return []member{
		{
			ID:      1,
			Name:    `Alice`,
			Age:     ptr(int64(30)),
			Born:    ptr(time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)),
			Active:  true,
			Meta:    map[string]any{`city`: `Gent`, `zip`: 9000},
			Tags:    []string{`a`, `b`},
			Parents: []parent{{Name: `Bob`}},
		},
		{
			ID:      2,
			Name:    `bob`,
			Tags:    []string{},
			Parents: []parent{},
		},
		{
			ID:      3,
			Name:    `CHARLIE`,
			Age:     ptr(int64(15)),
			Born:    ptr(time.Date(2009, 5, 5, 0, 0, 0, 0, time.UTC)),
			Active:  true,
			Meta:    map[string]any{`city`: `Antwerpen`, `zip`: `B-2000`},
			Tags:    []string{`b`, `c`},
			Parents: []parent{{Name: `Alice`}, {Name: `Dave`}},
		},
		{
			ID:      4,
			Name:    `Natalie`,
			Age:     ptr(int64(42)),
			Born:    ptr(time.Date(1982, 3, 3, 0, 0, 0, 0, time.UTC)),
			Meta:    map[string]any{`city`: `gent`, `zip`: 9050},
			Tags:    []string{`x`},
			Parents: []parent{{Name: `bob`}},
		},
		{
			ID:      5,
			Name:    `Eve`,
			Age:     ptr(int64(7)),
			Active:  true,
			Meta:    map[string]any{`zip`: 1000},
			Tags:    []string{`a`},
			Parents: []parent{},
		},
	}
}

func memberCompiler() SQLCompiler {
	fields := FieldsFor(member{})
	fields[`parents`] = RelationField(
		Relation{Table: `parents`, Alias: `parent`, ForeignKey: `person_id`, ParentKey: `id`},
		FieldsFor(parent{}),
	)
	return SQLCompiler{Fields: fields}
}

func openMembers(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open(`sqlite`, `:memory:`)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE people (
			id     INTEGER PRIMARY KEY,
			name   TEXT NOT NULL,
			age    INTEGER,
			born   INTEGER,
			active INTEGER NOT NULL,
			meta   TEXT,
			tags   TEXT NOT NULL
		);
		CREATE TABLE parents (
			person_id INTEGER NOT NULL,
			name      TEXT NOT NULL
		);
	`)
	require.NoError(t, err)

	for _, val := range members() {
		var age, born any
		if val.Age != nil {
			age = *val.Age
		}
		if val.Born != nil {
			born = val.Born.UnixMilli()
		}
		var meta any
		if val.Meta != nil {
			chunk, err := json.Marshal(val.Meta)
			require.NoError(t, err)
			meta = string(chunk)
		}
		tags, err := json.Marshal(val.Tags)
		require.NoError(t, err)

		_, err = db.Exec(
			`INSERT INTO people (id, name, age, born, active, meta, tags) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			val.ID, val.Name, age, born, val.Active, meta, string(tags),
		)
		require.NoError(t, err)

		for _, rel := range val.Parents {
			_, err = db.Exec(`INSERT INTO parents (person_id, name) VALUES (?, ?)`, val.ID, rel.Name)
			require.NoError(t, err)
		}
	}
	return db
}

func selectMemberIDs(t *testing.T, db *sql.DB, cond Condition, order OrderBy) []int64 {
	t.Helper()

	buf := Buffer{Options: RenderOptions{Dialect: SQLite, Namespace: `people`}}
	buf.Str(`SELECT "people"."id" FROM "people" WHERE `)
	buf.Frag(cond)
	buf.Str(` `)
	if len(order) > 0 {
		buf.Frag(order)
	} else {
		buf.Str(`ORDER BY "people"."id"`)
	}
	text := string(buf.Text)

	rows, err := db.Query(text, buf.Args...)
	require.NoError(t, err, text)
	defer rows.Close()

	out := []int64{}
	for rows.Next() {
		var id int64
		require.NoError(t, rows.Scan(&id))
		out = append(out, id)
	}
	require.NoError(t, rows.Err())
	return out
}

func memberIDs(records []member) []int64 {
	out := []int64{}
	for _, record := range records {
		out = append(out, record.ID)
	}
	return out
}

var conformanceFilters = []string{
	`{}`,
	`{"name": "alice"}`,
	`{"name": {"$neq": "ALICE"}}`,
	`{"name": {"$gt": "c"}}`,
	`{"name": {"$in": ["alice", "BOB"]}}`,
	`{"name": {"$contains": "ali"}}`,
	`{"name": {"$contains": "%"}}`,
	`{"name": {"$length": {"$gt": 5}}}`,
	`{"name": {"$gt": 5}}`,
	`{"name": {"$lte": true}}`,
	`{"age": {"$gt": "a"}}`,
	`{"born": {"$gt": "2000"}}`,
	`{"meta.city": {"$gte": 0}}`,
	`{"meta.zip": {"$lt": "z"}}`,
	`{"age": {"$lt": 20}}`,
	`{"age": {"$lte": 15}}`,
	`{"age": {"$gt": 20}}`,
	`{"age": {"$gte": 30}}`,
	`{"age": {"$lt": null}}`,
	`{"age": {"$lte": null}}`,
	`{"age": {"$gt": null}}`,
	`{"age": {"$gte": null}}`,
	`{"age": null}`,
	`{"age": {"$neq": null}}`,
	`{"age": {"$in": [15, 42, null]}}`,
	`{"age": {"$in": []}}`,
	`{"active": true}`,
	`{"active": {"$neq": false}}`,
	`{"born": {"$lt": {"$": "$date", "value": 946684800000}}}`,
	`{"born": {"$gte": {"$": "$date", "value": "2000-01-01T00:00:00Z"}}}`,
	`{"born": {"$lt": {"$": "$now"}}}`,
	`{"meta.city": "GENT"}`,
	`{"meta": {"city": {"$contains": "ant"}}}`,
	`{"meta.zip": {"$gte": 9000}}`,
	`{"meta.zip": {"$in": [1000, 9050]}}`,
	`{"meta.city": null}`,
	`{"tags": "b"}`,
	`{"tags": {"$neq": "a"}}`,
	`{"tags": {"$in": ["c", "x"]}}`,
	`{"tags": {"$length": 0}}`,
	`{"tags": {"$length": {"$gte": 2}}}`,
	`{"tags": {"$gt": 1}}`,
	`{"tags": {"$gte": "a"}}`,
	`{"tags": {"$lt": null}}`,
	`{"tags": {"$lte": null}}`,
	`{"tags": {"$elemMatch": {"$in": ["x", "C"]}}}`,
	`{"tags": {"$elemMatch": {"$gt": 1}}}`,
	`{"tags": {"$elemMatch": {"$not": {"$eq": "a"}}}}`,
	`{"parents": {"$elemMatch": {"name": "bob"}}}`,
	`{"parents": {"$elemMatch": {"name": {"$in": ["alice", "dave"]}}}}`,
	`{"parents": {"$elemMatch": {}}}`,
	`{"$or": [{"age": {"$lt": 10}}, {"name": {"$contains": "lie"}}]}`,
	`{"$or": {"active": false, "tags": "a"}}`,
	`{"$or": []}`,
	`{"$not": {"age": {"$gt": 20}, "active": true}}`,
	`[{"active": true}, {"tags": "b"}]`,
	`{"$and": [{"age": {"$neq": 15}}, {"$not": {"meta.city": null}}]}`,
}

func TestConformance(t *testing.T) {
	db := openMembers(t)
	records := members()
	compiler := memberCompiler()

	check := func(t *testing.T, expr Expr) {
		matcher, err := MemoryCompiler{}.Compile(expr)
		require.NoError(t, err)
		matched, err := Select(matcher, records)
		require.NoError(t, err)

		cond, err := compiler.Compile(expr)
		require.NoError(t, err)

		assert.Equal(t, memberIDs(matched), selectMemberIDs(t, db, cond, nil))
	}

	for _, src := range conformanceFilters {
		t.Run(src, func(t *testing.T) {
			expr := decode(t, src)
			check(t, expr)

			t.Run(`not`, func(t *testing.T) {
				check(t, Object{{Key: `$not`, Value: expr}})
			})
		})
	}
}

func TestConformanceOrdering(t *testing.T) {
	db := openMembers(t)
	compiler := memberCompiler()

	cases := [][]string{
		{`id desc`},
		{`name asc`},
		{`name desc`},
		{`age asc`, `id asc`},
		{`age desc`, `id asc`},
		{`born asc`, `id asc`},
		{`meta.city desc`, `id asc`},
		{`meta.zip asc`, `name desc`},
		{`meta.zip desc`, `id asc`},
	}

	for _, vals := range cases {
		t.Run(vals[0], func(t *testing.T) {
			var ords Ords
			require.NoError(t, ords.ParseSlice(vals))

			records := members()
			SortRecords(ords, records)

			order, err := compiler.OrderBy(ords)
			require.NoError(t, err)

			assert.Equal(t, memberIDs(records), selectMemberIDs(t, db, Bool(true), order))
		})
	}
}
