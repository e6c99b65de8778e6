// Package sql provides the SQL text/argument builders sqlgen and migrate
// compile down to: a low-level Builder for identifier-quoted, placeholder-
// tracked fragments, a Selector for SELECT statements (joins, predicates,
// ordering, limit/offset, FOR UPDATE), an InsertBuilder for INSERT ...
// RETURNING, and a family of predicate constructors (EQ, Like, In, And/Or,
// IsNull, ...) used to build WHERE trees.
//
// UPDATE and DELETE statements have no dedicated builder type; sqlgen
// writes them directly against a Builder, since neither needs a Selector's
// join/ordering machinery.
//
// # Predicates
//
//	sql.EQ("name", "john")                  // "name" = ?
//	sql.NEQ("status", "deleted")             // "status" <> ?
//	sql.GT("age", 18)                        // "age" > ?
//	sql.Contains("name", "john")             // "name" LIKE ?  (with %john% bound)
//	sql.In("status", "active", "pending")    // "status" IN (?, ?)
//	sql.IsNull("deleted_at")                 // "deleted_at" IS NULL
//
// # Selects
//
//	s := sql.Select("sqlite3", "id", "name").From("users").
//	    Where(sql.EQ("status", "active")).
//	    OrderBy("id", sql.OrderAsc).
//	    Limit(10)
//	query, args := s.Query()
//
// # Nested JSON composition
//
// JSONObject and JSONGroupArray render the json_object(...)/
// json_group_array(...) expressions sqlgen's select lowering nests a
// to-many relation's rows into, for the nested-JSON shape sqlgen's select
// lowering produces.
package sql
