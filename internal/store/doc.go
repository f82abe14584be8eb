// Package store is the database layer of the harness.
//
// A Dialect hides the differences between the engines the harness can
// provision a test database on:
//
//   - mysql: the production engine. Databases live on a server; the
//     reference schema is read with SHOW CREATE and information_schema.
//   - sqlite: a database is a file <dir>/<name>.db. The reference schema is
//     ATTACHed and read from its sqlite_master. Used for hermetic runs and
//     the package tests.
//
// # Error Classification
//
// Dialects translate typed driver errors (*mysql.MySQLError numbers,
// sqlite3.Error codes) into testerr kinds. Callers never inspect driver
// messages:
//
//   - unknown database           → testerr.KindUnknownDatabase
//   - unreachable server / file  → testerr.KindConnection
//   - unique / FK / not-null     → testerr.KindConstraintViolation
//   - anything else              → testerr.KindQuery
//
// # Foreign Key Checks
//
// Both engines scope the foreign-key switch to a session, so every operation
// that toggles it (clone, clean) runs on one pinned *sql.Conn.
package store
