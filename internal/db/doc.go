// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

// Package db contains the data-access layer of the server registry.
//
// A single Bun-based implementation, BunStore, serves SQLite, PostgreSQL and
// MySQL. Callers depend on the Store interface so tests and higher layers
// can swap in fakes; nothing in this package keeps a process-wide handle.
//
// Schema
//   - Migrations are embedded per dialect under migrations/<type>/ and are
//     tracked in schema_migrations. New opens the database and applies the
//     pending ones before returning a store.
//   - A NULL status means active. Lookups and listings skip every other
//     status unless the caller asks for inactive rows explicitly.
//
// Errors
//   - Driver errors pass through MapDBError: unique violations become
//     ErrDuplicate and empty single-row results become fault.ErrNotFound.
//
// Testing notes
//   - Prefer New("sqlite", "file:<name>?mode=memory&cache=shared") in tests
//     that need real DB semantics and migrations.
package db
