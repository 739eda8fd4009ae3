// Package migrations holds the ledger schema for each supported database.
package migrations

import "embed"

// SQLite holds migrations for the SQLite ledger.
//
//go:embed sqlite/*.sql
var SQLite embed.FS

// Postgres holds migrations for the PostgreSQL ledger.
//
//go:embed postgres/*.sql
var Postgres embed.FS
