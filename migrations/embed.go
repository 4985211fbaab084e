// Package migrations carries the ledger schema. Files are applied in name
// order by the postgres test container and by external migration tooling.
package migrations

import "embed"

// FS holds every up and down migration.
//
//go:embed *.sql
var FS embed.FS
