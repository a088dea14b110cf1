// Package schemas embeds the SQL schema of each database.
package schemas

import "embed"

// FS holds one <name>_schema.sql file per database.
//
//go:embed *.sql
var FS embed.FS
