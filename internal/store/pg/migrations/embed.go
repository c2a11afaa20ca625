package migrations

import "embed"

// Files contains the schema migrations, applied in filename order.
//
//go:embed *.sql
var Files embed.FS
