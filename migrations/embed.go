// Package migrations embeds the SQL schema migrations so binaries do not
// depend on the files being shipped next to them.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
