package migrations

import "embed"

// PostgresFS embeds the journal store migration files.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds the tick archive migration files.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
