// Package history records playback runs in a SQLite database so the CLI can
// list past sessions. The decoder session itself never reads it.
//
// The schema lives in embedded migrations applied in filename order and
// tracked in schema_migrations, so existing databases upgrade in place.
package history
