// Package database provides SQLite-based run history for newsharvest.
//
// Every finished run is stored with:
//   - the full run report as JSON, for re-rendering with the history command
//   - summary columns (query, window, state, record count) for listing
//   - one row per exported record, used to count articles that no earlier
//     run has exported
//
// Runs are keyed by a random UUID. The database is a single file opened
// through modernc.org/sqlite, which needs no cgo, with WAL journaling
// enabled by default.
package database
