// Package history persists a record of every arrangement in SQLite.
//
// Each settled entry yields one row: where it came from, where it went, the
// drive that named the destination, and whether the move succeeded. The CLI
// reads it back through the daemon for `deskdrop history`.
package history
