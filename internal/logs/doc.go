// Package logs reads the daemon log for `deskdrop logs`.
//
// Tail returns the last N complete lines or everything after a byte offset,
// and in follow mode blocks on fsnotify write events until new lines arrive
// or the wait expires. Partial lines are left for the next call.
package logs
