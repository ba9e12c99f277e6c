// Package daemonrun hosts the `deskdrop run` process: per-run log files with
// a deskdrop.log pointer, log retention, preflight logging, the pid file, the
// daemon itself and its IPC server.
package daemonrun
