// Package daemon coordinates the long-running deskdrop process.
//
// It wires configuration, the move history store, the removable drive
// monitor, the desktop watcher and the arranger into a single lifecycle with
// flock-based locking to prevent multiple instances. The daemon also exposes
// the control surface used over IPC: pause/resume, manual arrangement,
// history queries and drive listings.
//
// Keep orchestration logic here: settling, moving and notification details
// live in their own packages while the daemon focuses on startup, shutdown
// and high level coordination.
package daemon
