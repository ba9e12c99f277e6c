// Package preflight provides readiness checks for the folders, kernel
// interfaces and helper binaries that deskdrop depends on.
//
// These checks run in two contexts:
//   - `deskdrop run` logs every failed check at startup without refusing to
//     start, since most failures only degrade behaviour.
//   - `deskdrop status` renders the same checks when the daemon is offline.
//
// Each check is gated by its config toggle -- disabled features are skipped.
package preflight
