// Package daemonctl is the CLI side of daemon control. It launches a
// detached daemon and stops it, falling back to a pid-file kill. Status
// queries read history straight from the database when no daemon answers.
package daemonctl
