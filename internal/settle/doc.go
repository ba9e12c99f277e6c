// Package settle decides when a newly created file or folder has finished
// being written.
//
// A path is busy while a Prober says so: LockProber tries an exclusive flock
// on every regular file, OpenFileProber looks for processes holding the path
// open. Wait polls the probers and additionally requires the size and
// modification time of the whole tree to stay unchanged between polls.
package settle
