// Command deskdrop watches the desktop folder and files every new entry into
// a folder named after the most recently connected removable drive.
//
// `deskdrop run` hosts the daemon in the foreground; `deskdrop start` launches
// it detached. The remaining commands talk to the daemon over its Unix socket
// and fall back to local reads where that makes sense.
package main
