// Package devices tracks removable drives so new desktop entries can be filed
// under the name of the most recently connected one.
//
// Tracker holds the connected-drive count and the last drive seen. Monitor
// feeds it from udev netlink events, and Lister enumerates drives that are
// already mounted for the CLI and for seeding the tracker at startup.
package devices
