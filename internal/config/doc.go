// Package config loads and validates deskdrop configuration.
//
// Defaults come first, then the TOML file, then normalization: user paths
// are expanded (including `~` and the XDG desktop directory) and list values
// are trimmed and de-duplicated. DESKDROP_NTFY_TOPIC fills notify.ntfy_topic
// when the file leaves it empty.
//
// Derived locations such as the history database, lock, socket and pid file
// all live under paths.state_dir; use the Config helpers rather than joining
// paths by hand.
package config
