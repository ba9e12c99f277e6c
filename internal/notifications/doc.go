// Package notifications tells the user that a desktop entry is being moved
// and where it went.
//
// Messages are built once and handed to every enabled backend: a desktop
// notification through notify-send, which replaces the "moving" bubble with
// the result and expires after notify.display_seconds, and an optional ntfy
// topic. With no backend enabled a no-op implementation is returned, so
// callers depend only on the Service interface.
package notifications
