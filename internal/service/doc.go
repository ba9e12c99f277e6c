// Package service installs and runs deskdrop as a per-user system service
// (systemd user unit, launchd agent) through kardianos/service.
package service
