package preflight

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names a helper binary deskdrop shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// BinaryStatus reports whether a Requirement resolved on PATH.
type BinaryStatus struct {
	Requirement
	Path      string
	Available bool
	Detail    string
}

// CheckBinaries resolves each requirement with exec.LookPath.
func CheckBinaries(requirements []Requirement) []BinaryStatus {
	results := make([]BinaryStatus, 0, len(requirements))
	for _, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		status := BinaryStatus{Requirement: req}
		switch resolved, err := exec.LookPath(req.Command); {
		case req.Command == "":
			status.Detail = "command not configured"
		case err != nil:
			status.Detail = fmt.Sprintf("binary %q not found", req.Command)
		default:
			status.Available = true
			status.Path = resolved
		}
		results = append(results, status)
	}
	return results
}
