package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external binary open-buckets can shell out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is a Requirement resolved against PATH. Path is empty when the
// binary was not found, and Detail then says why.
type Status struct {
	Requirement
	Path   string
	Detail string
}

// Available reports whether the binary was resolved.
func (s Status) Available() bool { return s.Path != "" }

// SearchTools lists the directory search backends, ripgrep first.
func SearchTools() []Requirement {
	return []Requirement{
		{Name: "ripgrep", Command: "rg", Description: "Preferred directory search tool", Optional: true},
		{Name: "grep", Command: "grep", Description: "Fallback directory search tool", Optional: true},
	}
}

// CheckBinaries resolves each requirement with exec.LookPath.
func CheckBinaries(requirements []Requirement) []Status {
	return checkWith(exec.LookPath, requirements)
}

func checkWith(lookPath func(string) (string, error), requirements []Requirement) []Status {
	results := make([]Status, len(requirements))
	for i, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		req.Description = strings.TrimSpace(req.Description)
		results[i] = resolve(lookPath, req)
	}
	return results
}

func resolve(lookPath func(string) (string, error), req Requirement) Status {
	st := Status{Requirement: req}
	if req.Command == "" {
		st.Detail = "command not configured"
		return st
	}
	path, err := lookPath(req.Command)
	switch {
	case err != nil:
		st.Detail = fmt.Sprintf("binary %q not found", req.Command)
	case path == "":
		st.Detail = fmt.Sprintf("binary %q resolved to an empty path", req.Command)
	default:
		st.Path = path
	}
	return st
}

// FirstAvailable returns the first resolved status in order.
func FirstAvailable(statuses []Status) (Status, bool) {
	for _, s := range statuses {
		if s.Available() {
			return s, true
		}
	}
	return Status{}, false
}
