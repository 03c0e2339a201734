package preflight

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"openbuckets/internal/deps"
)

// CheckWatchDirectory verifies that path exists, is a directory, and can be
// listed.
func CheckWatchDirectory(path string) Result {
	name := "Watch " + path
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (readable)", path)}
}

// CheckSearchTools summarizes which search backend a drop will use.
func CheckSearchTools(statuses []deps.Status) Result {
	const name = "Search tool"
	first, ok := deps.FirstAvailable(statuses)
	if !ok {
		return Result{Name: name, Detail: "neither rg nor grep found on PATH; directory searches return no matches"}
	}
	if len(statuses) > 0 && first.Command != statuses[0].Command {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (fallback; %s not found)", first.Path, statuses[0].Command)}
	}
	return Result{Name: name, Passed: true, Detail: first.Path}
}
