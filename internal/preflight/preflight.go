package preflight

import (
	"openbuckets/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll checks every watch directory and the search tools.
func RunAll(watchDirs []string) []Result {
	results := make([]Result, 0, len(watchDirs)+1)
	for _, dir := range watchDirs {
		results = append(results, CheckWatchDirectory(dir))
	}
	results = append(results, CheckSearchTools(deps.CheckBinaries(deps.SearchTools())))
	return results
}

// Failed filters results down to those that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
