package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
)

// NoSuitesError is returned when a suite pattern matches no files.
type NoSuitesError struct {
	Pattern string
}

// Error implements the error interface.
func (e *NoSuitesError) Error() string {
	return fmt.Sprintf("no suite files match %q", e.Pattern)
}

// Discover returns the suite files matching a doublestar pattern such as
// "testdata/suites/**/*.yaml", in lexical order. A directory is searched
// recursively for *.yaml and *.yml files.
func Discover(pattern string) ([]string, error) {
	if info, err := os.Stat(pattern); err == nil && info.IsDir() {
		pattern = filepath.Join(pattern, "**", "*.{yaml,yml}")
	}

	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("discover suites: %w", err)
	}
	if len(matches) == 0 {
		return nil, &NoSuitesError{Pattern: pattern}
	}
	slices.Sort(matches)
	return matches, nil
}

// Summary aggregates the results of several suites.
type Summary struct {
	TotalSuites int       `json:"total_suites"`
	TotalCases  int       `json:"total_cases"`
	Passed      int       `json:"passed"`
	Failed      int       `json:"failed"`
	Failures    []Failure `json:"failures,omitempty"`
	Results     []*Result `json:"results"`
}

// Failure represents one failed case.
type Failure struct {
	Suite  string   `json:"suite"`
	Path   string   `json:"path"`
	Case   string   `json:"case"`
	Errors []string `json:"errors"`
}

// Pass reports whether every case of every suite passed.
func (s *Summary) Pass() bool {
	return s.Failed == 0
}

// RunAll loads and runs every suite file in order.
//
// A suite that fails to load or prepare stops the run: it is a broken
// fixture, not a failing case.
func (h *Harness) RunAll(ctx context.Context, paths []string) (*Summary, error) {
	summary := &Summary{Results: []*Result{}}
	for _, path := range paths {
		suite, err := LoadSuite(path)
		if err != nil {
			return nil, err
		}
		result, err := h.Run(ctx, suite)
		if err != nil {
			return nil, err
		}

		summary.TotalSuites++
		summary.TotalCases += len(result.Cases)
		summary.Passed += result.Passed
		summary.Failed += result.Failed
		summary.Results = append(summary.Results, result)
		for _, c := range result.Cases {
			if !c.Pass {
				summary.Failures = append(summary.Failures, Failure{
					Suite:  suite.Name,
					Path:   path,
					Case:   c.Name,
					Errors: c.Errors,
				})
			}
		}
	}
	return summary, nil
}
