package report

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"sonar-audit/model"
)

var header = color.New(color.Bold)

// PrintTotal writes the grand total as a single integer line.
func PrintTotal(w io.Writer, total int) {
	fmt.Fprintln(w, total)
}

// PrintLargestFiles writes the file listing of one branch, largest first.
func PrintLargestFiles(w io.Writer, projectKey, branch string, entries []model.FileSizeEntry) {
	header.Fprintf(w, "Largest files of %s@%s\n", projectKey, branch)
	for _, e := range entries {
		fmt.Fprintf(w, "%10d  %s\n", e.Lines, e.Path)
	}
}

// PrintLargestBranches writes the top n branches by analyzed lines.
func PrintLargestBranches(w io.Writer, records []model.BranchRecord, n int) {
	ranked := RankByLines(records)
	if n > 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	header.Fprintln(w, "Largest branches")
	for _, r := range ranked {
		fmt.Fprintf(w, "%10d  %s@%s\n", r.Lines, r.ProjectKey, r.BranchName)
	}
}
