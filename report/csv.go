package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"sonar-audit/model"
)

// CSVHeader is the column layout of the branch size report.
var CSVHeader = []string{"project_key", "branch_name", "ncloc"}

// WriteCSV writes one row per record, in the order given, replacing any file
// already at path.
func WriteCSV(records []model.BranchRecord, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("error creating report directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating report file: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(CSVHeader); err != nil {
		f.Close()
		return fmt.Errorf("error writing report header: %w", err)
	}
	for _, r := range records {
		if err := w.Write([]string{r.ProjectKey, r.BranchName, strconv.Itoa(r.Lines)}); err != nil {
			f.Close()
			return fmt.Errorf("error writing report row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("error writing report: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("error saving report file %s: %w", path, err)
	}
	return nil
}
