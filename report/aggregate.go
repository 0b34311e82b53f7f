package report

import (
	"sort"

	"sonar-audit/model"
)

// TotalLines sums the analyzed lines over all records. The result does not
// depend on record order. On a complete record set it matches the total the
// server shows on its license administration page.
func TotalLines(records []model.BranchRecord) int {
	total := 0
	for _, r := range records {
		total += r.Lines
	}
	return total
}

// RankByLines returns the records sorted by descending line count. Equal
// counts are ordered by project key, then branch name, so ranking is
// deterministic and idempotent. The input slice is left untouched.
func RankByLines(records []model.BranchRecord) []model.BranchRecord {
	ranked := make([]model.BranchRecord, len(records))
	copy(ranked, records)
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Lines != b.Lines {
			return a.Lines > b.Lines
		}
		if a.ProjectKey != b.ProjectKey {
			return a.ProjectKey < b.ProjectKey
		}
		return a.BranchName < b.BranchName
	})
	return ranked
}

// RankFiles returns the entries sorted by descending line count. The server
// contract leaves the order of equal-sized files unspecified, so ties are
// pinned to ascending path order here. The input slice is left untouched.
func RankFiles(entries []model.FileSizeEntry) []model.FileSizeEntry {
	ranked := make([]model.FileSizeEntry, len(entries))
	copy(ranked, entries)
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Lines != b.Lines {
			return a.Lines > b.Lines
		}
		return a.Path < b.Path
	})
	return ranked
}
