package model

// Project is one project on the server, as returned by the project search.
type Project struct {
	Key  string
	Name string
}

// Branch is one analyzed branch of a project.
type Branch struct {
	Name   string
	IsMain bool
}

// BranchRecord is one output row of the branch size report: exactly one
// record exists per (project, branch) pair.
type BranchRecord struct {
	ProjectKey string
	BranchName string
	Lines      int
}

// FileSizeEntry is one file of a branch with its analyzed line count.
type FileSizeEntry struct {
	Path  string
	Lines int
}
