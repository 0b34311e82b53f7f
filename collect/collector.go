package collect

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/semaphore"

	"sonar-audit/model"
	"sonar-audit/sonar"
)

// API is the slice of the server client the collector needs.
type API interface {
	ListProjects(ctx context.Context, cursor *sonar.Cursor) ([]model.Project, *sonar.Cursor, error)
	ListBranches(ctx context.Context, projectKey string) ([]model.Branch, error)
	BranchMeasure(ctx context.Context, projectKey, branch string) (int, error)
}

// Collector walks every project and branch on the server and produces one
// BranchRecord per branch, in enumeration order: project listing order, then
// branch listing order within each project.
//
// A failure to list projects or branches aborts the run, because the record
// set would be unreliable. A failure to measure a single branch only skips
// that branch with a warning, so one deleted branch cannot sink a whole
// audit pass.
type Collector struct {
	// ProjectFilter, when set, restricts the run to one project key.
	ProjectFilter string

	// Concurrency caps the measure requests in flight per project.
	Concurrency int64

	// Progress, when set, is called after each processed project.
	Progress func(done, total int)

	// Warnf receives skip warnings; defaults to log.Printf.
	Warnf func(format string, args ...any)

	api API
}

func New(api API) *Collector {
	return &Collector{
		Concurrency: 5,
		Warnf:       log.Printf,
		api:         api,
	}
}

// Run produces the complete record set for the instance.
func (c *Collector) Run(ctx context.Context) ([]model.BranchRecord, error) {
	projects, err := c.listAllProjects(ctx)
	if err != nil {
		return nil, err
	}

	if c.ProjectFilter != "" {
		filtered := projects[:0]
		for _, project := range projects {
			if project.Key == c.ProjectFilter {
				filtered = append(filtered, project)
			}
		}
		projects = filtered
		if len(projects) == 0 {
			return nil, fmt.Errorf("project %q not found on the server", c.ProjectFilter)
		}
	}

	var records []model.BranchRecord
	for i, project := range projects {
		branches, err := c.api.ListBranches(ctx, project.Key)
		if err != nil {
			return nil, fmt.Errorf("listing branches of %s: %w", project.Key, err)
		}

		recs, err := c.measureBranches(ctx, project.Key, branches)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)

		if c.Progress != nil {
			c.Progress(i+1, len(projects))
		}
	}

	return records, nil
}

// listAllProjects drains the paginated project listing. Duplicate keys are
// dropped, and a cursor that fails to advance aborts the loop rather than
// spinning forever on a misbehaving server.
func (c *Collector) listAllProjects(ctx context.Context) ([]model.Project, error) {
	var (
		projects []model.Project
		cursor   *sonar.Cursor
	)
	seen := make(map[string]struct{})

	for {
		page, next, err := c.api.ListProjects(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("listing projects: %w", err)
		}

		for _, project := range page {
			if _, dup := seen[project.Key]; dup {
				continue
			}
			seen[project.Key] = struct{}{}
			projects = append(projects, project)
		}

		if next == nil {
			return projects, nil
		}
		lastPage := 1
		if cursor != nil {
			lastPage = cursor.Page
		}
		if next.Page <= lastPage {
			return nil, fmt.Errorf("project listing cursor did not advance past page %d", lastPage)
		}
		cursor = next
	}
}

// measureBranches fetches the line count of each branch with a bounded
// fan-out. Results land in slots indexed by branch position, so the record
// order matches the branch listing no matter how requests interleave.
func (c *Collector) measureBranches(ctx context.Context, projectKey string, branches []model.Branch) ([]model.BranchRecord, error) {
	type slot struct {
		record model.BranchRecord
		ok     bool
	}
	slots := make([]slot, len(branches))

	limit := c.Concurrency
	if limit <= 0 {
		limit = 1
	}
	sem := semaphore.NewWeighted(limit)

	var wg sync.WaitGroup
	for i, branch := range branches {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, err
		}
		wg.Add(1)
		go func(i int, branch model.Branch) {
			defer wg.Done()
			defer sem.Release(1)

			lines, err := c.api.BranchMeasure(ctx, projectKey, branch.Name)
			if err != nil {
				c.warnf("warning: skipping branch %s of %s: %v", branch.Name, projectKey, err)
				return
			}
			slots[i] = slot{
				record: model.BranchRecord{ProjectKey: projectKey, BranchName: branch.Name, Lines: lines},
				ok:     true,
			}
		}(i, branch)
	}
	wg.Wait()

	records := make([]model.BranchRecord, 0, len(branches))
	for _, s := range slots {
		if s.ok {
			records = append(records, s.record)
		}
	}
	return records, nil
}

func (c *Collector) warnf(format string, args ...any) {
	if c.Warnf != nil {
		c.Warnf(format, args...)
	}
}
