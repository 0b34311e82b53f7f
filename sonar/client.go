package sonar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sonar-audit/model"
)

const (
	defaultPageSize = 100
	requestTimeout  = 30 * time.Second
)

// Client talks to the Web API of one SonarQube instance. The token is sent
// as the basic-auth username with an empty password, which is how the server
// expects token authentication.
type Client struct {
	// PageSize is used for paginated listings. The server caps it at 500.
	PageSize int

	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		PageSize:   defaultPageSize,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// Cursor points at the next page of a paginated listing. A nil cursor means
// the first page on input and no further pages on output.
type Cursor struct {
	Page int
}

type paging struct {
	PageIndex int `json:"pageIndex"`
	PageSize  int `json:"pageSize"`
	Total     int `json:"total"`
}

type projectsResponse struct {
	Paging     paging `json:"paging"`
	Components []struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	} `json:"components"`
}

type branchesResponse struct {
	Branches []struct {
		Name   string `json:"name"`
		IsMain bool   `json:"isMain"`
	} `json:"branches"`
}

type measure struct {
	Metric string `json:"metric"`
	Value  string `json:"value"`
}

type measureResponse struct {
	Component struct {
		Key      string    `json:"key"`
		Measures []measure `json:"measures"`
	} `json:"component"`
}

type componentTreeResponse struct {
	Paging     paging `json:"paging"`
	Components []struct {
		Path     string    `json:"path"`
		Measures []measure `json:"measures"`
	} `json:"components"`
}

// ListProjects returns one page of projects and the cursor of the following
// page, or a nil cursor once the last page has been served.
func (c *Client) ListProjects(ctx context.Context, cursor *Cursor) ([]model.Project, *Cursor, error) {
	page := 1
	if cursor != nil {
		page = cursor.Page
	}

	query := url.Values{}
	query.Set("p", strconv.Itoa(page))
	query.Set("ps", strconv.Itoa(c.pageSize()))

	body, err := c.get(ctx, "api/projects/search", query)
	if err != nil {
		return nil, nil, err
	}

	var resp projectsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, nil, fmt.Errorf("decoding project listing: %w", err)
	}

	projects := make([]model.Project, 0, len(resp.Components))
	for _, component := range resp.Components {
		projects = append(projects, model.Project{Key: component.Key, Name: component.Name})
	}

	var next *Cursor
	if resp.Paging.PageIndex*resp.Paging.PageSize < resp.Paging.Total {
		next = &Cursor{Page: resp.Paging.PageIndex + 1}
	}

	return projects, next, nil
}

// ListBranches returns every analyzed branch of one project. The server does
// not paginate this listing.
func (c *Client) ListBranches(ctx context.Context, projectKey string) ([]model.Branch, error) {
	query := url.Values{}
	query.Set("project", projectKey)

	body, err := c.get(ctx, "api/project_branches/list", query)
	if err != nil {
		return nil, err
	}

	var resp branchesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding branch listing: %w", err)
	}

	branches := make([]model.Branch, 0, len(resp.Branches))
	for _, b := range resp.Branches {
		branches = append(branches, model.Branch{Name: b.Name, IsMain: b.IsMain})
	}

	return branches, nil
}

// BranchMeasure returns the analyzed line count of one branch. A branch
// without analyzed code carries no ncloc measure at all, which counts as
// zero. Returns ErrNotFound if the branch vanished since enumeration.
func (c *Client) BranchMeasure(ctx context.Context, projectKey, branch string) (int, error) {
	query := url.Values{}
	query.Set("component", projectKey)
	query.Set("branch", branch)
	query.Set("metricKeys", "ncloc")

	body, err := c.get(ctx, "api/measures/component", query)
	if err != nil {
		return 0, err
	}

	var resp measureResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decoding measure of %s@%s: %w", projectKey, branch, err)
	}

	if len(resp.Component.Measures) == 0 {
		return 0, nil
	}

	// The server serializes measure values as strings.
	lines, err := strconv.Atoi(resp.Component.Measures[0].Value)
	if err != nil {
		return 0, fmt.Errorf("unexpected ncloc value %q for %s@%s", resp.Component.Measures[0].Value, projectKey, branch)
	}

	return lines, nil
}

// LargestFiles returns up to limit files of one branch, largest first as
// sorted by the server. Callers that need a pinned tie order re-sort the
// result themselves.
func (c *Client) LargestFiles(ctx context.Context, projectKey, branch string, limit int) ([]model.FileSizeEntry, error) {
	query := url.Values{}
	query.Set("component", projectKey)
	query.Set("branch", branch)
	query.Set("metricKeys", "ncloc")
	query.Set("strategy", "leaves")
	query.Set("metricSort", "ncloc")
	query.Set("asc", "false")
	query.Set("s", "metric")
	query.Set("ps", strconv.Itoa(limit))

	body, err := c.get(ctx, "api/measures/component_tree", query)
	if err != nil {
		return nil, err
	}

	var resp componentTreeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding component tree of %s@%s: %w", projectKey, branch, err)
	}

	entries := make([]model.FileSizeEntry, 0, len(resp.Components))
	for _, component := range resp.Components {
		if len(component.Measures) == 0 {
			continue
		}
		lines, err := strconv.Atoi(component.Measures[0].Value)
		if err != nil {
			return nil, fmt.Errorf("unexpected ncloc value %q for %s", component.Measures[0].Value, component.Path)
		}
		entries = append(entries, model.FileSizeEntry{Path: component.Path, Lines: lines})
		if len(entries) == limit {
			break
		}
	}

	return entries, nil
}

func (c *Client) pageSize() int {
	if c.PageSize > 0 {
		return c.PageSize
	}
	return defaultPageSize
}

// get performs one GET against the Web API, retrying transient failures.
func (c *Client) get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	endpointURL := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, query.Encode())

	body, err := withRetry(ctx, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL, nil)
		if err != nil {
			return nil, err
		}
		if c.token != "" {
			req.SetBasicAuth(c.token, "")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			return io.ReadAll(resp.Body)
		case resp.StatusCode == http.StatusNotFound:
			return nil, ErrNotFound
		case isRetryableStatus(resp.StatusCode):
			io.Copy(io.Discard, resp.Body)
			return nil, &retryableStatusError{StatusCode: resp.StatusCode}
		default:
			return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
		}
	})
	if err != nil {
		var statusErr *retryableStatusError
		if errors.As(err, &statusErr) {
			err = &APIError{StatusCode: statusErr.StatusCode, Message: statusErr.Error()}
		}
		return nil, fmt.Errorf("GET %s: %w", endpoint, err)
	}

	return body, nil
}

// errorMessage extracts the server's error payload, which looks like
// {"errors":[{"msg":"..."}]}, falling back to the raw body.
func errorMessage(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}

	var payload struct {
		Errors []struct {
			Msg string `json:"msg"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Errors) > 0 {
		msgs := make([]string, 0, len(payload.Errors))
		for _, e := range payload.Errors {
			msgs = append(msgs, e.Msg)
		}
		return strings.Join(msgs, "; ")
	}

	return strings.TrimSpace(string(body))
}
