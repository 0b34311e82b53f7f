package sonar_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sonar-audit/model"
	"sonar-audit/sonar"
)

func TestListProjectsPagination(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/projects/search", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("ps"))

		switch r.URL.Query().Get("p") {
		case "1":
			fmt.Fprint(w, `{
				"paging": {"pageIndex": 1, "pageSize": 2, "total": 3},
				"components": [
					{"key": "app", "name": "Application"},
					{"key": "lib", "name": "Library"}
				]
			}`)
		case "2":
			fmt.Fprint(w, `{
				"paging": {"pageIndex": 2, "pageSize": 2, "total": 3},
				"components": [{"key": "tools", "name": "Tools"}]
			}`)
		default:
			http.Error(w, "no such page", http.StatusBadRequest)
		}
	}))
	defer server.Close()

	client := sonar.NewClient(server.URL, "token")
	client.PageSize = 2
	ctx := context.Background()

	projects, next, err := client.ListProjects(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, 2, next.Page)
	assert.Equal(t, []model.Project{
		{Key: "app", Name: "Application"},
		{Key: "lib", Name: "Library"},
	}, projects)

	projects, next, err = client.ListProjects(ctx, next)
	require.NoError(t, err)
	assert.Nil(t, next)
	assert.Equal(t, []model.Project{{Key: "tools", Name: "Tools"}}, projects)
}

func TestListProjectsSendsTokenAsBasicAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "squ_abc123", user)
		assert.Empty(t, pass)
		fmt.Fprint(w, `{"paging": {"pageIndex": 1, "pageSize": 100, "total": 0}, "components": []}`)
	}))
	defer server.Close()

	client := sonar.NewClient(server.URL, "squ_abc123")
	_, next, err := client.ListProjects(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestListProjectsAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"errors": [{"msg": "Insufficient privileges"}]}`)
	}))
	defer server.Close()

	client := sonar.NewClient(server.URL, "bad-token")
	_, _, err := client.ListProjects(context.Background(), nil)
	require.Error(t, err)

	var apiErr *sonar.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "Insufficient privileges")
}

func TestListBranches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/project_branches/list", r.URL.Path)
		assert.Equal(t, "app", r.URL.Query().Get("project"))
		fmt.Fprint(w, `{"branches": [
			{"name": "main", "isMain": true},
			{"name": "feature-x", "isMain": false}
		]}`)
	}))
	defer server.Close()

	client := sonar.NewClient(server.URL, "")
	branches, err := client.ListBranches(context.Background(), "app")
	require.NoError(t, err)
	assert.Equal(t, []model.Branch{
		{Name: "main", IsMain: true},
		{Name: "feature-x"},
	}, branches)
}

func TestBranchMeasure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/measures/component", r.URL.Path)
		assert.Equal(t, "ncloc", r.URL.Query().Get("metricKeys"))

		switch r.URL.Query().Get("branch") {
		case "main":
			fmt.Fprint(w, `{"component": {"key": "app", "measures": [{"metric": "ncloc", "value": "10000"}]}}`)
		case "empty":
			fmt.Fprint(w, `{"component": {"key": "app", "measures": []}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"errors": [{"msg": "Component not found"}]}`)
		}
	}))
	defer server.Close()

	client := sonar.NewClient(server.URL, "token")
	ctx := context.Background()

	lines, err := client.BranchMeasure(ctx, "app", "main")
	require.NoError(t, err)
	assert.Equal(t, 10000, lines)

	// A branch that was never analyzed has no ncloc measure.
	lines, err = client.BranchMeasure(ctx, "app", "empty")
	require.NoError(t, err)
	assert.Equal(t, 0, lines)

	_, err = client.BranchMeasure(ctx, "app", "deleted")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sonar.ErrNotFound))
}

func TestLargestFiles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/measures/component_tree", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "leaves", q.Get("strategy"))
		assert.Equal(t, "ncloc", q.Get("metricSort"))
		assert.Equal(t, "false", q.Get("asc"))
		assert.Equal(t, "metric", q.Get("s"))

		fmt.Fprint(w, `{
			"paging": {"pageIndex": 1, "pageSize": 3, "total": 3},
			"components": [
				{"path": "src/big.go", "measures": [{"metric": "ncloc", "value": "900"}]},
				{"path": "src/mid.go", "measures": [{"metric": "ncloc", "value": "300"}]},
				{"path": "src/empty.go", "measures": []}
			]
		}`)
	}))
	defer server.Close()

	client := sonar.NewClient(server.URL, "token")
	entries, err := client.LargestFiles(context.Background(), "app", "main", 3)
	require.NoError(t, err)
	assert.Equal(t, []model.FileSizeEntry{
		{Path: "src/big.go", Lines: 900},
		{Path: "src/mid.go", Lines: 300},
	}, entries)
}

func TestRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"branches": [{"name": "main", "isMain": true}]}`)
	}))
	defer server.Close()

	client := sonar.NewClient(server.URL, "token")
	branches, err := client.ListBranches(context.Background(), "app")
	require.NoError(t, err)
	require.Len(t, branches, 1)
	assert.Equal(t, int32(2), calls.Load())
}
