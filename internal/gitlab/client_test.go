package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gitport/internal/forge"
	"github.com/Sumatoshi-tech/gitport/internal/ratelimit"
)

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	limiter := ratelimit.NewLimiter("gitlab-test",
		ratelimit.WithClock(time.Now, noSleep),
		ratelimit.WithMinInterval(0),
	)

	retry := ratelimit.Policy{MaxRetries: 2, BaseDelay: time.Millisecond}.WithSleeper(noSleep)

	return NewClient(Options{
		BaseURL: server.URL,
		Token:   "glpat-secret",
		Limiter: limiter,
		Retry:   &retry,
	})
}

func TestPaginationFollowsNextPageHeader(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "glpat-secret", r.Header.Get("PRIVATE-TOKEN"))

		page := r.URL.Query().Get("page")

		switch page {
		case "1":
			w.Header().Set("X-Next-Page", "2")
			fmt.Fprint(w, `[{"name":"a"},{"name":"b"}]`)
		case "2":
			fmt.Fprint(w, `[{"name":"c"}]`)
		default:
			t.Errorf("unexpected page %q", page)
		}
	})

	client := newTestClient(t, handler)

	branches, err := client.Branches(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, branches, 3)
	assert.Equal(t, "c", branches[2].Name)
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"401 Unauthorized"}`, http.StatusUnauthorized)
	})

	client := newTestClient(t, handler)

	_, err := client.Labels(context.Background(), 1)
	require.Error(t, err)

	fe := forge.AsError("GitLab", err)
	assert.Equal(t, forge.CategoryAuth, fe.Category)
	assert.Contains(t, fe.Suggestion, "'api' scope")
}

func TestRetryOn500ThenSuccess(t *testing.T) {
	t.Parallel()

	attempts := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "oops", http.StatusInternalServerError)

			return
		}

		fmt.Fprint(w, `[]`)
	})

	client := newTestClient(t, handler)

	_, err := client.Labels(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestMaskedVariablesHaveNoValue(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[
			{"key":"DATABASE_URL","value":null,"masked":true,"environment_scope":"production"},
			{"key":"LOG_LEVEL","value":"debug","masked":false,"environment_scope":"*"}
		]`)
	})

	client := newTestClient(t, handler)

	variables, err := client.Variables(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, variables, 2)

	assert.Empty(t, variables[0].Value)
	assert.True(t, variables[0].Masked)
	assert.Equal(t, "debug", variables[1].Value)
}

func TestEachIssueSkipsUpToCursor(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[{"iid":1,"title":"one"},{"iid":2,"title":"two"},{"iid":3,"title":"three"}]`)
	})

	client := newTestClient(t, handler)

	var seen []int64

	err := client.EachIssue(context.Background(), 1, 2, func(issue Issue) error {
		seen = append(seen, issue.IID)

		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, seen)
}

func TestCountReadsTotalHeader(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("per_page"))
		w.Header().Set("X-Total", "137")
		fmt.Fprint(w, `[{}]`)
	})

	client := newTestClient(t, handler)

	total, err := client.IssueCount(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 137, total)
}

func TestFileContentDecodesBase64(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "main", r.URL.Query().Get("ref"))
		json.NewEncoder(w).Encode(map[string]string{
			"content":  "c3RhZ2VzOgogIC0gYnVpbGQK",
			"encoding": "base64",
		})
	})

	client := newTestClient(t, handler)

	content, err := client.FileContent(context.Background(), 1, ".gitlab-ci.yml", "main")
	require.NoError(t, err)
	assert.Contains(t, string(content), "stages:")
}

func TestDownloadRejectsOversize(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(make([]byte, 2048))
	})

	client := newTestClient(t, handler)
	dest := filepath.Join(t.TempDir(), "file.bin")

	_, err := client.DownloadURL(context.Background(), client.BaseURL()+"/f", dest,
		DownloadOptions{MaxBytes: 1024})
	assert.ErrorIs(t, err, ErrDownloadTooLarge)
	assert.NoFileExists(t, dest)
}

func TestDownloadWritesFile(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "payload")
	})

	client := newTestClient(t, handler)
	dest := filepath.Join(t.TempDir(), "nested", "file.bin")

	n, err := client.DownloadURL(context.Background(), client.BaseURL()+"/f", dest, DownloadOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)

	data, readErr := os.ReadFile(dest)
	require.NoError(t, readErr)
	assert.Equal(t, "payload", string(data))
}

func TestSafeUploadPath(t *testing.T) {
	t.Parallel()

	assert.True(t, SafeUploadPath("/uploads/abc123/file.png"))
	assert.False(t, SafeUploadPath("/uploads/../etc/passwd"))
	assert.False(t, SafeUploadPath("/etc/passwd"))
	assert.False(t, SafeUploadPath("uploads/abc/file.png"))
}

func TestWikiRepoURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://gl.example.com/g/p.wiki.git",
		wikiRepoURL("https://gl.example.com/g/p.git"))
}

func TestGitRunnerScrubsTokenFromErrors(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.NotFoundHandler())
	runner := NewGitRunner(client)

	runner.run = func(_ context.Context, _ string, args ...string) (string, error) {
		return "", fmt.Errorf("git %s: fatal: repository 'https://oauth2:***@gl/x.git' not found", args[0])
	}

	err := runner.CloneMirror(context.Background(), "https://gl/x.git", t.TempDir())
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "glpat-secret")
}

func TestGitRunnerWikiSentinels(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.NotFoundHandler())

	t.Run("missing", func(t *testing.T) {
		t.Parallel()

		runner := NewGitRunner(client)
		runner.run = func(_ context.Context, _ string, _ ...string) (string, error) {
			return "fatal: repository not found", fmt.Errorf("exit status 128")
		}

		err := runner.CloneWiki(context.Background(), "https://gl/x.git", t.TempDir())
		assert.ErrorIs(t, err, ErrWikiMissing)
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()

		runner := NewGitRunner(client)
		calls := 0
		runner.run = func(_ context.Context, _ string, args ...string) (string, error) {
			calls++
			if args[0] == "rev-list" {
				return "0\n", nil
			}

			return "", nil
		}

		err := runner.CloneWiki(context.Background(), "https://gl/x.git", t.TempDir())
		assert.ErrorIs(t, err, ErrWikiEmpty)
		assert.Equal(t, 2, calls)
	})
}

func TestRateLimit429SetsRetryAfterState(t *testing.T) {
	t.Parallel()

	attempts := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "2")
			http.Error(w, "slow down", http.StatusTooManyRequests)

			return
		}

		fmt.Fprint(w, `[]`)
	})

	client := newTestClient(t, handler)

	_, err := client.Labels(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestPipelinesHonorsLimit(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		var records []map[string]any
		for i := range 10 {
			records = append(records, map[string]any{"id": i, "status": "success"})
		}

		json.NewEncoder(w).Encode(records)
	})

	client := newTestClient(t, handler)

	pipelines, err := client.Pipelines(context.Background(), 1, 3)
	require.NoError(t, err)
	assert.Len(t, pipelines, 3)
}

func TestProjectByPathEscapes(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v4/projects/group%2Fproject", r.URL.EscapedPath())
		json.NewEncoder(w).Encode(Project{ID: 7, PathWithNamespace: "group/project"})
	})

	client := newTestClient(t, handler)

	project, err := client.ProjectByPath(context.Background(), "group/project")
	require.NoError(t, err)
	assert.EqualValues(t, 7, project.ID)
}

func TestGroupProjectsStreams(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/groups/acme/projects")

		var projects []Project
		for i := 1; i <= 3; i++ {
			projects = append(projects, Project{ID: int64(i), Path: "p" + strconv.Itoa(i)})
		}

		json.NewEncoder(w).Encode(projects)
	})

	client := newTestClient(t, handler)

	var ids []int64

	err := client.GroupProjects(context.Background(), "acme", func(p Project) error {
		ids = append(ids, p.ID)

		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)
}
