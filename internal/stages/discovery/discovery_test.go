package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gitport/internal/artifacts"
	"github.com/Sumatoshi-tech/gitport/internal/gitlab"
	"github.com/Sumatoshi-tech/gitport/internal/ratelimit"
	"github.com/Sumatoshi-tech/gitport/pkg/persist"
)

func noSleep(_ context.Context, _ time.Duration) error { return nil }

// projectFixture answers the API surface inventory touches with a
// small healthy project.
func projectFixture(t *testing.T) http.Handler {
	t.Helper()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		switch {
		case strings.HasSuffix(path, "/projects/group%2Fproj"), strings.HasSuffix(path, "/projects/group/proj"):
			json.NewEncoder(w).Encode(gitlab.Project{
				ID:                7,
				PathWithNamespace: "group/proj",
				Name:              "proj",
				DefaultBranch:     "main",
				Visibility:        "private",
				IssuesEnabled:     true,
				JobsEnabled:       true,
				WikiEnabled:       true,
				LFSEnabled:        true,
			})
		case strings.Contains(path, "/repository/branches"):
			fmt.Fprint(w, `[{"name":"main","default":true}]`)
		case strings.Contains(path, "/repository/tags"):
			fmt.Fprint(w, `[]`)
		case strings.Contains(path, "/repository/commits"):
			w.Header().Set("X-Total", "12")
			fmt.Fprint(w, `[{}]`)
		case strings.Contains(path, "/repository/files/"):
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message":"404 Not Found"}`)
		case strings.Contains(path, "/issues"):
			w.Header().Set("X-Total", "3")
			fmt.Fprint(w, `[{}]`)
		case strings.Contains(path, "/variables"):
			fmt.Fprint(w, `[{"key":"TOKEN","masked":true},{"key":"ENV","value":"ci","masked":false}]`)
		case strings.Contains(path, "/wikis"):
			fmt.Fprint(w, `[{"slug":"home"}]`)
		default:
			fmt.Fprint(w, `[]`)
		}
	})
}

func newStage(t *testing.T, handler http.Handler) *Stage {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	limiter := ratelimit.NewLimiter("gitlab-test",
		ratelimit.WithClock(time.Now, noSleep),
		ratelimit.WithMinInterval(0),
	)

	retry := ratelimit.Policy{MaxRetries: 0, BaseDelay: time.Millisecond}.WithSleeper(noSleep)

	client := gitlab.NewClient(gitlab.Options{
		BaseURL: server.URL,
		Token:   "glpat-test",
		Limiter: limiter,
		Retry:   &retry,
	})

	return NewStage(client, nil)
}

func TestRunSingleProjectWritesInventory(t *testing.T) {
	t.Parallel()

	stage := newStage(t, projectFixture(t))
	tree := artifacts.Tree{Root: t.TempDir()}

	out, err := stage.Run(context.Background(), tree, "", "group/proj")
	require.NoError(t, err)
	require.Len(t, out.Inventories, 1)

	inventory := out.Inventories[0]
	assert.EqualValues(t, 7, inventory.ProjectID)

	// Every inventory carries the full component key set.
	for _, key := range ComponentKeys {
		_, present := inventory.Components[key]
		assert.True(t, present, "missing component %s", key)
	}

	var reread Output

	require.NoError(t, persist.ReadJSON(tree.InventoryPath(), &reread))
	assert.Equal(t, out.Inventories[0].ProjectPath, reread.Inventories[0].ProjectPath)
}

func TestMaskedVariablesBecomeBlocker(t *testing.T) {
	t.Parallel()

	stage := newStage(t, projectFixture(t))
	tree := artifacts.Tree{Root: t.TempDir()}

	out, err := stage.Run(context.Background(), tree, "", "group/proj")
	require.NoError(t, err)

	readiness := out.Inventories[0].Readiness
	require.Len(t, readiness.Blockers, 1)
	assert.Contains(t, readiness.Blockers[0], "masked CI variables")
	assert.Contains(t, readiness.Recommendation, "resolve blockers")
}

func TestAssessComplexityThresholds(t *testing.T) {
	t.Parallel()

	base := func() map[string]Component {
		components := make(map[string]Component, len(ComponentKeys))
		for _, key := range ComponentKeys {
			components[key] = Component{}
		}

		return components
	}

	tests := []struct {
		name   string
		issues int
		mrs    int
		want   string
	}{
		{name: "low", issues: 10, mrs: 5, want: ComplexityLow},
		{name: "medium", issues: 80, mrs: 40, want: ComplexityMedium},
		{name: "high", issues: 400, mrs: 200, want: ComplexityHigh},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			components := base()
			components[ComponentIssues] = Component{Counts: map[string]int{"issues": tc.issues}}
			components[ComponentMergeRequests] = Component{Counts: map[string]int{"merge_requests": tc.mrs}}

			assert.Equal(t, tc.want, assess(components).Complexity)
		})
	}
}

func TestLFSBumpsLowToMedium(t *testing.T) {
	t.Parallel()

	components := make(map[string]Component, len(ComponentKeys))
	for _, key := range ComponentKeys {
		components[key] = Component{}
	}

	components[ComponentLFS] = Component{Enabled: true, HasData: true}

	readiness := assess(components)
	assert.Equal(t, ComplexityMedium, readiness.Complexity)
	require.NotEmpty(t, readiness.Notes)
	assert.Contains(t, readiness.Notes[0], "LFS")
}

func TestComponentErrorsBecomeNotes(t *testing.T) {
	t.Parallel()

	components := make(map[string]Component, len(ComponentKeys))
	for _, key := range ComponentKeys {
		components[key] = Component{}
	}

	components[ComponentWebhooks] = Component{Enabled: true, Error: "GitLab API error"}

	readiness := assess(components)
	require.NotEmpty(t, readiness.Notes)
	assert.Contains(t, readiness.Notes[0], "webhooks")
}
