package plan

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityFromParamsPriority(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		params string
		want   string
	}{
		{"issue iid wins over title", `{"gitlab_issue_iid":7,"title":"Crash"}`, "7"},
		{"mr iid", `{"gitlab_mr_iid":12}`, "12"},
		{"tag name", `{"tag_name":"v1.0.0","name":"First"}`, "v1.0.0"},
		{"name", `{"name":"bug"}`, "bug"},
		{"title", `{"title":"Sprint 1"}`, "Sprint 1"},
		{"branch", `{"branch":"main"}`, "main"},
		{"fallback to action id", `{"url":"https://example.com"}`, "42"},
		{"empty string skipped", `{"name":"","branch":"main"}`, "main"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := entityFromParams(json.RawMessage(tc.params), 42)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCleanEntity(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "sprint-1", cleanEntity("Sprint 1"))
	assert.Equal(t, "v1.0.0", cleanEntity("v1.0.0"))
	assert.Equal(t, "feature-login-page", cleanEntity("feature/Login Page"))
	assert.Equal(t, "x", cleanEntity("???"))
	assert.Equal(t, "x", cleanEntity(""))
	assert.Len(t, cleanEntity(strings.Repeat("a", 60)), 40)
}

func TestIdempotencyKeyStable(t *testing.T) {
	t.Parallel()

	first := idempotencyKey(7, ActionIssueCreate, "7", "")
	second := idempotencyKey(7, ActionIssueCreate, "7", "")
	assert.Equal(t, first, second)

	otherProject := idempotencyKey(8, ActionIssueCreate, "7", "")
	assert.NotEqual(t, first, otherProject)

	otherExtra := idempotencyKey(7, ActionIssueCommentAdd, "7", "comment-1")
	another := idempotencyKey(7, ActionIssueCommentAdd, "7", "comment-2")
	assert.NotEqual(t, otherExtra, another)
}

func TestOrderActionsDetectsCycle(t *testing.T) {
	t.Parallel()

	actions := []Action{
		{ID: 1, Type: ActionRepoCreate, Dependencies: []int{2}},
		{ID: 2, Type: ActionRepoPush, Dependencies: []int{1}},
	}

	_, err := orderActions(actions)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
	assert.Contains(t, err.Error(), "1")
	assert.Contains(t, err.Error(), "2")
}

func TestOrderActionsRejectsUnknownDependency(t *testing.T) {
	t.Parallel()

	actions := []Action{
		{ID: 1, Type: ActionRepoCreate, Dependencies: []int{99}},
	}

	_, err := orderActions(actions)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown action 99")
}
