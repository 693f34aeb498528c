package transform

import (
	"strings"

	"github.com/Sumatoshi-tech/gitport/internal/gitlab"
)

// Webhook is a destination-ready webhook definition.
type Webhook struct {
	URL string `json:"url"`
	// Events holds the translated destination event names.
	Events []string `json:"events"`
	// SecretRequired marks hooks whose source token was masked; the
	// value must be supplied before apply.
	SecretRequired bool `json:"secret_required"`
	// UnmappedEvents lists source events with no destination equivalent.
	UnmappedEvents []string `json:"unmapped_events,omitempty"`
	SSLVerify      bool     `json:"ssl_verify"`
}

// webhookEventTable maps each source event flag to its destination
// events. Table-driven so new events are one line.
var webhookEventTable = []struct {
	source  string
	enabled func(gitlab.Webhook) bool
	dest    []string
}{
	{"push_events", func(h gitlab.Webhook) bool { return h.PushEvents }, []string{"push"}},
	{"tag_push_events", func(h gitlab.Webhook) bool { return h.TagPushEvents }, []string{"create"}},
	{"issues_events", func(h gitlab.Webhook) bool { return h.IssuesEvents }, []string{"issues"}},
	{"merge_requests_events", func(h gitlab.Webhook) bool { return h.MergeRequestsEvents }, []string{"pull_request"}},
	{"note_events", func(h gitlab.Webhook) bool { return h.NoteEvents }, []string{"issue_comment", "pull_request_review_comment"}},
	{"pipeline_events", func(h gitlab.Webhook) bool { return h.PipelineEvents }, []string{"workflow_run", "check_suite"}},
	{"wiki_page_events", func(h gitlab.Webhook) bool { return h.WikiPageEvents }, []string{"gollum"}},
	{"releases_events", func(h gitlab.Webhook) bool { return h.ReleasesEvents }, []string{"release"}},
	// Source-only events with no destination equivalent; a nil dest
	// routes the flag into UnmappedEvents.
	{"job_events", func(h gitlab.Webhook) bool { return h.JobEvents }, nil},
	{"deployment_events", func(h gitlab.Webhook) bool { return h.DeploymentEvents }, nil},
	{"confidential_issues_events", func(h gitlab.Webhook) bool { return h.ConfidentialIssuesEvents }, nil},
	{"confidential_note_events", func(h gitlab.Webhook) bool { return h.ConfidentialNoteEvents }, nil},
}

// convertWebhooks translates source hooks through the event table.
// Hooks with no translatable event default to push with a warning gap.
func convertWebhooks(hooks []gitlab.Webhook, gaps *GapSet) []Webhook {
	converted := make([]Webhook, 0, len(hooks))

	for _, hook := range hooks {
		webhook := Webhook{
			URL:            hook.URL,
			SecretRequired: hook.Token != "",
			SSLVerify:      hook.EnableSSLVerification,
		}

		seen := map[string]bool{}

		for _, row := range webhookEventTable {
			if !row.enabled(hook) {
				continue
			}

			if len(row.dest) == 0 {
				webhook.UnmappedEvents = append(webhook.UnmappedEvents, row.source)

				continue
			}

			for _, event := range row.dest {
				if !seen[event] {
					seen[event] = true

					webhook.Events = append(webhook.Events, event)
				}
			}
		}

		if len(webhook.Events) == 0 {
			webhook.Events = []string{"push"}

			gaps.Addf("webhooks", "event_selection", SeverityWarning,
				"webhook %s has no translatable events enabled; defaulting to [push]", hook.URL)
		}

		if len(webhook.UnmappedEvents) > 0 {
			gaps.Addf("webhooks", "unmapped_events", SeverityWarning,
				"webhook %s: source events with no destination equivalent: %s",
				hook.URL, strings.Join(webhook.UnmappedEvents, ", "))
		}

		converted = append(converted, webhook)
	}

	return converted
}
