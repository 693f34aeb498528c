package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// entityKeys is the priority order for picking a stable entity
// identifier out of action parameters.
var entityKeys = []string{
	"gitlab_issue_iid",
	"gitlab_mr_iid",
	"tag_name",
	"name",
	"title",
	"branch",
}

// entityFromParams selects the first present identifier, falling back
// to the action id so every action always has an entity.
func entityFromParams(params json.RawMessage, actionID int) string {
	fields := map[string]any{}

	if len(params) > 0 {
		// Best effort: unparseable params fall through to the id.
		_ = json.Unmarshal(params, &fields)
	}

	for _, key := range entityKeys {
		value, ok := fields[key]
		if !ok {
			continue
		}

		switch v := value.(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			if v != 0 {
				return strconv.FormatInt(int64(v), 10)
			}
		}
	}

	return strconv.Itoa(actionID)
}

// dirtyEntityChars matches runs that must collapse in a cleaned entity.
var dirtyEntityChars = regexp.MustCompile(`[^a-z0-9._-]+`)

// cleanEntity normalizes an entity identifier for use inside a key:
// lowercase, unsafe runs collapsed to "-", trimmed to 40 characters.
func cleanEntity(entity string) string {
	cleaned := dirtyEntityChars.ReplaceAllString(strings.ToLower(entity), "-")
	cleaned = strings.Trim(cleaned, "-")

	if len(cleaned) > 40 {
		cleaned = cleaned[:40]
	}

	if cleaned == "" {
		cleaned = "x"
	}

	return cleaned
}

// idempotencyKey builds the deterministic action identity:
// <type>-<cleaned_entity>-<8hex>. Re-running plan over identical
// inputs yields identical keys; apply uses them to short-circuit
// duplicate writes.
func idempotencyKey(projectID int64, kind ActionType, entity, extra string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s:%s:%s", projectID, kind, entity, extra)))

	return fmt.Sprintf("%s-%s-%s", kind, cleanEntity(entity), hex.EncodeToString(sum[:4]))
}
