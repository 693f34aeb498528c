package plan

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// planSchema is the contract for plan.json. Downstream tools validate
// against the same document, so the required keys here are frozen per
// version.
const planSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "run_id", "gitlab_project", "github_target",
               "summary", "actions", "phases", "validation",
               "user_inputs_required"],
  "properties": {
    "version": {"const": "1.0"},
    "run_id": {"type": "string"},
    "gitlab_project": {"type": "string"},
    "github_target": {"type": "string"},
    "summary": {
      "type": "object",
      "required": ["total", "by_type", "est_minutes", "requires_user_input"],
      "properties": {
        "total": {"type": "integer", "minimum": 0},
        "by_type": {"type": "object"},
        "est_minutes": {"type": "integer", "minimum": 0},
        "requires_user_input": {"type": "integer", "minimum": 0}
      }
    },
    "actions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "type", "component", "phase", "description",
                     "parameters", "dependencies", "idempotency_key",
                     "dry_run_safe", "reversible",
                     "estimated_duration_seconds"],
        "properties": {
          "id": {"type": "integer", "minimum": 1},
          "type": {"type": "string", "minLength": 1},
          "phase": {"type": "string", "minLength": 1},
          "parameters": {"type": "object"},
          "dependencies": {"type": "array", "items": {"type": "integer"}},
          "idempotency_key": {"type": "string", "pattern": "^[a-z_]+-[a-z0-9._-]+-[0-9a-f]{8}$"}
        }
      }
    },
    "phases": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "description", "actions", "order"],
        "properties": {
          "order": {"type": "integer", "minimum": 1},
          "actions": {"type": "array", "items": {"type": "integer"}}
        }
      }
    },
    "validation": {
      "type": "object",
      "required": ["all_deps_resolvable", "no_cycles", "required_inputs_identified"]
    },
    "user_inputs_required": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["type", "key", "scope", "reason", "required"]
      }
    }
  }
}`

// validateSchema checks the plan against the embedded schema before it
// touches disk.
func validateSchema(p Plan) error {
	document, marshalErr := json.Marshal(p)
	if marshalErr != nil {
		return fmt.Errorf("marshal plan: %w", marshalErr)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(planSchema),
		gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("validate plan schema: %w", err)
	}

	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, issue := range result.Errors() {
		details = append(details, issue.String())
	}

	return fmt.Errorf("plan violates schema: %s", strings.Join(details, "; "))
}
