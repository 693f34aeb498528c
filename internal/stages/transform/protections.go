package transform

import (
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/gitport/internal/gitlab"
)

// ReviewRequirement mirrors the destination's pull request review
// settings.
type ReviewRequirement struct {
	RequiredApprovingReviewCount int  `json:"required_approving_review_count"`
	RequireCodeOwnerReviews      bool `json:"require_code_owner_reviews"`
}

// StatusCheckRequirement pins the CI contexts that must pass.
type StatusCheckRequirement struct {
	Strict   bool     `json:"strict"`
	Contexts []string `json:"contexts"`
}

// BranchRule is one destination branch protection rule.
type BranchRule struct {
	Branch               string                 `json:"branch"`
	RequiredReviews      ReviewRequirement      `json:"required_pull_request_reviews"`
	RequiredStatusChecks StatusCheckRequirement `json:"required_status_checks"`
	AllowForcePushes     bool                   `json:"allow_force_pushes"`
	AllowDeletions       bool                   `json:"allow_deletions"`
	EnforceAdmins        bool                   `json:"enforce_admins"`
}

// TagRule is one destination tag protection pattern.
type TagRule struct {
	Pattern string `json:"pattern"`
}

// ProtectionRules is the full converted protection output.
type ProtectionRules struct {
	Branches []BranchRule `json:"branches"`
	Tags     []TagRule    `json:"tags"`
}

// convertProtections maps source protection rules onto the destination
// model. CI job names become required status check contexts.
func convertProtections(branches []gitlab.ProtectedBranch, tags []gitlab.ProtectedTag, rules []gitlab.ApprovalRule, jobNames []string, gaps *GapSet) ProtectionRules {
	out := ProtectionRules{}

	reviewCount := requiredApprovals(rules)

	for _, branch := range branches {
		rule := BranchRule{
			Branch: branch.Name,
			RequiredReviews: ReviewRequirement{
				RequiredApprovingReviewCount: reviewCount,
				RequireCodeOwnerReviews:      branch.CodeOwnerApprovalRequired,
			},
			RequiredStatusChecks: StatusCheckRequirement{
				Strict:   true,
				Contexts: jobNames,
			},
			AllowForcePushes: branch.AllowForcePush,
			AllowDeletions:   false,
			EnforceAdmins:    true,
		}

		if hasUserLevelGrants(branch.PushAccessLevels) || hasUserLevelGrants(branch.MergeAccessLevels) {
			gaps.Addf("protections", "per_user_push_restrictions", SeverityWarning,
				"branch %s restricts push/merge to specific users; the destination models this via teams only", branch.Name)
		}

		if len(branch.UnprotectAccessLevels) > 0 {
			gaps.Addf("protections", "unprotect_access_level", SeverityInfo,
				"branch %s carries an unprotect access level with no destination equivalent", branch.Name)
		}

		out.Branches = append(out.Branches, rule)
	}

	for _, tag := range tags {
		out.Tags = append(out.Tags, TagRule{Pattern: tag.Name})
	}

	if len(tags) > 0 {
		gaps.Addf("protections", "protected_tags", SeverityInfo,
			"%d protected tag pattern(s) exported; destination tag protection requires a plan that supports rulesets", len(tags))
	}

	return out
}

// requiredApprovals picks the strictest approval rule, defaulting to 1.
func requiredApprovals(rules []gitlab.ApprovalRule) int {
	count := 1

	for _, rule := range rules {
		if rule.ApprovalsRequired > count {
			count = rule.ApprovalsRequired
		}
	}

	return count
}

func hasUserLevelGrants(levels []gitlab.AccessLevel) bool {
	for _, level := range levels {
		if level.UserID != 0 || level.GroupID != 0 {
			return true
		}
	}

	return false
}

// buildCodeowners renders a CODEOWNERS file from approval rules that
// name specific users or groups. Returns empty when nothing maps.
func buildCodeowners(rules []gitlab.ApprovalRule, org string, users UserMapping, gaps *GapSet) string {
	var owners []string

	seen := map[string]bool{}

	for _, rule := range rules {
		for _, user := range rule.Users {
			login, ok := users.Login(user.Username)
			if !ok {
				gaps.Addf("protections", "codeowners_unmapped_user", SeverityWarning,
					"approval rule %q names %s, who has no destination mapping", rule.Name, user.Username)

				continue
			}

			owner := "@" + login
			if !seen[owner] {
				seen[owner] = true

				owners = append(owners, owner)
			}
		}

		for _, group := range rule.Groups {
			segments := strings.Split(group.FullPath, "/")
			team := segments[len(segments)-1]

			owner := "@" + org + "/" + team
			if !seen[owner] {
				seen[owner] = true

				owners = append(owners, owner)
			}
		}
	}

	if len(owners) == 0 {
		return ""
	}

	var b strings.Builder

	b.WriteString("# Generated from source approval rules.\n")
	fmt.Fprintf(&b, "* %s\n", strings.Join(owners, " "))

	return b.String()
}
