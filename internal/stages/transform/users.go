package transform

import (
	"regexp"
	"sort"
	"strings"

	"github.com/Sumatoshi-tech/gitport/internal/github"
	"github.com/Sumatoshi-tech/gitport/internal/gitlab"
	"github.com/Sumatoshi-tech/gitport/pkg/levenshtein"
)

// Mapping confidence levels.
const (
	ConfidenceHigh     = "high"
	ConfidenceMedium   = "medium"
	ConfidenceLow      = "low"
	ConfidenceUnmapped = "unmapped"
)

// fuzzyThreshold is the minimum similarity for a fuzzy username match.
const fuzzyThreshold = 0.8

// UserMatch maps one source user to a destination login.
type UserMatch struct {
	SourceUsername   string `json:"source_username"`
	SourceEmail      string `json:"source_email,omitempty"`
	SourceName       string `json:"source_name,omitempty"`
	DestinationLogin string `json:"destination_login,omitempty"`
	Confidence       string `json:"confidence"`
	Method           string `json:"method"`
	IsManual         bool   `json:"is_manual"`
}

// UserMappingStats summarizes mapping quality.
type UserMappingStats struct {
	Total    int            `json:"total"`
	Mapped   int            `json:"mapped"`
	ByMethod map[string]int `json:"by_method"`
}

// UserMapping is the full user translation table plus its stats.
type UserMapping struct {
	Mappings []UserMatch      `json:"mappings"`
	Stats    UserMappingStats `json:"stats"`
	Unmapped []string         `json:"unmapped_users"`
}

// Login resolves a source username to a destination login.
func (m UserMapping) Login(sourceUsername string) (string, bool) {
	for _, match := range m.Mappings {
		if match.SourceUsername == sourceUsername && match.DestinationLogin != "" {
			return match.DestinationLogin, true
		}
	}

	return "", false
}

// nonAlnum strips everything but letters and digits for name matching.
var nonAlnum = regexp.MustCompile(`[^a-z0-9]`)

func normalizeName(name string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(name), "")
}

// MapUsers matches source users against destination org members in
// priority order: email, username, normalized name, then fuzzy
// similarity. Manual overrides win over everything.
func MapUsers(source []gitlab.User, members []github.OrgMember, manual map[string]string) UserMapping {
	byEmail := make(map[string]string, len(members))
	byLogin := make(map[string]string, len(members))
	byName := make(map[string]string, len(members))

	for _, member := range members {
		if member.Email != "" {
			byEmail[strings.ToLower(member.Email)] = member.Login
		}

		byLogin[strings.ToLower(member.Login)] = member.Login

		if member.Name != "" {
			byName[normalizeName(member.Name)] = member.Login
		}
	}

	mapping := UserMapping{
		Stats: UserMappingStats{ByMethod: map[string]int{}},
	}

	lev := &levenshtein.Context{}
	seen := map[string]bool{}

	for _, user := range source {
		if user.Username == "" || seen[user.Username] {
			continue
		}

		seen[user.Username] = true

		match := matchUser(user, byEmail, byLogin, byName, members, manual, lev)
		mapping.Mappings = append(mapping.Mappings, match)
		mapping.Stats.Total++
		mapping.Stats.ByMethod[match.Method]++

		if match.DestinationLogin != "" {
			mapping.Stats.Mapped++
		} else {
			mapping.Unmapped = append(mapping.Unmapped, user.Username)
		}
	}

	sort.Slice(mapping.Mappings, func(i, j int) bool {
		return mapping.Mappings[i].SourceUsername < mapping.Mappings[j].SourceUsername
	})
	sort.Strings(mapping.Unmapped)

	return mapping
}

func matchUser(user gitlab.User, byEmail, byLogin, byName map[string]string, members []github.OrgMember, manual map[string]string, lev *levenshtein.Context) UserMatch {
	match := UserMatch{
		SourceUsername: user.Username,
		SourceEmail:    user.Email,
		SourceName:     user.Name,
	}

	if login, ok := manual[user.Username]; ok {
		match.DestinationLogin = login
		match.Confidence = ConfidenceHigh
		match.Method = "manual"
		match.IsManual = true

		return match
	}

	if user.Email != "" {
		if login, ok := byEmail[strings.ToLower(user.Email)]; ok {
			match.DestinationLogin = login
			match.Confidence = ConfidenceHigh
			match.Method = "email"

			return match
		}
	}

	if login, ok := byLogin[strings.ToLower(user.Username)]; ok {
		match.DestinationLogin = login
		match.Confidence = ConfidenceMedium
		match.Method = "username"

		return match
	}

	if user.Name != "" {
		if login, ok := byName[normalizeName(user.Name)]; ok {
			match.DestinationLogin = login
			match.Confidence = ConfidenceLow
			match.Method = "name"

			return match
		}
	}

	if login, score := closestMember(user, members, lev); score >= fuzzyThreshold {
		match.DestinationLogin = login
		match.Confidence = ConfidenceLow
		match.Method = "fuzzy"

		return match
	}

	match.Confidence = ConfidenceUnmapped
	match.Method = "none"

	return match
}

// closestMember finds the member whose login or name is most similar to
// the source username or name.
func closestMember(user gitlab.User, members []github.OrgMember, lev *levenshtein.Context) (string, float64) {
	best := ""
	bestScore := 0.0

	for _, member := range members {
		score := similarity(lev, strings.ToLower(user.Username), strings.ToLower(member.Login))

		if user.Name != "" && member.Name != "" {
			nameScore := similarity(lev, normalizeName(user.Name), normalizeName(member.Name))
			if nameScore > score {
				score = nameScore
			}
		}

		if score > bestScore {
			bestScore = score
			best = member.Login
		}
	}

	return best, bestScore
}

// similarity converts edit distance into a 0..1 score.
func similarity(lev *levenshtein.Context, a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}

	longest := max(len([]rune(a)), len([]rune(b)))

	return 1 - float64(lev.Distance(a, b))/float64(longest)
}
