package discovery

import "fmt"

// Complexity thresholds on combined issue + merge request volume.
const (
	mediumItemThreshold = 100
	highItemThreshold   = 500
)

// assess derives the readiness assessment from an inventory component
// map. Blockers name conditions that need a decision before apply;
// notes flag conditions worth reviewing.
func assess(components map[string]Component) Readiness {
	readiness := Readiness{
		Complexity: ComplexityLow,
		Blockers:   []string{},
		Notes:      []string{},
	}

	items := components[ComponentIssues].Counts["issues"] +
		components[ComponentMergeRequests].Counts["merge_requests"]

	switch {
	case items > highItemThreshold:
		readiness.Complexity = ComplexityHigh
	case items > mediumItemThreshold:
		readiness.Complexity = ComplexityMedium
	}

	if masked := components[ComponentVariables].Counts["masked"]; masked > 0 {
		readiness.Blockers = append(readiness.Blockers,
			fmt.Sprintf("%d masked CI variables need values supplied before apply", masked))
	}

	if components[ComponentLFS].HasData {
		readiness.Notes = append(readiness.Notes,
			"repository uses LFS; objects must be fetched and pushed separately")

		if readiness.Complexity == ComplexityLow {
			readiness.Complexity = ComplexityMedium
		}
	}

	if components[ComponentPackages].HasData {
		readiness.Notes = append(readiness.Notes,
			"package registry contents are migrated as metadata plus a transfer script only")
	}

	if components[ComponentDeployKeys].HasData {
		readiness.Notes = append(readiness.Notes,
			"deploy keys carry public halves only; private keys must be re-provisioned")
	}

	for _, key := range ComponentKeys {
		if components[key].Error != "" {
			readiness.Notes = append(readiness.Notes,
				fmt.Sprintf("component %s could not be fully inventoried: %s", key, components[key].Error))
		}
	}

	readiness.Recommendation = recommend(readiness)

	return readiness
}

func recommend(readiness Readiness) string {
	if len(readiness.Blockers) > 0 {
		return "resolve blockers, then run a dry run before apply"
	}

	if readiness.Complexity == ComplexityHigh {
		return "run export and a dry run first; expect a long apply window"
	}

	return "ready to migrate; a dry run is still recommended"
}
