package transform

import (
	"strings"

	"github.com/Sumatoshi-tech/gitport/internal/gitlab"
)

// Label is a destination-ready label.
type Label struct {
	Name        string `json:"name"`
	Color       string `json:"color"`
	Description string `json:"description,omitempty"`
}

// Milestone is a destination-ready milestone.
type Milestone struct {
	Title       string `json:"title"`
	State       string `json:"state"`
	Description string `json:"description,omitempty"`
	DueOn       string `json:"due_on,omitempty"`
}

// defaultLabelColor stands in for labels exported without one.
const defaultLabelColor = "ededed"

// convertLabels sanitizes colors to the destination's bare-hex form.
func convertLabels(labels []gitlab.Label) []Label {
	converted := make([]Label, 0, len(labels))

	for _, label := range labels {
		color := strings.TrimPrefix(label.Color, "#")
		if color == "" {
			color = defaultLabelColor
		}

		converted = append(converted, Label{
			Name:        label.Name,
			Color:       color,
			Description: label.Description,
		})
	}

	return converted
}

// convertMilestones maps milestone state and passes titles and due
// dates through.
func convertMilestones(milestones []gitlab.Milestone) []Milestone {
	converted := make([]Milestone, 0, len(milestones))

	for _, milestone := range milestones {
		converted = append(converted, Milestone{
			Title:       milestone.Title,
			State:       mapState(milestone.State),
			Description: milestone.Description,
			DueOn:       milestone.DueDate,
		})
	}

	return converted
}
