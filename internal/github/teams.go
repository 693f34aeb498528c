package github

import (
	"context"
	"net/http"
	"net/url"
)

// newTeam is the team creation payload. Privacy "closed" makes the
// team mentionable from CODEOWNERS.
type newTeam struct {
	Name    string `json:"name"`
	Privacy string `json:"privacy"`
}

// CreateTeam creates an organization team. Fails with a permission
// error when the owner is a user account rather than an org.
func (c *Client) CreateTeam(ctx context.Context, name string) (Team, error) {
	var team Team

	err := c.doJSON(ctx, http.MethodPost, "orgs/"+c.owner+"/teams",
		newTeam{Name: name, Privacy: "closed"}, &team)
	if err != nil {
		return Team{}, err
	}

	return team, nil
}

// DeleteTeam removes an organization team. Used only by rollback.
func (c *Client) DeleteTeam(ctx context.Context, slug string) error {
	return c.doJSON(ctx, http.MethodDelete,
		"orgs/"+c.owner+"/teams/"+url.PathEscape(slug), nil, nil)
}
