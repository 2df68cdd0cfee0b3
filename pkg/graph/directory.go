package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

type directoryObject struct {
	ID                string `json:"id"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// MemberGroupIDs returns the ids of every group the user belongs to,
// directly or through nesting
func (c *Client) MemberGroupIDs(ctx context.Context, email string) ([]string, error) {
	if strings.TrimSpace(email) == "" {
		return nil, fmt.Errorf("email is required")
	}

	path := "/users/" + url.PathEscape(email) + "/transitiveMemberOf/microsoft.graph.group?$select=id"

	var ids []string
	err := c.getAll(ctx, path, func(raw json.RawMessage) error {
		var obj directoryObject
		if err := json.Unmarshal(raw, &obj); err != nil {
			return fmt.Errorf("failed to decode group: %w", err)
		}
		if obj.ID != "" {
			ids = append(ids, obj.ID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list groups for %s: %w", email, err)
	}

	return ids, nil
}

// GroupMemberEmails returns the emails of every user in the group. Accounts
// without a mailbox are identified by their sign-in name.
func (c *Client) GroupMemberEmails(ctx context.Context, groupID string) ([]string, error) {
	if strings.TrimSpace(groupID) == "" {
		return nil, fmt.Errorf("group id is required")
	}

	path := "/groups/" + url.PathEscape(groupID) + "/transitiveMembers/microsoft.graph.user?$select=mail,userPrincipalName"

	var emails []string
	err := c.getAll(ctx, path, func(raw json.RawMessage) error {
		var obj directoryObject
		if err := json.Unmarshal(raw, &obj); err != nil {
			return fmt.Errorf("failed to decode member: %w", err)
		}

		email := obj.Mail
		if email == "" {
			email = obj.UserPrincipalName
		}
		if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
			emails = append(emails, email)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list members of group %s: %w", groupID, err)
	}

	return emails, nil
}
