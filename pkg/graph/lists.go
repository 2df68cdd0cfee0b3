package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/platinummonkey/helpdesk-rbac/pkg/rbac"
)

const groupRoleFields = "Title,GroupId,GroupType,Department,ProblemTypeSub,IsActive"

// ListSource reads group-role rows from a SharePoint list
type ListSource struct {
	client *Client
	siteID string
	listID string
}

// NewListSource binds a client to one list
func NewListSource(client *Client, siteID, listID string) (*ListSource, error) {
	if client == nil || siteID == "" || listID == "" {
		return nil, ErrNotConfigured
	}
	return &ListSource{client: client, siteID: siteID, listID: listID}, nil
}

type listItem struct {
	Fields rbac.RawGroupRole `json:"fields"`
}

// FetchGroupRoles returns every list row, active or not
func (s *ListSource) FetchGroupRoles(ctx context.Context) ([]rbac.RawGroupRole, error) {
	path := fmt.Sprintf("/sites/%s/lists/%s/items?$expand=fields($select=%s)",
		url.PathEscape(s.siteID), url.PathEscape(s.listID), groupRoleFields)

	var rows []rbac.RawGroupRole
	err := s.client.getAll(ctx, path, func(raw json.RawMessage) error {
		var item listItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return fmt.Errorf("failed to decode list item: %w", err)
		}
		rows = append(rows, item.Fields)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read group roles list: %w", err)
	}

	return rows, nil
}
