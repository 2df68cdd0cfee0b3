package rbac

import (
	"sort"
	"time"
)

// GroupSet is a set of directory group identifiers
type GroupSet map[string]struct{}

// Has reports whether id is in the set. A nil set contains nothing.
func (s GroupSet) Has(id string) bool {
	if s == nil || id == "" {
		return false
	}
	_, ok := s[id]
	return ok
}

// Sorted returns the members in ascending order
func (s GroupSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s GroupSet) add(id string) {
	s[id] = struct{}{}
}

// Config holds the lookup structures derived from the active group roles.
// It is built once per cache window and must be treated as read-only.
type Config struct {
	AllowedGroupIDs    GroupSet                      `json:"allowed_group_ids"`
	GroupDepartment    map[string]string             `json:"group_department"`
	GroupSubtype       map[string]SubtypeRestriction `json:"group_subtype"`
	ElevatedGroupIDs   GroupSet                      `json:"elevated_group_ids"`
	AdminGroupIDs      GroupSet                      `json:"admin_group_ids"`
	DepartmentGroupIDs GroupSet                      `json:"department_group_ids"`
	PurchaserGroupIDs  GroupSet                      `json:"purchaser_group_ids"`
	InventoryGroupIDs  GroupSet                      `json:"inventory_group_ids"`
	VisibilityGroupIDs GroupSet                      `json:"visibility_group_ids"`

	Source   ConfigSource `json:"source"`
	LoadedAt time.Time    `json:"loaded_at"`
}

// NewConfig derives a Config from group roles. Inactive entries are dropped
// before anything else so they never reach AllowedGroupIDs.
func NewConfig(roles []GroupRole, source ConfigSource, loadedAt time.Time) *Config {
	cfg := &Config{
		AllowedGroupIDs:    GroupSet{},
		GroupDepartment:    map[string]string{},
		GroupSubtype:       map[string]SubtypeRestriction{},
		ElevatedGroupIDs:   GroupSet{},
		AdminGroupIDs:      GroupSet{},
		DepartmentGroupIDs: GroupSet{},
		PurchaserGroupIDs:  GroupSet{},
		InventoryGroupIDs:  GroupSet{},
		VisibilityGroupIDs: GroupSet{},
		Source:             source,
		LoadedAt:           loadedAt,
	}

	for _, role := range roles {
		if !role.IsActive || role.GroupID == "" {
			continue
		}

		id := role.GroupID
		cfg.AllowedGroupIDs.add(id)
		if role.Kind.Elevated() {
			cfg.ElevatedGroupIDs.add(id)
		}

		switch role.Kind {
		case KindAdmin:
			cfg.AdminGroupIDs.add(id)
		case KindDepartment:
			cfg.DepartmentGroupIDs.add(id)
			if role.Department != nil {
				cfg.GroupDepartment[id] = *role.Department
			}
		case KindSubtype:
			cfg.DepartmentGroupIDs.add(id)
			if role.Department != nil {
				cfg.GroupDepartment[id] = *role.Department
				if role.Subtype != nil {
					cfg.GroupSubtype[id] = SubtypeRestriction{
						Department: *role.Department,
						Subtype:    *role.Subtype,
					}
				}
			}
		case KindPurchaser:
			cfg.PurchaserGroupIDs.add(id)
		case KindInventory:
			cfg.InventoryGroupIDs.add(id)
		case KindVisibility:
			cfg.VisibilityGroupIDs.add(id)
		}
	}

	return cfg
}

// IsElevatedGroup reports whether a group grants anything beyond peer visibility
func (c *Config) IsElevatedGroup(id string) bool {
	if c == nil {
		return false
	}
	return c.ElevatedGroupIDs.Has(id)
}

// ConfigSummary is the operator view of a Config
type ConfigSummary struct {
	Source           ConfigSource `json:"source"`
	LoadedAt         time.Time    `json:"loaded_at"`
	AllowedGroups    int          `json:"allowed_groups"`
	AdminGroups      int          `json:"admin_groups"`
	DepartmentGroups int          `json:"department_groups"`
	VisibilityGroups int          `json:"visibility_groups"`
	Departments      []string     `json:"departments"`
}

// Summary counts the configured groups per kind
func (c *Config) Summary() ConfigSummary {
	departments := map[string]struct{}{}
	for _, dept := range c.GroupDepartment {
		departments[dept] = struct{}{}
	}
	names := make([]string, 0, len(departments))
	for dept := range departments {
		names = append(names, dept)
	}
	sort.Strings(names)

	return ConfigSummary{
		Source:           c.Source,
		LoadedAt:         c.LoadedAt,
		AllowedGroups:    len(c.AllowedGroupIDs),
		AdminGroups:      len(c.AdminGroupIDs),
		DepartmentGroups: len(c.DepartmentGroupIDs),
		VisibilityGroups: len(c.VisibilityGroupIDs),
		Departments:      names,
	}
}
