package rbac

import (
	"sort"
	"strings"
	"time"
)

// OtherDepartment is the problem type every support agent may edit
const OtherDepartment = "Other"

// AdminList is the static allow-list of administrator emails. It grants
// admin rights without any directory or config round trip.
type AdminList map[string]struct{}

// ParseAdminList parses a comma-separated list of emails
func ParseAdminList(csv string) AdminList {
	admins := AdminList{}
	for _, item := range strings.Split(csv, ",") {
		if email := normalizeEmail(item); email != "" {
			admins[email] = struct{}{}
		}
	}
	return admins
}

// Contains reports whether email is an allow-listed administrator
func (a AdminList) Contains(email string) bool {
	email = normalizeEmail(email)
	if a == nil || email == "" {
		return false
	}
	_, ok := a[email]
	return ok
}

// Emails returns the allow-list in sorted order
func (a AdminList) Emails() []string {
	emails := make([]string, 0, len(a))
	for email := range a {
		emails = append(emails, email)
	}
	sort.Strings(emails)
	return emails
}

// BuildPermissions derives the permission snapshot for a user. The first
// matching rule wins: allow-listed admin, admin group, department group,
// then regular user. Purchaser and inventory flags are computed in every
// branch. Equal inputs always produce structurally equal results.
func BuildPermissions(email, displayName string, groupIDs []string, cfg *Config, admins AdminList) *UserPermissions {
	if cfg == nil {
		cfg = NewConfig(nil, SourceFallback, time.Time{})
	}

	groups := uniqueSorted(groupIDs)
	perms := &UserPermissions{
		Email:               normalizeEmail(email),
		DisplayName:         displayName,
		GroupIDs:            groups,
		VisibilityGroupIDs:  []string{},
		EditableDepartments: []string{},
		SubtypeRestrictions: []SubtypeRestriction{},
		IsPurchaser:         anyIn(groups, cfg.PurchaserGroupIDs),
		IsInventory:         anyIn(groups, cfg.InventoryGroupIDs),
	}

	switch {
	case admins.Contains(email):
		perms.GroupIDs = []string{}
		grantAdmin(perms)

	case anyIn(groups, cfg.AdminGroupIDs):
		grantAdmin(perms)

	case anyIn(groups, cfg.DepartmentGroupIDs):
		perms.Role = RoleSupport
		perms.CanSeeAllTickets = true
		perms.CanEditOtherDepartment = true

		departments := map[string]struct{}{}
		restrictions := map[SubtypeRestriction]struct{}{}
		for _, id := range groups {
			if !cfg.DepartmentGroupIDs.Has(id) {
				continue
			}
			if dept, ok := cfg.GroupDepartment[id]; ok {
				departments[dept] = struct{}{}
			}
			if sub, ok := cfg.GroupSubtype[id]; ok {
				restrictions[sub] = struct{}{}
			}
		}

		for dept := range departments {
			perms.EditableDepartments = append(perms.EditableDepartments, dept)
		}
		sort.Strings(perms.EditableDepartments)

		for sub := range restrictions {
			perms.SubtypeRestrictions = append(perms.SubtypeRestrictions, sub)
		}
		sort.Slice(perms.SubtypeRestrictions, func(i, j int) bool {
			return perms.SubtypeRestrictions[i].String() < perms.SubtypeRestrictions[j].String()
		})

	default:
		perms.Role = RoleUser
		// Only visibility groups share tickets; admin and department
		// groups must never expose their members' tickets to peers.
		for _, id := range groups {
			if cfg.VisibilityGroupIDs.Has(id) {
				perms.VisibilityGroupIDs = append(perms.VisibilityGroupIDs, id)
			}
		}
	}

	return perms
}

func grantAdmin(perms *UserPermissions) {
	perms.Role = RoleAdmin
	perms.CanSeeAllTickets = true
	perms.CanDelete = true
	perms.CanEditOtherDepartment = true
}

func anyIn(ids []string, set GroupSet) bool {
	for _, id := range ids {
		if set.Has(id) {
			return true
		}
	}
	return false
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
