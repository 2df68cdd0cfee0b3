package rbac

import (
	"fmt"
	"strings"
)

// GroupKind classifies a directory group for access decisions
type GroupKind string

const (
	KindAdmin      GroupKind = "admin"
	KindDepartment GroupKind = "department"
	KindSubtype    GroupKind = "subtype"
	KindVisibility GroupKind = "visibility"
	KindPurchaser  GroupKind = "purchaser"
	KindInventory  GroupKind = "inventory"
)

// ParseGroupKind maps a raw GroupType value to a GroupKind. A department row
// that names a problem subtype is a subtype group.
func ParseGroupKind(raw string, subtype string) (GroupKind, error) {
	switch GroupKind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindAdmin:
		return KindAdmin, nil
	case KindDepartment:
		if strings.TrimSpace(subtype) != "" {
			return KindSubtype, nil
		}
		return KindDepartment, nil
	case KindSubtype:
		return KindSubtype, nil
	case KindVisibility:
		return KindVisibility, nil
	case KindPurchaser:
		return KindPurchaser, nil
	case KindInventory:
		return KindInventory, nil
	default:
		return "", fmt.Errorf("unknown group type %q", raw)
	}
}

// Elevated reports whether membership in a group of this kind disqualifies
// a user's tickets from peer sharing
func (k GroupKind) Elevated() bool {
	switch k {
	case KindAdmin, KindDepartment, KindSubtype, KindPurchaser, KindInventory:
		return true
	case KindVisibility:
		return false
	default:
		return false
	}
}

// GroupRole is one configured mapping from a directory group to its meaning
type GroupRole struct {
	Title      string    `json:"title" yaml:"title"`
	GroupID    string    `json:"group_id" yaml:"group_id"`
	Kind       GroupKind `json:"kind" yaml:"kind"`
	Department *string   `json:"department,omitempty" yaml:"department,omitempty"`
	Subtype    *string   `json:"subtype,omitempty" yaml:"subtype,omitempty"`
	IsActive   bool      `json:"is_active" yaml:"is_active"`
}

// RawGroupRole is a configuration row as stored by the remote config list
type RawGroupRole struct {
	Title          string `json:"Title" yaml:"title"`
	GroupID        string `json:"GroupId" yaml:"group_id"`
	GroupType      string `json:"GroupType" yaml:"group_type"`
	Department     string `json:"Department,omitempty" yaml:"department,omitempty"`
	ProblemTypeSub string `json:"ProblemTypeSub,omitempty" yaml:"problem_type_sub,omitempty"`
	IsActive       bool   `json:"IsActive" yaml:"is_active"`
}

// ToGroupRole validates a raw row and converts it
func (r RawGroupRole) ToGroupRole() (GroupRole, error) {
	groupID := strings.TrimSpace(r.GroupID)
	if groupID == "" {
		return GroupRole{}, fmt.Errorf("row %q has no group id", r.Title)
	}

	kind, err := ParseGroupKind(r.GroupType, r.ProblemTypeSub)
	if err != nil {
		return GroupRole{}, fmt.Errorf("row %q: %w", r.Title, err)
	}

	return GroupRole{
		Title:      r.Title,
		GroupID:    groupID,
		Kind:       kind,
		Department: optionalString(r.Department),
		Subtype:    optionalString(r.ProblemTypeSub),
		IsActive:   r.IsActive,
	}, nil
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Role is the coarse role derived for a session
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleSupport Role = "support"
	RoleUser    Role = "user"
)

// SubtypeRestriction narrows a support grant to one problem subtype of a department
type SubtypeRestriction struct {
	Department string `json:"department"`
	Subtype    string `json:"subtype"`
}

func (s SubtypeRestriction) String() string {
	return s.Department + "/" + s.Subtype
}

// UserPermissions is the immutable permission snapshot for one signed-in user.
// A membership change requires building a new value.
type UserPermissions struct {
	Email                  string               `json:"email"`
	DisplayName            string               `json:"display_name"`
	Role                   Role                 `json:"role"`
	GroupIDs               []string             `json:"group_ids"`
	VisibilityGroupIDs     []string             `json:"visibility_group_ids"`
	EditableDepartments    []string             `json:"editable_departments"`
	SubtypeRestrictions    []SubtypeRestriction `json:"subtype_restrictions"`
	CanSeeAllTickets       bool                 `json:"can_see_all_tickets"`
	CanDelete              bool                 `json:"can_delete"`
	CanEditOtherDepartment bool                 `json:"can_edit_other_department"`
	IsPurchaser            bool                 `json:"is_purchaser"`
	IsInventory            bool                 `json:"is_inventory"`
}

// ApprovalStatus is the General Manager approval state of a ticket
type ApprovalStatus string

const (
	ApprovalNone             ApprovalStatus = ""
	ApprovalPending          ApprovalStatus = "Pending"
	ApprovalApproved         ApprovalStatus = "Approved"
	ApprovalDenied           ApprovalStatus = "Denied"
	ApprovalChangesRequested ApprovalStatus = "Changes Requested"
)

// Person is a structured account reference on a ticket
type Person struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

// Ticket is the subset of a help-desk ticket the access engine reads
type Ticket struct {
	ID                string         `json:"id,omitempty"`
	Title             string         `json:"title,omitempty"`
	Requester         *Person        `json:"requester,omitempty"`
	CreatedBy         *Person        `json:"created_by,omitempty"`
	OriginalRequester string         `json:"original_requester,omitempty"` // free-text author of migrated tickets
	ProblemType       string         `json:"problem_type,omitempty"`
	ProblemTypeSub    string         `json:"problem_type_sub,omitempty"`
	ApprovalStatus    ApprovalStatus `json:"approval_status,omitempty"`
}

// ConfigSource tells where a Config came from
type ConfigSource string

const (
	SourceRemote   ConfigSource = "remote"
	SourceFallback ConfigSource = "fallback"
)

// Decision carries every predicate answer for one ticket
type Decision struct {
	TicketID           string `json:"ticket_id,omitempty"`
	IsOwn              bool   `json:"is_own"`
	CanView            bool   `json:"can_view"`
	CanEdit            bool   `json:"can_edit"`
	CanComment         bool   `json:"can_comment"`
	CanDelete          bool   `json:"can_delete"`
	CanApprove         bool   `json:"can_approve"`
	CanRequestApproval bool   `json:"can_request_approval"`
}
