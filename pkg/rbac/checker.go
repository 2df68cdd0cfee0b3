package rbac

import "strings"

// DefaultApprovalCategories are the problem types that need General Manager approval
var DefaultApprovalCategories = []string{"Purchase Request", "Purchasing"}

// Every predicate below is pure and fails closed: a nil snapshot, a nil
// ticket or a missing field never grants access.

// Policy carries the static inputs some predicates need beyond the
// permission snapshot and the ticket
type Policy struct {
	Admins             AdminList
	ApprovalCategories []string
}

// NewPolicy creates a policy with the default approval categories
func NewPolicy(admins AdminList) Policy {
	categories := make([]string, len(DefaultApprovalCategories))
	copy(categories, DefaultApprovalCategories)
	return Policy{
		Admins:             admins,
		ApprovalCategories: categories,
	}
}

// IsOwn reports whether the user authored the ticket. Migrated tickets carry
// the original author only as free text, so that field is checked first and
// the structured requester is the fallback; the creator is checked as well.
func IsOwn(p *UserPermissions, t *Ticket) bool {
	if p == nil || t == nil {
		return false
	}

	email := normalizeEmail(p.Email)
	if email == "" {
		return false
	}

	if emailEquals(requesterEmail(t), email) {
		return true
	}
	if t.CreatedBy != nil && emailEquals(t.CreatedBy.Email, email) {
		return true
	}
	return false
}

// IsCreatorElevated reports whether either requester field names an
// allow-listed administrator. Live group membership is not consulted.
func (pol Policy) IsCreatorElevated(t *Ticket) bool {
	if t == nil {
		return false
	}
	if pol.Admins.Contains(strings.TrimSpace(t.OriginalRequester)) {
		return true
	}
	return t.Requester != nil && pol.Admins.Contains(t.Requester.Email)
}

// CanView decides visibility. groupMemberEmails is the roster of the user's
// visibility groups; nil means no team-sharing check is made.
func (pol Policy) CanView(p *UserPermissions, t *Ticket, groupMemberEmails []string) bool {
	if p == nil || t == nil {
		return false
	}
	if p.CanSeeAllTickets {
		return true
	}
	if IsOwn(p, t) {
		return true
	}
	if groupMemberEmails == nil {
		return false
	}

	// An administrator's ticket is never exposed through team sharing
	if pol.IsCreatorElevated(t) {
		return false
	}

	requester := requesterEmail(t)
	if requester == "" {
		return false
	}
	for _, member := range groupMemberEmails {
		if emailEquals(member, requester) {
			return true
		}
	}
	return false
}

// CanEdit decides edit rights. For support staff an exact subtype grant is
// checked first; a department grant is then narrowed by any subtype
// restriction the user holds in that same department.
func CanEdit(p *UserPermissions, t *Ticket) bool {
	if p == nil || t == nil {
		return false
	}

	switch p.Role {
	case RoleAdmin:
		return true
	case RoleUser:
		return IsOwn(p, t)
	case RoleSupport:
		return supportCanEdit(p, t)
	default:
		return false
	}
}

func supportCanEdit(p *UserPermissions, t *Ticket) bool {
	if t.ProblemType == "" {
		return false
	}

	if t.ProblemTypeSub != "" {
		for _, r := range p.SubtypeRestrictions {
			if r.Department == t.ProblemType && r.Subtype == t.ProblemTypeSub {
				return true
			}
		}
	}

	if containsString(p.EditableDepartments, t.ProblemType) {
		for _, r := range p.SubtypeRestrictions {
			if r.Department == t.ProblemType {
				// Narrowed to specific subtypes, and none matched above
				return false
			}
		}
		return true
	}

	if t.ProblemType == OtherDepartment && p.CanEditOtherDepartment {
		return true
	}

	return false
}

// CanComment lets staff comment anywhere and users on their own tickets
func CanComment(p *UserPermissions, t *Ticket) bool {
	if p == nil || t == nil {
		return false
	}
	if p.Role == RoleAdmin || p.Role == RoleSupport {
		return true
	}
	return IsOwn(p, t)
}

// CanDelete is reserved to administrators
func CanDelete(p *UserPermissions) bool {
	return p != nil && p.CanDelete
}

// CanApprove is the General Manager approval gate
func CanApprove(p *UserPermissions) bool {
	return p != nil && p.Role == RoleAdmin
}

// CanRequestApproval allows staff who can edit a ticket in an approval
// category to ask for approval, unless a request is already pending.
// Re-requesting after any decision is allowed.
func (pol Policy) CanRequestApproval(p *UserPermissions, t *Ticket) bool {
	if p == nil || t == nil {
		return false
	}
	if p.Role != RoleAdmin && p.Role != RoleSupport {
		return false
	}
	if !CanEdit(p, t) {
		return false
	}
	if !containsString(pol.ApprovalCategories, t.ProblemType) {
		return false
	}

	switch t.ApprovalStatus {
	case ApprovalNone, ApprovalApproved, ApprovalDenied, ApprovalChangesRequested:
		return true
	case ApprovalPending:
		return false
	default:
		return false
	}
}

// CanMerge allows staff to fold source into target when they can edit both
func (pol Policy) CanMerge(p *UserPermissions, source, target *Ticket) bool {
	if p == nil || source == nil || target == nil {
		return false
	}
	if p.Role != RoleAdmin && p.Role != RoleSupport {
		return false
	}
	if source.ID != "" && source.ID == target.ID {
		return false
	}
	return CanEdit(p, source) && CanEdit(p, target)
}

// CanManagePurchasing gates purchasing workflows
func CanManagePurchasing(p *UserPermissions) bool {
	return p != nil && (p.Role == RoleAdmin || p.IsPurchaser)
}

// CanManageInventory gates inventory workflows
func CanManageInventory(p *UserPermissions) bool {
	return p != nil && (p.Role == RoleAdmin || p.IsInventory)
}

// Decide evaluates every single-ticket predicate at once
func (pol Policy) Decide(p *UserPermissions, t *Ticket, groupMemberEmails []string) Decision {
	d := Decision{
		IsOwn:              IsOwn(p, t),
		CanView:            pol.CanView(p, t, groupMemberEmails),
		CanEdit:            CanEdit(p, t),
		CanComment:         CanComment(p, t),
		CanDelete:          CanDelete(p),
		CanApprove:         CanApprove(p),
		CanRequestApproval: pol.CanRequestApproval(p, t),
	}
	if t != nil {
		d.TicketID = t.ID
	}
	return d
}

// requesterEmail is the free-text original requester when present,
// otherwise the structured requester
func requesterEmail(t *Ticket) string {
	if original := strings.TrimSpace(t.OriginalRequester); original != "" {
		return original
	}
	if t.Requester != nil {
		return t.Requester.Email
	}
	return ""
}

func emailEquals(a, b string) bool {
	a = normalizeEmail(a)
	return a != "" && a == normalizeEmail(b)
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
