// Package rbac decides who may see and change help-desk tickets.
//
// # Overview
//
// Access is derived from directory group membership. A small table of
// group roles names the groups that matter and what each one grants:
//
//	admin       - full access to every ticket
//	department  - support staff for one department
//	subtype     - support staff for one problem subtype within a department
//	visibility  - regular users who share tickets with their team
//	purchaser   - purchasing workflow
//	inventory   - inventory workflow
//
// # Sign-in chain
//
// Permissions are built in three steps that must run in order:
//
//  1. ConfigLoader loads the group-role table, falling back to a built-in
//     table when the source is unavailable.
//  2. MembershipResolver asks the directory for the user's groups and keeps
//     only the ones named in the table.
//  3. BuildPermissions turns the groups into an immutable UserPermissions.
//
// AccessService runs the chain and memoizes the result per email.
//
// # Decisions
//
// The predicates in checker.go are pure and fail closed. CanView is the only
// one that may need the team roster, which GroupMemberDirectory resolves
// lazily for regular users:
//
//	perms := service.PermissionsFor(ctx, email, name)
//	if service.Decide(ctx, perms, ticket).CanView {
//		...
//	}
//
// # Sources
//
// Group roles can come from a SharePoint list (see package graph), the
// rbac_group_roles SQL table (Store) or a YAML file (FileSource).
package rbac
