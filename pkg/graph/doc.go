// Package graph is a small Microsoft Graph client for the directory and
// list reads the access engine needs.
//
// The client authenticates as the application (client credentials grant)
// and follows @odata.nextLink paging. It satisfies rbac.DirectorySource and
// rbac.GroupMemberSource; ListSource satisfies rbac.RowSource.
package graph
