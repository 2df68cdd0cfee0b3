// Package storage holds group-role sources backed by object storage.
//
// S3RolesSource reads the same YAML document as rbac.FileSource from an S3
// bucket or any S3-compatible service such as MinIO:
//
//	group_roles:
//	  - title: Facilities agents
//	    group_id: 3f2a...
//	    group_type: department
//	    department: Facilities
//	    is_active: true
//
// The source keeps the last ETag and sends it with every fetch, so the
// config loader's periodic reload costs a 304 while the object is unchanged.
package storage
