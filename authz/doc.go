// Package authz decides what an API token may do.
//
// A token's scope claim is a space-separated list of permission patterns
// in "resource:action" form. "*" matches any resource or action:
//
//	meetings:read profiles:*     read meetings, manage voice profiles
//	*:read                       read everything
//	*:*                          full access
//
// A token without a scope is unrestricted.
package authz
