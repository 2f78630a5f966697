package authz

import "strings"

// Actions.
const (
	Read   = "read"
	Write  = "write"
	Record = "record"
)

// Resources.
const (
	Meetings = "meetings"
	Profiles = "profiles"
)

// Permission joins a resource and an action.
func Permission(resource, action string) string {
	return resource + ":" + action
}

// Scopes is a parsed scope claim.
type Scopes []string

// ParseScopes splits a space-separated scope claim.
func ParseScopes(claim string) Scopes {
	return Scopes(strings.Fields(claim))
}

// Allows reports whether any pattern grants permission. Empty scopes allow
// everything.
func (s Scopes) Allows(permission string) bool {
	if len(s) == 0 {
		return true
	}
	for _, p := range s {
		if Match(p, permission) {
			return true
		}
	}
	return false
}

// Match reports whether pattern grants permission. Both sides are
// "resource:action"; a pattern without an action matches only the exact
// string or "*".
func Match(pattern, permission string) bool {
	if pattern == "*" || pattern == permission {
		return true
	}
	pr, pa, pok := strings.Cut(pattern, ":")
	rr, ra, rok := strings.Cut(permission, ":")
	if !pok || !rok {
		return false
	}
	return wildcard(pr, rr) && wildcard(pa, ra)
}

func wildcard(pattern, value string) bool {
	return pattern == "*" || pattern == value
}
