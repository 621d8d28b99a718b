// Package rbac decides which role may invoke which capability.
//
// Roles are static configuration. Each role owns a Grant made of an
// allow-all sentinel, whole-domain grants ("feeding:*") and exact
// capabilities ("animals:view"). Evaluation is a pure set lookup:
//
//	allow-all  -> allow
//	exact      -> allow
//	domain:*   -> allow
//	otherwise  -> deny
//
// Unknown roles hold an empty grant, so they are denied everything.
package rbac

import (
	"fmt"
	"sort"
)

// Role is the name of a bundle of capabilities
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleZookeeper Role = "zookeeper"
	RoleTicketing Role = "ticketing"
)

// Wildcard grants every capability when it is a role's only entry
const Wildcard = "*"

// Grant is the capability set held by one role
type Grant struct {
	allowAll bool
	domains  map[Domain]struct{}
	exact    map[Capability]struct{}
}

// AllowAll returns the grant that permits every capability
func AllowAll() Grant {
	return Grant{allowAll: true}
}

// NewGrant builds a grant from capability strings. Every entry must be "*",
// "domain:*" for a defined domain, or a defined capability; anything else
// is rejected so misspelled capabilities fail loudly.
func NewGrant(entries ...string) (Grant, error) {
	g := Grant{
		domains: make(map[Domain]struct{}),
		exact:   make(map[Capability]struct{}),
	}

	for _, e := range entries {
		if e == Wildcard {
			g.allowAll = true
			continue
		}

		c, err := ParseCapability(e)
		if err != nil {
			return Grant{}, err
		}
		if _, ok := domainActions[c.Domain]; !ok {
			return Grant{}, fmt.Errorf("%w: unknown domain in %q", ErrInvalidCapability, e)
		}

		if c.Action == Wildcard {
			g.domains[c.Domain] = struct{}{}
			continue
		}
		if !c.Defined() {
			return Grant{}, fmt.Errorf("%w: unknown action in %q", ErrInvalidCapability, e)
		}
		g.exact[c] = struct{}{}
	}

	return g, nil
}

// MustGrant is NewGrant for static tables
func MustGrant(entries ...string) Grant {
	g, err := NewGrant(entries...)
	if err != nil {
		panic(err)
	}
	return g
}

// Allows evaluates the grant against a single capability
func (g Grant) Allows(c Capability) bool {
	if g.allowAll {
		return true
	}
	if _, ok := g.exact[c]; ok {
		return true
	}
	_, ok := g.domains[c.Domain]
	return ok
}

// Entries returns the grant in its string form, sorted
func (g Grant) Entries() []string {
	if g.allowAll {
		return []string{Wildcard}
	}

	out := make([]string, 0, len(g.domains)+len(g.exact))
	for d := range g.domains {
		out = append(out, string(d)+":"+Wildcard)
	}
	for c := range g.exact {
		out = append(out, c.String())
	}
	sort.Strings(out)
	return out
}

// rolePermissions is the process-wide role table.
var rolePermissions = map[Role]Grant{
	RoleAdmin: AllowAll(),
	RoleZookeeper: MustGrant(
		"animals:view",
		"animals:create",
		"animals:update",
		"feeding:*",
		"enclosures:view",
		"reports:view",
	),
	RoleTicketing: MustGrant(
		"tickets:*",
		"ticket_types:*",
		"animals:view",
		"enclosures:view",
		"reports:view",
	),
}

// Allowed reports whether role holds capability c
func Allowed(role Role, c Capability) bool {
	g, ok := rolePermissions[role]
	if !ok {
		return false
	}
	return g.Allows(c)
}

// Can is the string form of Allowed. A malformed capability or an unknown
// role yields false; it never fails.
func Can(role, capability string) bool {
	c, err := ParseCapability(capability)
	if err != nil {
		return false
	}
	return Allowed(Role(role), c)
}

// IsKnownRole reports whether name is one of the configured roles
func IsKnownRole(name string) bool {
	_, ok := rolePermissions[Role(name)]
	return ok
}

// Roles returns the configured role names, sorted
func Roles() []Role {
	out := make([]Role, 0, len(rolePermissions))
	for r := range rolePermissions {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// GrantFor returns the grant configured for role
func GrantFor(role Role) Grant {
	return rolePermissions[role]
}
