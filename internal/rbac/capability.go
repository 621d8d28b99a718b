package rbac

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidCapability = errors.New("invalid capability")

// Domain is an area of the application a capability applies to
type Domain string

const (
	DomainAnimals     Domain = "animals"
	DomainEnclosures  Domain = "enclosures"
	DomainFeeding     Domain = "feeding"
	DomainTickets     Domain = "tickets"
	DomainTicketTypes Domain = "ticket_types"
	DomainUsers       Domain = "users"
	DomainAudit       Domain = "audit"
	DomainReports     Domain = "reports"
)

// Action is a verb within a domain
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionRefund Action = "refund"
)

// domainActions is the closed set of actions each domain defines.
var domainActions = map[Domain][]Action{
	DomainAnimals:     {ActionView, ActionCreate, ActionUpdate, ActionDelete},
	DomainEnclosures:  {ActionView, ActionCreate, ActionUpdate, ActionDelete},
	DomainFeeding:     {ActionView, ActionCreate, ActionUpdate, ActionDelete},
	DomainTickets:     {ActionView, ActionCreate, ActionRefund, ActionDelete},
	DomainTicketTypes: {ActionView, ActionCreate, ActionUpdate, ActionDelete},
	DomainUsers:       {ActionView, ActionCreate, ActionUpdate, ActionDelete},
	DomainAudit:       {ActionView},
	DomainReports:     {ActionView},
}

// Capability names one action on one domain, written "domain:action"
type Capability struct {
	Domain Domain
	Action Action
}

// Cap is shorthand for building a Capability from constants
func Cap(d Domain, a Action) Capability {
	return Capability{Domain: d, Action: a}
}

func (c Capability) String() string {
	return string(c.Domain) + ":" + string(c.Action)
}

// Defined reports whether c belongs to the closed enumeration
func (c Capability) Defined() bool {
	for _, a := range domainActions[c.Domain] {
		if a == c.Action {
			return true
		}
	}
	return false
}

// ParseCapability splits "domain:action". It checks syntax only; use
// Defined to test membership of the enumeration.
func ParseCapability(s string) (Capability, error) {
	domain, action, ok := strings.Cut(s, ":")
	if !ok || domain == "" || action == "" || strings.Contains(action, ":") {
		return Capability{}, fmt.Errorf("%w: %q", ErrInvalidCapability, s)
	}
	return Capability{Domain: Domain(domain), Action: Action(action)}, nil
}

// Capabilities lists every defined capability, ordered by domain then action
func Capabilities() []Capability {
	domains := []Domain{
		DomainAnimals, DomainEnclosures, DomainFeeding, DomainTickets,
		DomainTicketTypes, DomainUsers, DomainAudit, DomainReports,
	}

	var caps []Capability
	for _, d := range domains {
		for _, a := range domainActions[d] {
			caps = append(caps, Cap(d, a))
		}
	}
	return caps
}
