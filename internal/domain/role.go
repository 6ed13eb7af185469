package domain

import "strings"

// Role enumerates the closed set of participant roles.
type Role string

const (
	RoleCustomer  Role = "customer"
	RoleDeveloper Role = "developer"
	RoleOwner     Role = "owner"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleDeveloper, RoleOwner:
		return true
	default:
		return false
	}
}

// ParseRole normalizes a role string; ok is false for unknown values.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	return role, role.Valid()
}

// Action names something an identity may attempt.
type Action string

const (
	ActionCreateIdea     Action = "create_idea"
	ActionViewIdea       Action = "view_idea"
	ActionAssignIdea     Action = "assign_idea"
	ActionChangeStatus   Action = "change_status"
	ActionPostUpdate     Action = "post_update"
	ActionViewStats      Action = "view_stats"
	ActionListDevelopers Action = "list_developers"
	ActionListUsers      Action = "list_users"
)

// Scope qualifies a granted action by which ideas it reaches.
type Scope int

const (
	ScopeNone Scope = iota
	// ScopeOwn covers ideas the identity created.
	ScopeOwn
	// ScopeAssigned covers ideas assigned to the identity.
	ScopeAssigned
	ScopeAll
)

func (s Scope) String() string {
	switch s {
	case ScopeOwn:
		return "own"
	case ScopeAssigned:
		return "assigned"
	case ScopeAll:
		return "all"
	default:
		return "none"
	}
}

// capabilities is the authorization matrix. Missing entries mean ScopeNone.
var capabilities = map[Role]map[Action]Scope{
	RoleCustomer: {
		ActionCreateIdea: ScopeOwn,
		ActionViewIdea:   ScopeOwn,
		ActionPostUpdate: ScopeOwn,
		ActionViewStats:  ScopeOwn,
	},
	RoleDeveloper: {
		ActionViewIdea:   ScopeAssigned,
		ActionPostUpdate: ScopeAssigned,
		ActionViewStats:  ScopeAssigned,
	},
	RoleOwner: {
		ActionViewIdea:       ScopeAll,
		ActionAssignIdea:     ScopeAll,
		ActionChangeStatus:   ScopeAll,
		ActionPostUpdate:     ScopeAll,
		ActionViewStats:      ScopeAll,
		ActionListDevelopers: ScopeAll,
		ActionListUsers:      ScopeAll,
	},
}

// ScopeFor returns the scope role holds for action.
func ScopeFor(role Role, action Action) Scope {
	return capabilities[role][action]
}
