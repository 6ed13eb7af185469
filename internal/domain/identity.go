package domain

// Identity is an authenticated caller as seen by the workflow core.
type Identity struct {
	UserID string
	Name   string
	Role   Role
}

// IdentityOf builds the identity for a loaded user.
func IdentityOf(user *User) Identity {
	return Identity{UserID: user.ID, Name: user.Name, Role: user.Role}
}

// Scope returns the scope this identity holds for action.
func (id Identity) Scope(action Action) Scope {
	return ScopeFor(id.Role, action)
}

// Can evaluates the capability table for action. With a nil idea it only
// asks whether the action is granted at all; with an idea it also checks
// the idea falls inside the granted scope.
func (id Identity) Can(action Action, idea *Idea) bool {
	scope := id.Scope(action)
	if scope == ScopeNone {
		return false
	}
	if idea == nil {
		return true
	}
	return scope.Covers(id, idea)
}

// Covers reports whether idea falls inside s for the given identity.
func (s Scope) Covers(id Identity, idea *Idea) bool {
	switch s {
	case ScopeAll:
		return true
	case ScopeOwn:
		return idea.CustomerID == id.UserID
	case ScopeAssigned:
		return idea.AssignedTo != nil && *idea.AssignedTo == id.UserID
	default:
		return false
	}
}
