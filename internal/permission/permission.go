// Package permission implements the capability model gating access to
// calendar entries. Permissions form a flat set with one top element:
// admin implies everything, every other action requires the permission
// named after it.
package permission

import (
	"github.com/rturner/choreboard/internal/model"
)

type Permission string

const (
	Admin    Permission = "admin"
	IAM      Permission = "iam"
	Create   Permission = "create"
	Edit     Permission = "edit"
	Complete Permission = "complete"
	Delete   Permission = "delete"
	View     Permission = "view"
)

// All lists every grantable permission, admin first.
var All = []Permission{Admin, IAM, Create, Edit, Complete, Delete, View}

func Valid(p Permission) bool {
	for _, known := range All {
		if p == known {
			return true
		}
	}
	return false
}

// Action is something a user attempts against the system or a specific
// entry. Actions are named after the permission they require.
type Action string

const (
	ActionView     Action = "view"
	ActionCreate   Action = "create"
	ActionEdit     Action = "edit"
	ActionComplete Action = "complete"
	ActionDelete   Action = "delete"
	ActionIAM      Action = "iam"
)

// Has reports whether the permission set grants p, with the admin
// short-circuit applied.
func Has(perms []string, p Permission) bool {
	for _, g := range perms {
		if g == string(Admin) || g == string(p) {
			return true
		}
	}
	return false
}

// Policy holds the configurable evaluation knobs.
//
// OwnerException lets the creator of an entry edit and delete it even
// without the generic edit/delete permission. Ownership is additive
// only: it never substitutes for the view permission.
type Policy struct {
	OwnerException bool
}

// Evaluator decides whether a user may perform an action, optionally
// scoped to a single entry. It is pure: no I/O, no state beyond the
// policy fixed at construction.
type Evaluator struct {
	policy Policy
}

func NewEvaluator(policy Policy) *Evaluator {
	return &Evaluator{policy: policy}
}

// Allows reports whether user may perform action. entry may be nil for
// actions that are not scoped to one (create, iam).
func (e *Evaluator) Allows(user *model.User, action Action, entry *model.CalendarEntry) bool {
	if user == nil || user.Disabled {
		return false
	}
	if Has(user.Permissions, Permission(action)) {
		return true
	}
	if e.policy.OwnerException && entry != nil && entry.CreatedBy == user.ID {
		switch action {
		case ActionEdit, ActionDelete:
			return true
		}
	}
	return false
}
