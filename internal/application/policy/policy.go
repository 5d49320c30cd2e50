// Package policy decides which actor may perform which tree operation.
package policy

import (
	"github.com/oksasatya/referral-tree/internal/domain/entity"
	"github.com/oksasatya/referral-tree/pkg/apperror"
)

type Operation string

const (
	OpInsert   Operation = "insert"
	OpUpdate   Operation = "update"
	OpDelete   Operation = "delete"
	OpView     Operation = "view"
	OpViewTree Operation = "view_tree"
	OpAttach   Operation = "attach"
	OpExport   Operation = "export"
	OpGrant    Operation = "grant_admin"
)

// Rule reports whether actor may act on target. Both are non-nil.
type Rule func(actor, target *entity.Member) bool

// CanModify is true for admins, the target's direct parent, and the target itself.
func CanModify(actor, target *entity.Member) bool {
	if actor.IsAdmin {
		return true
	}
	if target.ParentID != nil && *target.ParentID == actor.ID {
		return true
	}
	return target.ID == actor.ID
}

// SelfOrAdmin is true when actor is the target or an admin.
func SelfOrAdmin(actor, target *entity.Member) bool {
	return actor.IsAdmin || actor.ID == target.ID
}

func AdminOnly(actor, _ *entity.Member) bool { return actor.IsAdmin }

func AnyAuthenticated(_, _ *entity.Member) bool { return true }

// Policy is a table of rules keyed by operation. Operations without a rule are denied.
type Policy struct {
	rules map[Operation]Rule
}

func New(rules map[Operation]Rule) *Policy {
	p := &Policy{rules: make(map[Operation]Rule, len(rules))}
	for op, r := range rules {
		p.rules[op] = r
	}
	return p
}

// Default is the production table. For OpInsert the target is the prospective parent.
func Default() *Policy {
	return New(map[Operation]Rule{
		OpInsert:   SelfOrAdmin,
		OpUpdate:   CanModify,
		OpDelete:   CanModify,
		OpView:     AnyAuthenticated,
		OpViewTree: CanModify,
		OpAttach:   AdminOnly,
		OpExport:   AdminOnly,
		OpGrant:    AdminOnly,
	})
}

// With returns a copy of p with op bound to r.
func (p *Policy) With(op Operation, r Rule) *Policy {
	cp := New(p.rules)
	cp.rules[op] = r
	return cp
}

func (p *Policy) Allow(op Operation, actor, target *entity.Member) bool {
	if actor == nil || target == nil {
		return false
	}
	r, ok := p.rules[op]
	if !ok {
		return false
	}
	return r(actor, target)
}

// Authorize is Allow as an error: unauthorized without an actor, forbidden when denied.
func (p *Policy) Authorize(op Operation, actor, target *entity.Member) error {
	if actor == nil {
		return apperror.Unauthorized("authentication required")
	}
	if !p.Allow(op, actor, target) {
		return apperror.Forbidden("not allowed to " + string(op) + " this member")
	}
	return nil
}
