package policy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oksasatya/referral-tree/internal/domain/entity"
	"github.com/oksasatya/referral-tree/pkg/apperror"
)

func TestCanModify(t *testing.T) {
	a := &entity.Member{ID: "a"}
	b := &entity.Member{ID: "b", ParentID: entity.Ref("a")}
	c := &entity.Member{ID: "c", ParentID: entity.Ref("x")}
	grandchild := &entity.Member{ID: "g", ParentID: entity.Ref("b")}
	admin := &entity.Member{ID: "root", IsAdmin: true}

	tests := []struct {
		name          string
		actor, target *entity.Member
		want          bool
	}{
		{"parent on direct child", a, b, true},
		{"unrelated member", a, c, false},
		{"grandparent is not direct parent", a, grandchild, false},
		{"self", a, a, true},
		{"child on parent", b, a, false},
		{"admin on anyone", admin, c, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanModify(tt.actor, tt.target))
		})
	}
}

func TestAuthorize(t *testing.T) {
	p := Default()
	a := &entity.Member{ID: "a"}
	b := &entity.Member{ID: "b", ParentID: entity.Ref("a")}
	c := &entity.Member{ID: "c"}
	admin := &entity.Member{ID: "root", IsAdmin: true}

	assert.NoError(t, p.Authorize(OpUpdate, a, b))
	assert.True(t, errors.Is(p.Authorize(OpUpdate, a, c), apperror.ErrForbidden))
	assert.NoError(t, p.Authorize(OpUpdate, admin, c))
	assert.True(t, errors.Is(p.Authorize(OpUpdate, nil, c), apperror.ErrUnauthorized))

	assert.NoError(t, p.Authorize(OpInsert, a, a))
	assert.Error(t, p.Authorize(OpInsert, a, b))
	assert.Error(t, p.Authorize(OpAttach, a, c))
	assert.NoError(t, p.Authorize(OpAttach, admin, c))
}

func TestUnknownOperationDenied(t *testing.T) {
	p := New(nil)
	admin := &entity.Member{ID: "root", IsAdmin: true}
	assert.False(t, p.Allow(OpUpdate, admin, admin))
}

func TestWithDoesNotMutateReceiver(t *testing.T) {
	base := Default()
	open := base.With(OpDelete, AnyAuthenticated)
	a := &entity.Member{ID: "a"}
	c := &entity.Member{ID: "c"}

	assert.True(t, open.Allow(OpDelete, a, c))
	assert.False(t, base.Allow(OpDelete, a, c))
}
