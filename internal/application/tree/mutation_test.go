package tree

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/referral-tree/internal/domain/entity"
	"github.com/oksasatya/referral-tree/internal/domain/repository"
	"github.com/oksasatya/referral-tree/internal/infrastructure/memory"
	"github.com/oksasatya/referral-tree/pkg/apperror"
)

func codeOf(err error) string {
	var e *apperror.Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func TestInsertLinksChildAndEncrypts(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewMemberRepository()
	e := newEngine(t, repo)
	root := seedRoot(t, e, "root@example.com")

	child, err := e.Insert(ctx, root.ID, "left", &entity.Member{
		Name:      "Lefty",
		Email:     "lefty@example.com",
		Sensitive: entity.Sensitive{AccountNo: "000123", IFSCCode: "SBIN0001", AadhaarNo: "1111-2222"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, child.ID)
	assert.Equal(t, entity.SideLeft, child.Side)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, root.ID, *child.ParentID)
	assert.Equal(t, "000123", child.AccountNo)

	stored := mustFind(t, repo, child.ID)
	for _, f := range stored.Sensitive.Fields() {
		assert.NotEmpty(t, *f)
	}
	assert.NotEqual(t, "000123", stored.AccountNo)
	assert.NotEqual(t, "1111-2222", stored.AadhaarNo)

	view, err := DecryptMemberView(newCipher(t), stored)
	require.NoError(t, err)
	assert.Equal(t, "000123", view.AccountNo)
	assert.Equal(t, "", view.MICRNo)

	parent := mustFind(t, repo, root.ID)
	require.NotNil(t, parent.LeftChildID)
	assert.Equal(t, child.ID, *parent.LeftChildID)
	assert.Nil(t, parent.RightChildID)
	assertSlotsConsistent(t, repo, root.ID)
}

func TestInsertRequiresSide(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewMemberRepository()
	e := newEngine(t, repo)
	root := seedRoot(t, e, "root@example.com")

	_, err := e.Insert(ctx, root.ID, "", &entity.Member{Email: "x@example.com"})
	assert.True(t, errors.Is(err, apperror.ErrValidation))
	assert.Equal(t, "side_required", codeOf(err))

	_, err = e.Insert(ctx, root.ID, "middle", &entity.Member{Email: "x@example.com"})
	assert.True(t, errors.Is(err, apperror.ErrValidation))
	assert.Equal(t, "invalid_side", codeOf(err))

	_, err = e.Insert(ctx, root.ID, "none", &entity.Member{Email: "x@example.com"})
	assert.Equal(t, "invalid_side", codeOf(err))
	assert.Equal(t, 1, repo.Len())
}

func TestInsertIntoOccupiedSlotLeavesRecordsUnchanged(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewMemberRepository()
	e := newEngine(t, repo)
	root := seedRoot(t, e, "root@example.com")
	left := insert(t, e, root.ID, entity.SideLeft, "left@example.com")

	beforeParent := mustFind(t, repo, root.ID)
	beforeChild := mustFind(t, repo, left.ID)

	_, err := e.Insert(ctx, root.ID, "left", &entity.Member{Email: "second@example.com"})
	assert.True(t, errors.Is(err, apperror.ErrSlotOccupied))

	assert.Equal(t, beforeParent, mustFind(t, repo, root.ID))
	assert.Equal(t, beforeChild, mustFind(t, repo, left.ID))
	assert.Equal(t, 2, repo.Len())
	_, err = repo.FindByEmail(ctx, "second@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestInsertDuplicateEmailCreatesNothing(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewMemberRepository()
	e := newEngine(t, repo)
	root := seedRoot(t, e, "root@example.com")
	insert(t, e, root.ID, entity.SideLeft, "dup@example.com")

	_, err := e.Insert(ctx, root.ID, "right", &entity.Member{Email: "dup@example.com"})
	assert.True(t, errors.Is(err, apperror.ErrDuplicateEmail))
	assert.Equal(t, 2, repo.Len())
	assert.Nil(t, mustFind(t, repo, root.ID).RightChildID)
}

func TestInsertUnknownParent(t *testing.T) {
	e := newEngine(t, memory.NewMemberRepository())
	_, err := e.Insert(context.Background(), "nope", "left", &entity.Member{Email: "x@example.com"})
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestInsertLinkFailureIsCompensated(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewMemberRepository()
	repo := &faultyRepo{MemberRepository: mem}
	e := newEngine(t, repo)
	root := seedRoot(t, e, "root@example.com")

	linkErr := errors.New("connection reset")
	repo.UpdateFunc = func(context.Context, string, repository.MemberPatch) (*entity.Member, error) {
		return nil, linkErr
	}

	_, err := e.Insert(ctx, root.ID, "right", &entity.Member{Email: "orphan@example.com"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrPartialInsert))
	assert.True(t, errors.Is(err, linkErr))

	var p *apperror.PartialInsertFailure
	require.True(t, errors.As(err, &p))
	assert.True(t, p.Compensated)
	assert.Equal(t, root.ID, p.ParentID)
	assert.Equal(t, 1, mem.Len())
}

func TestInsertLinkAndCleanupFailure(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewMemberRepository()
	repo := &faultyRepo{MemberRepository: mem}
	e := newEngine(t, repo)
	root := seedRoot(t, e, "root@example.com")

	repo.UpdateFunc = func(context.Context, string, repository.MemberPatch) (*entity.Member, error) {
		return nil, errors.New("link down")
	}
	repo.DeleteFunc = func(context.Context, string) error { return errors.New("delete down") }

	_, err := e.Insert(ctx, root.ID, "left", &entity.Member{Email: "stuck@example.com"})
	var p *apperror.PartialInsertFailure
	require.True(t, errors.As(err, &p))
	assert.False(t, p.Compensated)
	assert.Error(t, p.CompErr)

	orphan := mustFind(t, mem, p.ChildID)
	assert.Equal(t, root.ID, *orphan.ParentID)
	assert.Nil(t, mustFind(t, mem, root.ID).LeftChildID)
}

func TestInsertLostRaceReportsSlotOccupied(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewMemberRepository()
	repo := &faultyRepo{MemberRepository: mem}
	e := newEngine(t, repo)
	root := seedRoot(t, e, "root@example.com")

	repo.UpdateFunc = func(context.Context, string, repository.MemberPatch) (*entity.Member, error) {
		return nil, repository.ErrConflict
	}
	_, err := e.Insert(ctx, root.ID, "left", &entity.Member{Email: "late@example.com"})
	assert.True(t, errors.Is(err, apperror.ErrSlotOccupied))
	assert.Equal(t, 1, mem.Len())
}

func TestInsertUsesLinkedCreator(t *testing.T) {
	repo := &linkedRepo{MemberRepository: memory.NewMemberRepository()}
	e := newEngine(t, repo)
	root := seedRoot(t, e, "root@example.com")

	child := insert(t, e, root.ID, entity.SideRight, "tx@example.com")
	assert.Equal(t, 1, repo.calls)
	assert.Equal(t, child.ID, *mustFind(t, repo, root.ID).RightChildID)
	assertSlotsConsistent(t, repo, root.ID)
}

func TestRootScenario(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewMemberRepository()
	e := newEngine(t, repo)
	r := seedRoot(t, e, "r@example.com")
	assert.Nil(t, r.ParentID)
	assert.Equal(t, entity.SideNone, r.Side)

	_, err := e.Insert(ctx, r.ID, "", &entity.Member{Email: "a@example.com"})
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	insert(t, e, r.ID, entity.SideLeft, "a@example.com")
	_, err = e.Insert(ctx, r.ID, "left", &entity.Member{Email: "b@example.com"})
	assert.True(t, errors.Is(err, apperror.ErrSlotOccupied))
}

func TestDeleteClearsOnlyMatchingSlot(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewMemberRepository()
	e := newEngine(t, repo)
	root := seedRoot(t, e, "root@example.com")
	left := insert(t, e, root.ID, entity.SideLeft, "l@example.com")
	right := insert(t, e, root.ID, entity.SideRight, "r@example.com")

	require.NoError(t, e.Delete(ctx, left.ID))

	parent := mustFind(t, repo, root.ID)
	assert.Nil(t, parent.LeftChildID)
	require.NotNil(t, parent.RightChildID)
	assert.Equal(t, right.ID, *parent.RightChildID)
	_, err := repo.FindByID(ctx, left.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteWithParentHoldingMemberTwice(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewMemberRepository()
	repo.Put(&entity.Member{ID: "p", Email: "p@example.com", Side: entity.SideNone, LeftChildID: entity.Ref("b"), RightChildID: entity.Ref("b")})
	repo.Put(&entity.Member{ID: "b", Email: "b@example.com", ParentID: entity.Ref("p"), Side: entity.SideRight})
	e := newEngine(t, repo)

	require.NoError(t, e.Delete(ctx, "b"))

	parent := mustFind(t, repo, "p")
	assert.Nil(t, parent.RightChildID)
	require.NotNil(t, parent.LeftChildID)
	assert.Equal(t, "b", *parent.LeftChildID)
}

func TestDeleteNeverClearsForeignSlot(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewMemberRepository()
	repo.Put(&entity.Member{ID: "p", Email: "p@example.com", Side: entity.SideNone, LeftChildID: entity.Ref("x"), RightChildID: entity.Ref("y")})
	repo.Put(&entity.Member{ID: "stale", Email: "s@example.com", ParentID: entity.Ref("p"), Side: entity.SideLeft})
	e := newEngine(t, repo)

	require.NoError(t, e.Delete(ctx, "stale"))

	parent := mustFind(t, repo, "p")
	assert.Equal(t, "x", *parent.LeftChildID)
	assert.Equal(t, "y", *parent.RightChildID)
}

func TestDeletePromotesChildrenToRoots(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewMemberRepository()
	e := newEngine(t, repo)
	root := seedRoot(t, e, "root@example.com")
	mid := insert(t, e, root.ID, entity.SideLeft, "mid@example.com")
	gl := insert(t, e, mid.ID, entity.SideLeft, "gl@example.com")
	gr := insert(t, e, mid.ID, entity.SideRight, "gr@example.com")
	ggc := insert(t, e, gl.ID, entity.SideLeft, "ggc@example.com")

	require.NoError(t, e.Delete(ctx, mid.ID))

	for _, id := range []string{gl.ID, gr.ID} {
		m := mustFind(t, repo, id)
		assert.Nil(t, m.ParentID)
		assert.Equal(t, entity.SideNone, m.Side)
	}
	deep := mustFind(t, repo, ggc.ID)
	assert.Equal(t, gl.ID, *deep.ParentID)
	assertSlotsConsistent(t, repo, gl.ID)
	assert.Nil(t, mustFind(t, repo, root.ID).LeftChildID)
}

func TestDeleteMissingMember(t *testing.T) {
	e := newEngine(t, memory.NewMemberRepository())
	err := e.Delete(context.Background(), "ghost")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestDeleteStopsWhenParentUpdateFails(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewMemberRepository()
	repo := &faultyRepo{MemberRepository: mem}
	e := newEngine(t, repo)
	root := seedRoot(t, e, "root@example.com")
	child := insert(t, e, root.ID, entity.SideLeft, "c@example.com")

	repo.UpdateFunc = func(context.Context, string, repository.MemberPatch) (*entity.Member, error) {
		return nil, errors.New("write failed")
	}
	err := e.Delete(ctx, child.ID)
	assert.True(t, errors.Is(err, apperror.ErrInternal))
	mustFind(t, mem, child.ID)
}

func TestAttachOrphan(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewMemberRepository()
	e := newEngine(t, repo)
	root := seedRoot(t, e, "root@example.com")
	mid := insert(t, e, root.ID, entity.SideLeft, "mid@example.com")
	orphan := insert(t, e, mid.ID, entity.SideLeft, "orphan@example.com")
	require.NoError(t, e.Delete(ctx, mid.ID))

	attached, err := e.Attach(ctx, orphan.ID, root.ID, "right", 0)
	require.NoError(t, err)
	assert.Equal(t, root.ID, *attached.ParentID)
	assert.Equal(t, entity.SideRight, attached.Side)
	assertSlotsConsistent(t, repo, root.ID)

	_, err = e.Attach(ctx, orphan.ID, root.ID, "left", 0)
	assert.Equal(t, "member_has_parent", codeOf(err))
}

func TestAttachRefusesCycle(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewMemberRepository()
	e := newEngine(t, repo)
	top := seedRoot(t, e, "top@example.com")
	below := insert(t, e, top.ID, entity.SideLeft, "below@example.com")

	_, err := e.Attach(ctx, top.ID, below.ID, "left", 0)
	assert.True(t, errors.Is(err, apperror.ErrCyclicTree))
	assert.Nil(t, mustFind(t, repo, top.ID).ParentID)

	_, err = e.Attach(ctx, top.ID, top.ID, "left", 0)
	assert.Equal(t, "self_attach", codeOf(err))
}

func TestUpdateEncryptsAndRejectsStructuralChanges(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewMemberRepository()
	e := newEngine(t, repo)
	root := seedRoot(t, e, "root@example.com")
	child := insert(t, e, root.ID, entity.SideLeft, "c@example.com")
	insert(t, e, root.ID, entity.SideRight, "taken@example.com")

	updated, err := e.Update(ctx, child.ID, repository.MemberPatch{Name: entity.Ref("New Name"), PANNo: entity.Ref("NEWPAN")})
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.Name)
	assert.NotEqual(t, "NEWPAN", updated.PANNo)

	view, err := DecryptMemberView(newCipher(t), updated)
	require.NoError(t, err)
	assert.Equal(t, "NEWPAN", view.PANNo)
	assert.Equal(t, "acct-c@example.com", view.AccountNo)

	side := entity.SideRight
	_, err = e.Update(ctx, child.ID, repository.MemberPatch{Side: &side})
	assert.Equal(t, "structural_update", codeOf(err))

	_, err = e.Update(ctx, child.ID, repository.MemberPatch{Email: entity.Ref("taken@example.com")})
	assert.True(t, errors.Is(err, apperror.ErrDuplicateEmail))

	_, err = e.Update(ctx, child.ID, repository.MemberPatch{Email: entity.Ref("c@example.com")})
	assert.NoError(t, err)
}
