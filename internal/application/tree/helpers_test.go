package tree

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/referral-tree/internal/domain/entity"
	"github.com/oksasatya/referral-tree/internal/domain/repository"
	"github.com/oksasatya/referral-tree/internal/infrastructure/memory"
	"github.com/oksasatya/referral-tree/pkg/cipher"
)

// faultyRepo lets a test replace single repository calls.
type faultyRepo struct {
	*memory.MemberRepository
	UpdateFunc func(ctx context.Context, id string, p repository.MemberPatch) (*entity.Member, error)
	DeleteFunc func(ctx context.Context, id string) error
}

func (f *faultyRepo) Update(ctx context.Context, id string, p repository.MemberPatch) (*entity.Member, error) {
	if f.UpdateFunc != nil {
		return f.UpdateFunc(ctx, id, p)
	}
	return f.MemberRepository.Update(ctx, id, p)
}

func (f *faultyRepo) Delete(ctx context.Context, id string) error {
	if f.DeleteFunc != nil {
		return f.DeleteFunc(ctx, id)
	}
	return f.MemberRepository.Delete(ctx, id)
}

// linkedRepo exercises the single-transaction insert path.
type linkedRepo struct {
	*memory.MemberRepository
	calls int
}

func (l *linkedRepo) CreateLinked(ctx context.Context, child *entity.Member, parentID string, side entity.Side) error {
	l.calls++
	parent, err := l.FindByID(ctx, parentID)
	if err != nil {
		return err
	}
	if parent.ChildAt(side) != nil {
		return repository.ErrConflict
	}
	if err := l.Create(ctx, child); err != nil {
		return err
	}
	_, err = l.Update(ctx, parentID, repository.SlotChange(side, nil, entity.Ref(child.ID)))
	return err
}

func newLogger() *logrus.Logger {
	l, _ := test.NewNullLogger()
	return l
}

func newCipher(t *testing.T) *cipher.FieldCipher {
	t.Helper()
	c, err := cipher.New("tree-test-secret")
	require.NoError(t, err)
	return c
}

func newEngine(t *testing.T, repo repository.MemberRepository) *Engine {
	return NewEngine(repo, newCipher(t), time.Second, newLogger())
}

// seedRoot stores a root member through the engine.
func seedRoot(t *testing.T, e *Engine, email string) *entity.Member {
	t.Helper()
	root, err := e.CreateRoot(context.Background(), &entity.Member{Name: "Root", Email: email, IsAdmin: true})
	require.NoError(t, err)
	return root
}

func insert(t *testing.T, e *Engine, parentID string, side entity.Side, email string) *entity.Member {
	t.Helper()
	m, err := e.Insert(context.Background(), parentID, string(side), &entity.Member{
		Name:      email,
		Email:     email,
		Sensitive: entity.Sensitive{AccountNo: "acct-" + email, PANNo: "PAN-" + email},
	})
	require.NoError(t, err)
	return m
}

func mustFind(t *testing.T, repo repository.MemberRepository, id string) *entity.Member {
	t.Helper()
	m, err := repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return m
}

// assertSlotsConsistent checks that each child pointer of m resolves to a
// member whose parent is m and whose side matches the slot.
func assertSlotsConsistent(t *testing.T, repo repository.MemberRepository, id string) {
	t.Helper()
	m := mustFind(t, repo, id)
	for _, side := range []entity.Side{entity.SideLeft, entity.SideRight} {
		ref := m.ChildAt(side)
		if ref == nil {
			continue
		}
		child := mustFind(t, repo, *ref)
		require.NotNil(t, child.ParentID)
		assert.Equal(t, m.ID, *child.ParentID)
		assert.Equal(t, side, child.Side)
	}
}
