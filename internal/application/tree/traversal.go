package tree

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/referral-tree/internal/domain/entity"
	"github.com/oksasatya/referral-tree/internal/domain/repository"
	"github.com/oksasatya/referral-tree/pkg/apperror"
)

const DefaultMaxDepth = 256

// Traverser materializes read views of the tree. One repository round-trip is
// issued per visited node; the result is not an atomic snapshot.
type Traverser struct {
	store    *timedStore
	cipher   FieldCipher
	maxDepth int
	logger   *logrus.Logger
}

func NewTraverser(repo repository.MemberRepository, c FieldCipher, callTimeout time.Duration, maxDepth int, logger *logrus.Logger) *Traverser {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Traverser{store: newTimedStore(repo, callTimeout), cipher: c, maxDepth: maxDepth, logger: logger}
}

// MaxDepth is the deepest level BuildTree will expand below its root.
func (t *Traverser) MaxDepth() int { return t.maxDepth }

func nodeOf(m *entity.Member) *entity.TreeNode {
	return &entity.TreeNode{
		ID:       m.ID,
		Name:     m.Name,
		Email:    m.Email,
		IsAdmin:  m.IsAdmin,
		Side:     m.Side,
		Children: []*entity.TreeNode{},
	}
}

type frame struct {
	node   *entity.TreeNode
	member *entity.Member
	depth  int
}

// BuildTree returns the subtree rooted at rootID with children ordered left
// then right. Child references that no longer resolve are pruned. A member
// reached twice fails with cyclic_tree.
func (t *Traverser) BuildTree(ctx context.Context, rootID string) (*entity.TreeNode, error) {
	root, err := t.store.findByID(ctx, rootID)
	if err != nil {
		return nil, storeErr(err, "member")
	}
	rootNode := nodeOf(root)
	visited := map[string]struct{}{root.ID: {}}
	stack := []frame{{node: rootNode, member: root}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var next []frame
		for _, side := range []entity.Side{entity.SideLeft, entity.SideRight} {
			childID := f.member.ChildAt(side)
			if childID == nil {
				continue
			}
			if f.depth >= t.maxDepth {
				return nil, apperror.WithCode(apperror.KindValidation, "tree_too_deep", "subtree exceeds maximum depth")
			}
			if _, seen := visited[*childID]; seen {
				return nil, apperror.New(apperror.KindCyclicTree, "member "+*childID+" reached twice while building tree")
			}
			child, err := t.store.findByID(ctx, *childID)
			if errors.Is(err, repository.ErrNotFound) {
				t.logger.WithFields(logrus.Fields{"parent_id": f.member.ID, "child_id": *childID}).Debug("dangling child reference pruned")
				continue
			}
			if err != nil {
				return nil, storeErr(err, "member")
			}
			visited[child.ID] = struct{}{}
			cn := nodeOf(child)
			cn.Side = side
			f.node.Children = append(f.node.Children, cn)
			next = append(next, frame{node: cn, member: child, depth: f.depth + 1})
		}
		// Push right first so the left subtree is expanded first.
		for i := len(next) - 1; i >= 0; i-- {
			stack = append(stack, next[i])
		}
	}
	return rootNode, nil
}

// BuildChildrenView returns the decrypted direct children of memberID, left first.
// Absent children are omitted; any decryption failure fails the call.
func (t *Traverser) BuildChildrenView(ctx context.Context, memberID string) ([]*entity.Member, error) {
	m, err := t.store.findByID(ctx, memberID)
	if err != nil {
		return nil, storeErr(err, "member")
	}
	children := make([]*entity.Member, 0, 2)
	for _, side := range []entity.Side{entity.SideLeft, entity.SideRight} {
		childID := m.ChildAt(side)
		if childID == nil {
			continue
		}
		child, err := t.store.findByID(ctx, *childID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, storeErr(err, "member")
		}
		view, err := DecryptMemberView(t.cipher, child)
		if err != nil {
			return nil, err
		}
		children = append(children, view)
	}
	return children, nil
}

// MemberView loads one member and decrypts it.
func (t *Traverser) MemberView(ctx context.Context, memberID string) (*entity.Member, error) {
	m, err := t.store.findByID(ctx, memberID)
	if err != nil {
		return nil, storeErr(err, "member")
	}
	return DecryptMemberView(t.cipher, m)
}

// Locate loads the stored member without decrypting it. Callers use it for
// structure and authorization, never to render sensitive fields.
func (t *Traverser) Locate(ctx context.Context, memberID string) (*entity.Member, error) {
	m, err := t.store.findByID(ctx, memberID)
	if err != nil {
		return nil, storeErr(err, "member")
	}
	return m, nil
}

// Decrypt builds the caller view of a member already loaded from storage.
func (t *Traverser) Decrypt(m *entity.Member) (*entity.Member, error) {
	return DecryptMemberView(t.cipher, m)
}
