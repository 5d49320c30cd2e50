package tree

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/referral-tree/internal/domain/entity"
	"github.com/oksasatya/referral-tree/internal/domain/repository"
	"github.com/oksasatya/referral-tree/pkg/apperror"
)

// Engine performs the structural writes of the tree: insert, delete, attach.
type Engine struct {
	store  *timedStore
	cipher FieldCipher
	logger *logrus.Logger
}

func NewEngine(repo repository.MemberRepository, c FieldCipher, callTimeout time.Duration, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{store: newTimedStore(repo, callTimeout), cipher: c, logger: logger}
}

func parseSide(s string) (entity.Side, error) {
	if strings.TrimSpace(s) == "" {
		return "", apperror.WithCode(apperror.KindValidation, "side_required", "side is required")
	}
	side, ok := entity.ParseSide(s)
	if !ok {
		return "", apperror.WithCode(apperror.KindValidation, "invalid_side", "side must be left or right")
	}
	return side, nil
}

func (e *Engine) ensureEmailFree(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return apperror.WithCode(apperror.KindValidation, "email_required", "email is required")
	}
	_, err := e.store.findByEmail(ctx, email)
	switch {
	case err == nil:
		return apperror.New(apperror.KindDuplicateEmail, "email already registered")
	case errors.Is(err, repository.ErrNotFound):
		return nil
	}
	return storeErr(err, "member")
}

// CreateRoot stores a member with no parent. It is how a tree is started.
func (e *Engine) CreateRoot(ctx context.Context, fields *entity.Member) (*entity.Member, error) {
	if err := e.ensureEmailFree(ctx, fields.Email); err != nil {
		return nil, err
	}
	stored := fields.Clone()
	stored.ParentID, stored.LeftChildID, stored.RightChildID = nil, nil, nil
	stored.Side = entity.SideNone
	if err := EncryptSensitive(e.cipher, &stored.Sensitive); err != nil {
		return nil, err
	}
	if err := e.store.create(ctx, stored); err != nil {
		return nil, storeErr(err, "member")
	}
	return withStoredIdentity(fields, stored), nil
}

// Insert creates a member in the empty side slot of parentID. The returned
// member carries plaintext sensitive fields; storage holds ciphertext.
func (e *Engine) Insert(ctx context.Context, parentID, sideName string, fields *entity.Member) (*entity.Member, error) {
	side, err := parseSide(sideName)
	if err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, apperror.Validation("member fields are required")
	}
	parent, err := e.store.findByID(ctx, parentID)
	if err != nil {
		return nil, storeErr(err, "parent")
	}
	if occupant := parent.ChildAt(side); occupant != nil {
		return nil, apperror.New(apperror.KindSlotOccupied, string(side)+" slot of parent is already occupied")
	}
	if err := e.ensureEmailFree(ctx, fields.Email); err != nil {
		return nil, err
	}

	stored := fields.Clone()
	stored.ID = ""
	stored.ParentID = entity.Ref(parent.ID)
	stored.LeftChildID, stored.RightChildID = nil, nil
	stored.Side = side
	if err := EncryptSensitive(e.cipher, &stored.Sensitive); err != nil {
		return nil, err
	}

	if e.store.linker != nil {
		if err := e.store.createLinked(ctx, stored, parent.ID, side); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return nil, apperror.New(apperror.KindSlotOccupied, string(side)+" slot of parent is already occupied")
			}
			return nil, storeErr(err, "parent")
		}
	} else {
		if err := e.store.create(ctx, stored); err != nil {
			return nil, storeErr(err, "member")
		}
		if _, linkErr := e.store.update(ctx, parent.ID, repository.SlotChange(side, nil, entity.Ref(stored.ID))); linkErr != nil {
			return nil, e.compensateInsert(ctx, stored.ID, parent.ID, side, linkErr)
		}
	}

	e.logger.WithFields(logrus.Fields{"member_id": stored.ID, "parent_id": parent.ID, "side": side}).Info("member inserted")
	return withStoredIdentity(fields, stored), nil
}

// compensateInsert removes a child whose parent link could not be written.
func (e *Engine) compensateInsert(ctx context.Context, childID, parentID string, side entity.Side, linkErr error) error {
	log := e.logger.WithFields(logrus.Fields{"member_id": childID, "parent_id": parentID, "side": side}).WithError(linkErr)
	compErr := e.store.delete(context.WithoutCancel(ctx), childID)
	if compErr == nil && errors.Is(linkErr, repository.ErrConflict) {
		log.Warn("slot taken concurrently; inserted child removed")
		return apperror.New(apperror.KindSlotOccupied, string(side)+" slot of parent is already occupied")
	}
	failure := &apperror.PartialInsertFailure{
		ChildID:     childID,
		ParentID:    parentID,
		Compensated: compErr == nil,
		LinkErr:     linkErr,
		CompErr:     compErr,
	}
	if compErr != nil {
		log.WithField("cleanup_error", compErr.Error()).Error("parent link failed and orphan child is still stored")
	} else {
		log.Error("parent link failed; inserted child removed")
	}
	return apperror.NewPartialInsert(failure)
}

// Delete detaches memberID from its parent and removes it. Its direct children
// become roots of their own subtrees (parent cleared, side none); deeper
// descendants keep their links.
func (e *Engine) Delete(ctx context.Context, memberID string) error {
	m, err := e.store.findByID(ctx, memberID)
	if err != nil {
		return storeErr(err, "member")
	}
	log := e.logger.WithField("member_id", m.ID)

	if m.ParentID != nil {
		if err := e.detachFromParent(ctx, m); err != nil {
			return err
		}
	}

	for _, side := range []entity.Side{entity.SideLeft, entity.SideRight} {
		childID := m.ChildAt(side)
		if childID == nil {
			continue
		}
		none := entity.SideNone
		_, err := e.store.update(ctx, *childID, repository.MemberPatch{
			Parent: &repository.RefChange{Expect: entity.Ref(m.ID), Set: nil},
			Side:   &none,
		})
		switch {
		case err == nil:
			log.WithField("child_id", *childID).Info("child promoted to root")
		case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrConflict):
			log.WithField("child_id", *childID).Warn("stale child reference skipped")
		default:
			return storeErr(err, "child")
		}
	}

	if err := e.store.delete(ctx, m.ID); err != nil {
		return storeErr(err, "member")
	}
	log.Info("member deleted")
	return nil
}

func (e *Engine) detachFromParent(ctx context.Context, m *entity.Member) error {
	log := e.logger.WithFields(logrus.Fields{"member_id": m.ID, "parent_id": *m.ParentID})
	parent, err := e.store.findByID(ctx, *m.ParentID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn("parent missing; nothing to detach")
		return nil
	}
	if err != nil {
		return storeErr(err, "parent")
	}
	side, ok := matchingSlot(parent, m)
	if !ok {
		log.Warn("parent does not reference member; no slot cleared")
		return nil
	}
	_, err = e.store.update(ctx, parent.ID, repository.SlotChange(side, entity.Ref(m.ID), nil))
	if errors.Is(err, repository.ErrConflict) {
		log.Warn("parent slot changed before detach; left untouched")
		return nil
	}
	return storeErr(err, "parent")
}

// matchingSlot picks the single parent slot to clear for m. The member's own
// side is preferred, so a parent that wrongly holds m in both slots only loses
// the one m claims.
func matchingSlot(parent, m *entity.Member) (entity.Side, bool) {
	order := []entity.Side{entity.SideLeft, entity.SideRight}
	if m.Side == entity.SideRight {
		order = []entity.Side{entity.SideRight, entity.SideLeft}
	}
	for _, side := range order {
		if ref := parent.ChildAt(side); ref != nil && *ref == m.ID {
			return side, true
		}
	}
	return "", false
}

// Attach links a parentless member into the empty side slot of parentID. It
// refuses to make a member its own ancestor.
func (e *Engine) Attach(ctx context.Context, memberID, parentID, sideName string, maxDepth int) (*entity.Member, error) {
	side, err := parseSide(sideName)
	if err != nil {
		return nil, err
	}
	if memberID == parentID {
		return nil, apperror.WithCode(apperror.KindValidation, "self_attach", "member cannot be its own parent")
	}
	m, err := e.store.findByID(ctx, memberID)
	if err != nil {
		return nil, storeErr(err, "member")
	}
	if m.ParentID != nil {
		return nil, apperror.WithCode(apperror.KindValidation, "member_has_parent", "member is already attached")
	}
	parent, err := e.store.findByID(ctx, parentID)
	if err != nil {
		return nil, storeErr(err, "parent")
	}
	if parent.ChildAt(side) != nil {
		return nil, apperror.New(apperror.KindSlotOccupied, string(side)+" slot of parent is already occupied")
	}
	if err := e.ensureNotAncestor(ctx, memberID, parent, maxDepth); err != nil {
		return nil, err
	}

	attached, err := e.store.update(ctx, m.ID, repository.MemberPatch{
		Parent: &repository.RefChange{Expect: nil, Set: entity.Ref(parent.ID)},
		Side:   &side,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperror.WithCode(apperror.KindValidation, "member_has_parent", "member is already attached")
		}
		return nil, storeErr(err, "member")
	}
	if _, linkErr := e.store.update(ctx, parent.ID, repository.SlotChange(side, nil, entity.Ref(m.ID))); linkErr != nil {
		none := entity.SideNone
		_, revertErr := e.store.update(context.WithoutCancel(ctx), m.ID, repository.MemberPatch{
			Parent: &repository.RefChange{Expect: entity.Ref(parent.ID), Set: nil},
			Side:   &none,
		})
		if revertErr != nil {
			e.logger.WithError(revertErr).WithField("member_id", m.ID).Error("attach revert failed")
		}
		if revertErr == nil && errors.Is(linkErr, repository.ErrConflict) {
			return nil, apperror.New(apperror.KindSlotOccupied, string(side)+" slot of parent is already occupied")
		}
		return nil, apperror.Internal("attach link failed", linkErr)
	}
	e.logger.WithFields(logrus.Fields{"member_id": m.ID, "parent_id": parent.ID, "side": side}).Info("member attached")
	return attached, nil
}

// ensureNotAncestor walks parent pointers upward from start and fails when
// memberID is found or the chain loops.
func (e *Engine) ensureNotAncestor(ctx context.Context, memberID string, start *entity.Member, maxDepth int) error {
	seen := map[string]struct{}{}
	cur := start
	for steps := 0; cur != nil; steps++ {
		if cur.ID == memberID {
			return apperror.New(apperror.KindCyclicTree, "attach would create a cycle")
		}
		if _, dup := seen[cur.ID]; dup {
			return apperror.New(apperror.KindCyclicTree, "ancestor chain of parent loops")
		}
		seen[cur.ID] = struct{}{}
		if maxDepth > 0 && steps > maxDepth {
			return apperror.WithCode(apperror.KindValidation, "tree_too_deep", "ancestor chain exceeds maximum depth")
		}
		if cur.ParentID == nil {
			return nil
		}
		next, err := e.store.findByID(ctx, *cur.ParentID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return storeErr(err, "ancestor")
		}
		cur = next
	}
	return nil
}

// Update applies a non-structural patch. Sensitive values in patch are
// plaintext and are encrypted here.
func (e *Engine) Update(ctx context.Context, memberID string, patch repository.MemberPatch) (*entity.Member, error) {
	if patch.Parent != nil || patch.LeftChild != nil || patch.RightChild != nil || patch.Side != nil {
		return nil, apperror.WithCode(apperror.KindValidation, "structural_update", "tree position cannot be changed by update")
	}
	if patch.Email != nil {
		if strings.TrimSpace(*patch.Email) == "" {
			return nil, apperror.WithCode(apperror.KindValidation, "email_required", "email cannot be empty")
		}
		owner, err := e.store.findByEmail(ctx, *patch.Email)
		if err == nil && owner.ID != memberID {
			return nil, apperror.New(apperror.KindDuplicateEmail, "email already registered")
		}
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, storeErr(err, "member")
		}
	}
	for _, f := range []**string{&patch.AccountNo, &patch.IFSCCode, &patch.MICRNo, &patch.PANNo, &patch.AadhaarNo} {
		if *f == nil {
			continue
		}
		ct, err := e.cipher.Encrypt(**f)
		if err != nil {
			return nil, apperror.Internal("encrypt sensitive field", err)
		}
		*f = &ct
	}
	updated, err := e.store.update(ctx, memberID, patch)
	if err != nil {
		return nil, storeErr(err, "member")
	}
	return updated, nil
}

func withStoredIdentity(fields, stored *entity.Member) *entity.Member {
	out := fields.Clone()
	out.ID = stored.ID
	out.ParentID = stored.ParentID
	out.LeftChildID, out.RightChildID = nil, nil
	out.Side = stored.Side
	out.CreatedAt = stored.CreatedAt
	out.UpdatedAt = stored.UpdatedAt
	return out
}
