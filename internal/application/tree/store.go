// Package tree holds the structure-preserving mutation and traversal logic of
// the referral tree. It talks to storage only through repository.MemberRepository.
package tree

import (
	"context"
	"errors"
	"time"

	"github.com/oksasatya/referral-tree/internal/domain/entity"
	"github.com/oksasatya/referral-tree/internal/domain/repository"
	"github.com/oksasatya/referral-tree/pkg/apperror"
)

// FieldCipher encrypts and decrypts single sensitive values.
type FieldCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// timedStore bounds every repository round-trip with its own deadline.
type timedStore struct {
	repo    repository.MemberRepository
	linker  repository.LinkedCreator
	timeout time.Duration
}

func newTimedStore(repo repository.MemberRepository, timeout time.Duration) *timedStore {
	s := &timedStore{repo: repo, timeout: timeout}
	if l, ok := repo.(repository.LinkedCreator); ok {
		s.linker = l
	}
	return s
}

func (s *timedStore) ctx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *timedStore) findByID(ctx context.Context, id string) (*entity.Member, error) {
	c, cancel := s.ctx(ctx)
	defer cancel()
	return s.repo.FindByID(c, id)
}

func (s *timedStore) findByEmail(ctx context.Context, email string) (*entity.Member, error) {
	c, cancel := s.ctx(ctx)
	defer cancel()
	return s.repo.FindByEmail(c, email)
}

func (s *timedStore) create(ctx context.Context, m *entity.Member) error {
	c, cancel := s.ctx(ctx)
	defer cancel()
	return s.repo.Create(c, m)
}

func (s *timedStore) createLinked(ctx context.Context, m *entity.Member, parentID string, side entity.Side) error {
	c, cancel := s.ctx(ctx)
	defer cancel()
	return s.linker.CreateLinked(c, m, parentID, side)
}

func (s *timedStore) update(ctx context.Context, id string, p repository.MemberPatch) (*entity.Member, error) {
	c, cancel := s.ctx(ctx)
	defer cancel()
	return s.repo.Update(c, id, p)
}

func (s *timedStore) delete(ctx context.Context, id string) error {
	c, cancel := s.ctx(ctx)
	defer cancel()
	return s.repo.Delete(c, id)
}

// storeErr maps repository sentinels onto typed errors; what names the record.
func storeErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperror.NotFound(what + " not found")
	case errors.Is(err, repository.ErrDuplicateEmail):
		return apperror.New(apperror.KindDuplicateEmail, "email already registered")
	case errors.Is(err, repository.ErrConflict):
		return apperror.Wrap(apperror.KindSlotOccupied, what+" changed concurrently", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperror.Wrap(apperror.KindInternal, "repository call timed out", err)
	}
	return apperror.Internal("repository failure", err)
}
