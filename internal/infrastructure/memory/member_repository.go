// Package memory is an in-process MemberRepository used by tests and the
// local "memory" storage driver.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oksasatya/referral-tree/internal/domain/entity"
	"github.com/oksasatya/referral-tree/internal/domain/repository"
)

type MemberRepository struct {
	mu      sync.RWMutex
	byID    map[string]*entity.Member
	byEmail map[string]string
}

func NewMemberRepository() *MemberRepository {
	return &MemberRepository{
		byID:    make(map[string]*entity.Member),
		byEmail: make(map[string]string),
	}
}

func emailKey(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

func (r *MemberRepository) FindByID(ctx context.Context, id string) (*entity.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return m.Clone(), nil
}

func (r *MemberRepository) FindByEmail(ctx context.Context, email string) (*entity.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[emailKey(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.byID[id].Clone(), nil
}

func (r *MemberRepository) Create(ctx context.Context, m *entity.Member) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := emailKey(m.Email)
	if _, exists := r.byEmail[key]; exists {
		return repository.ErrDuplicateEmail
	}
	now := time.Now().UTC()
	m.ID = uuid.NewString()
	m.CreatedAt = now
	m.UpdatedAt = now
	if m.Side == "" {
		m.Side = entity.SideNone
	}
	r.byID[m.ID] = m.Clone()
	r.byEmail[key] = m.ID
	return nil
}

func (r *MemberRepository) Update(ctx context.Context, id string, patch repository.MemberPatch) (*entity.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if err := repository.CheckGuards(cur, patch); err != nil {
		return nil, err
	}
	if patch.Email != nil {
		newKey := emailKey(*patch.Email)
		if owner, exists := r.byEmail[newKey]; exists && owner != id {
			return nil, repository.ErrDuplicateEmail
		}
	}
	next := cur.Clone()
	repository.Apply(next, patch)
	next.UpdatedAt = time.Now().UTC()
	if patch.Email != nil {
		delete(r.byEmail, emailKey(cur.Email))
		r.byEmail[emailKey(next.Email)] = id
	}
	r.byID[id] = next
	return next.Clone(), nil
}

func (r *MemberRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(r.byEmail, emailKey(m.Email))
	delete(r.byID, id)
	return nil
}

// Put stores m as-is, bypassing every check. Tests use it to build corrupt trees.
func (r *MemberRepository) Put(m *entity.Member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[m.ID] = m.Clone()
	r.byEmail[emailKey(m.Email)] = m.ID
}

// Len returns the number of stored members.
func (r *MemberRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

var _ repository.MemberRepository = (*MemberRepository)(nil)
