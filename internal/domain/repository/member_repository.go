package repository

import (
	"context"
	"errors"

	"github.com/oksasatya/referral-tree/internal/domain/entity"
)

var (
	ErrNotFound       = errors.New("member not found")
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrConflict is returned by Update when a RefChange guard does not match the stored value.
	ErrConflict = errors.New("reference changed concurrently")
)

// RefChange is a guarded write of a nullable reference column: the write only
// applies when the stored value equals Expect (nil meaning NULL).
type RefChange struct {
	Expect *string
	Set    *string
}

// MemberPatch lists the columns to update; nil fields are left untouched.
// Sensitive fields must already be ciphertext.
type MemberPatch struct {
	Name            *string
	FatherName      *string
	DOB             *string
	Gender          *string
	MaritalStatus   *string
	Phone           *string
	Email           *string
	NomineeName     *string
	NomineeRelation *string
	NomineePhone    *string
	Address         *string
	PinCode         *string
	BankName        *string
	BranchAddress   *string
	AccountType     *string
	SponsorName     *string
	SponsorID       *string

	AccountNo *string
	IFSCCode  *string
	MICRNo    *string
	PANNo     *string
	AadhaarNo *string

	PasswordHash *string
	IsAdmin      *bool

	Side       *entity.Side
	Parent     *RefChange
	LeftChild  *RefChange
	RightChild *RefChange
}

// SlotChange builds the patch touching only the given side's child pointer.
func SlotChange(side entity.Side, expect, set *string) MemberPatch {
	change := &RefChange{Expect: expect, Set: set}
	if side == entity.SideLeft {
		return MemberPatch{LeftChild: change}
	}
	return MemberPatch{RightChild: change}
}

// MemberRepository is the durable store of members. Every method is atomic for
// a single record only.
type MemberRepository interface {
	FindByID(ctx context.Context, id string) (*entity.Member, error)
	FindByEmail(ctx context.Context, email string) (*entity.Member, error)
	// Create assigns ID and timestamps on m.
	Create(ctx context.Context, m *entity.Member) error
	Update(ctx context.Context, id string, patch MemberPatch) (*entity.Member, error)
	Delete(ctx context.Context, id string) error
}

// LinkedCreator is implemented by stores that can create a child and set the
// parent's slot in one transaction.
type LinkedCreator interface {
	CreateLinked(ctx context.Context, child *entity.Member, parentID string, side entity.Side) error
}
