package repository

import "github.com/oksasatya/referral-tree/internal/domain/entity"

// CheckGuards reports ErrConflict when any RefChange guard in p does not match m.
func CheckGuards(m *entity.Member, p MemberPatch) error {
	guards := []struct {
		change  *RefChange
		current *string
	}{
		{p.Parent, m.ParentID},
		{p.LeftChild, m.LeftChildID},
		{p.RightChild, m.RightChildID},
	}
	for _, g := range guards {
		if g.change != nil && !entity.RefEqual(g.change.Expect, g.current) {
			return ErrConflict
		}
	}
	return nil
}

// Apply writes the non-nil fields of p onto m. Guards are not checked.
func Apply(m *entity.Member, p MemberPatch) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&m.Name, p.Name)
	set(&m.FatherName, p.FatherName)
	set(&m.DOB, p.DOB)
	set(&m.Gender, p.Gender)
	set(&m.MaritalStatus, p.MaritalStatus)
	set(&m.Phone, p.Phone)
	set(&m.Email, p.Email)
	set(&m.NomineeName, p.NomineeName)
	set(&m.NomineeRelation, p.NomineeRelation)
	set(&m.NomineePhone, p.NomineePhone)
	set(&m.Address, p.Address)
	set(&m.PinCode, p.PinCode)
	set(&m.BankName, p.BankName)
	set(&m.BranchAddress, p.BranchAddress)
	set(&m.AccountType, p.AccountType)
	set(&m.SponsorName, p.SponsorName)
	set(&m.SponsorID, p.SponsorID)
	set(&m.AccountNo, p.AccountNo)
	set(&m.IFSCCode, p.IFSCCode)
	set(&m.MICRNo, p.MICRNo)
	set(&m.PANNo, p.PANNo)
	set(&m.AadhaarNo, p.AadhaarNo)
	set(&m.PasswordHash, p.PasswordHash)
	if p.IsAdmin != nil {
		m.IsAdmin = *p.IsAdmin
	}
	if p.Side != nil {
		m.Side = *p.Side
	}
	if p.Parent != nil {
		m.ParentID = cloneRef(p.Parent.Set)
	}
	if p.LeftChild != nil {
		m.LeftChildID = cloneRef(p.LeftChild.Set)
	}
	if p.RightChild != nil {
		m.RightChildID = cloneRef(p.RightChild.Set)
	}
}

func cloneRef(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
