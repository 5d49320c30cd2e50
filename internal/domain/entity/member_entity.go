package entity

import (
	"time"
)

// Side is the slot a member occupies under its parent.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
	SideNone  Side = "none"
)

// ParseSide accepts only "left" or "right"; anything else, including "", is rejected.
func ParseSide(s string) (Side, bool) {
	switch Side(s) {
	case SideLeft, SideRight:
		return Side(s), true
	}
	return "", false
}

// Valid reports whether s is one of the three known values.
func (s Side) Valid() bool {
	return s == SideLeft || s == SideRight || s == SideNone
}

// Member is the aggregate root of the referral tree.
//
// The five Sensitive fields hold ciphertext whenever the value comes from or goes
// to a repository; they hold plaintext only in views built for a caller.
// PasswordHash is a bcrypt hash and is never serialized.
type Member struct {
	ID           string  `json:"id"`
	ParentID     *string `json:"parent_id"`
	LeftChildID  *string `json:"left_child_id"`
	RightChildID *string `json:"right_child_id"`
	Side         Side    `json:"side"`
	AddedBy      *string `json:"added_by,omitempty"`

	Name            string `json:"name"`
	FatherName      string `json:"father_name"`
	DOB             string `json:"dob"`
	Gender          string `json:"gender"`
	MaritalStatus   string `json:"marital_status"`
	Phone           string `json:"phone"`
	Email           string `json:"email"`
	NomineeName     string `json:"nominee_name"`
	NomineeRelation string `json:"nominee_relation"`
	NomineePhone    string `json:"nominee_phone"`
	Address         string `json:"address"`
	PinCode         string `json:"pin_code"`
	BankName        string `json:"bank_name"`
	BranchAddress   string `json:"branch_address"`
	AccountType     string `json:"account_type"`
	SponsorName     string `json:"sponsor_name"`
	SponsorID       string `json:"sponsor_id"`

	Sensitive

	PasswordHash string `json:"-"`
	IsAdmin      bool   `json:"is_admin"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Sensitive groups the attributes stored only as ciphertext.
type Sensitive struct {
	AccountNo string `json:"account_no"`
	IFSCCode  string `json:"ifsc_code"`
	MICRNo    string `json:"micr_no"`
	PANNo     string `json:"pan_no"`
	AadhaarNo string `json:"aadhaar_no"`
}

// Fields returns pointers to every sensitive value so callers can transform them in place.
func (s *Sensitive) Fields() []*string {
	return []*string{&s.AccountNo, &s.IFSCCode, &s.MICRNo, &s.PANNo, &s.AadhaarNo}
}

// Clone returns a deep copy; the pointer fields are not shared.
func (m *Member) Clone() *Member {
	if m == nil {
		return nil
	}
	c := *m
	c.ParentID = cloneRef(m.ParentID)
	c.LeftChildID = cloneRef(m.LeftChildID)
	c.RightChildID = cloneRef(m.RightChildID)
	c.AddedBy = cloneRef(m.AddedBy)
	return &c
}

// ChildAt returns the id stored in the given slot, or nil.
func (m *Member) ChildAt(side Side) *string {
	switch side {
	case SideLeft:
		return m.LeftChildID
	case SideRight:
		return m.RightChildID
	}
	return nil
}

// IsRoot reports whether the member has no parent.
func (m *Member) IsRoot() bool { return m.ParentID == nil }

func cloneRef(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ref returns a pointer to a copy of s.
func Ref(s string) *string { return &s }

// RefEqual compares two nullable references by value.
func RefEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
