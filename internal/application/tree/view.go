package tree

import (
	"github.com/oksasatya/referral-tree/internal/domain/entity"
	"github.com/oksasatya/referral-tree/pkg/apperror"
)

// EncryptSensitive replaces every sensitive value in s with its ciphertext.
func EncryptSensitive(c FieldCipher, s *entity.Sensitive) error {
	for _, f := range s.Fields() {
		ct, err := c.Encrypt(*f)
		if err != nil {
			return apperror.Internal("encrypt sensitive field", err)
		}
		*f = ct
	}
	return nil
}

// DecryptMemberView returns a copy of m with plaintext sensitive fields. One
// undecryptable field fails the whole view; m itself is never modified.
func DecryptMemberView(c FieldCipher, m *entity.Member) (*entity.Member, error) {
	if m == nil {
		return nil, apperror.NotFound("member not found")
	}
	view := m.Clone()
	for _, f := range view.Sensitive.Fields() {
		pt, err := c.Decrypt(*f)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindDecryption, "member "+m.ID+" has unreadable sensitive data", err)
		}
		*f = pt
	}
	return view, nil
}
