package cipher

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/referral-tree/pkg/apperror"
)

func newTestCipher(t *testing.T, secret string) *FieldCipher {
	t.Helper()
	c, err := New(secret)
	require.NoError(t, err)
	return c
}

func TestRoundTrip(t *testing.T) {
	c := newTestCipher(t, "test-secret")
	values := []string{
		"",
		"1234567890",
		"SBIN0001234",
		"ABCDE1234F",
		"नमस्ते दुनिया",
		"emoji 🌳 tree",
	}
	for _, v := range values {
		ct, err := c.Encrypt(v)
		require.NoError(t, err)
		assert.NotEqual(t, v, ct)

		pt, err := c.Decrypt(ct)
		require.NoError(t, err)
		assert.Equal(t, v, pt)
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	c := newTestCipher(t, "test-secret")
	a, err := c.Encrypt("same")
	require.NoError(t, err)
	b, err := c.Encrypt("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecryptFailures(t *testing.T) {
	c := newTestCipher(t, "test-secret")
	good, err := c.Encrypt("account-42")
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(good)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	tampered := base64.RawURLEncoding.EncodeToString(raw)

	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"not base64", "***"},
		{"too short", base64.RawURLEncoding.EncodeToString([]byte("short"))},
		{"tampered", tampered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decrypt(tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrDecryption))
		})
	}
}

func TestDecryptWithOtherKeyFails(t *testing.T) {
	a := newTestCipher(t, "key-a")
	b := newTestCipher(t, "key-b")

	ct, err := a.Encrypt("secret")
	require.NoError(t, err)
	_, err = b.Decrypt(ct)
	assert.True(t, errors.Is(err, apperror.ErrDecryption))
}

func TestNewRejectsEmptySecret(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, ErrEmptySecret)
}
