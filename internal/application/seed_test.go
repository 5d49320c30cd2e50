package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/referral-tree/internal/application/tree"
	"github.com/oksasatya/referral-tree/internal/infrastructure/memory"
	"github.com/oksasatya/referral-tree/pkg/apperror"
	"github.com/oksasatya/referral-tree/pkg/cipher"
	"github.com/oksasatya/referral-tree/pkg/helpers"
)

func TestEnsureRootAdmin(t *testing.T) {
	ctx := context.Background()
	c, err := cipher.New("seed-test-secret")
	require.NoError(t, err)
	repo := memory.NewMemberRepository()
	engine := tree.NewEngine(repo, c, time.Second, nullLogger())

	root, created, err := EnsureRootAdmin(ctx, engine, nullLogger(), "admin@example.com", "Admin", "password123")
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, root.IsAdmin)
	assert.Nil(t, root.ParentID)
	assert.Empty(t, root.PasswordHash)

	stored, err := repo.FindByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.True(t, helpers.CompareHashAndPassword(stored.PasswordHash, "password123"))

	_, created, err = EnsureRootAdmin(ctx, engine, nullLogger(), "ADMIN@example.com", "Admin", "password123")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, repo.Len())

	_, _, err = EnsureRootAdmin(ctx, engine, nullLogger(), "x@example.com", "X", "short")
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}
