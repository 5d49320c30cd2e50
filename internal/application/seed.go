package application

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/referral-tree/internal/application/tree"
	"github.com/oksasatya/referral-tree/internal/domain/entity"
	"github.com/oksasatya/referral-tree/pkg/apperror"
	"github.com/oksasatya/referral-tree/pkg/helpers"
)

// EnsureRootAdmin creates the admin root of a tree unless the email is already taken.
// It reports whether a member was created.
func EnsureRootAdmin(ctx context.Context, engine *tree.Engine, logger *logrus.Logger, email, name, password string) (*entity.Member, bool, error) {
	email = strings.TrimSpace(email)
	if email == "" || len(password) < 8 {
		return nil, false, apperror.Validation("seed admin needs an email and a password of at least 8 characters")
	}
	hash, err := helpers.HashPassword(password)
	if err != nil {
		return nil, false, apperror.Internal("hash password", err)
	}
	root, err := engine.CreateRoot(ctx, &entity.Member{Name: name, Email: email, PasswordHash: hash, IsAdmin: true})
	if errors.Is(err, apperror.ErrDuplicateEmail) {
		logger.WithField("email", email).Info("root admin already exists")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	root.PasswordHash = ""
	logger.WithFields(logrus.Fields{"member_id": root.ID, "email": email}).Info("root admin created")
	return root, true, nil
}
