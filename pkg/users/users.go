// Package users manages terminal accounts on top of the dual-store
// router.
package users

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wurt83ow/poskeeper-client/pkg/appcontext"
	"github.com/wurt83ow/poskeeper-client/pkg/dualstore"
	"github.com/wurt83ow/poskeeper-client/pkg/encription"
	"github.com/wurt83ow/poskeeper-client/pkg/errs"
	"github.com/wurt83ow/poskeeper-client/pkg/models"
)

type Service struct {
	users *dualstore.Router[models.User]
	enc   *encription.Enc
	log   *logrus.Logger
}

func NewService(users *dualstore.Router[models.User], enc *encription.Enc, log *logrus.Logger) *Service {
	return &Service{users: users, enc: enc, log: log}
}

// Register creates a new account in the session tenant. Usernames are
// unique per tenant.
func (s *Service) Register(ctx context.Context, username, password, role string) (models.User, error) {
	tenantID, _ := appcontext.Session(ctx)
	if tenantID == "" {
		return models.User{}, errs.Authorization("no tenant in session")
	}
	if password == "" {
		return models.User{}, errs.Validation("password is required")
	}

	if _, exists, err := s.findByUsername(ctx, username); err != nil {
		return models.User{}, err
	} else if exists {
		return models.User{}, errs.Validation("username already taken")
	}

	hash, err := s.enc.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		ID:           models.NewID(),
		TenantID:     tenantID,
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	created, err := s.users.Create(ctx, user)
	if err != nil {
		return models.User{}, err
	}

	s.log.WithFields(logrus.Fields{"user_id": created.ID, "role": role}).Info("user registered")
	return created, nil
}

// Authenticate verifies a username/password pair and returns the
// account on success.
func (s *Service) Authenticate(ctx context.Context, username, password string) (models.User, error) {
	user, exists, err := s.findByUsername(ctx, username)
	if err != nil {
		return models.User{}, err
	}
	if !exists || !s.enc.CompareHashAndPassword(user.PasswordHash, password) {
		return models.User{}, errs.Authorization("invalid username or password")
	}
	if !user.Active {
		return models.User{}, errs.Authorization("account is deactivated")
	}
	return user, nil
}

// Deactivate disables an account. Users cannot deactivate themselves.
func (s *Service) Deactivate(ctx context.Context, id string) (models.User, error) {
	_, sessionUser := appcontext.Session(ctx)
	if id == sessionUser {
		return models.User{}, errs.Authorization("cannot deactivate own account")
	}

	user, found, err := s.users.GetByID(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	if !found {
		return models.User{}, errs.ErrNotFound
	}

	user.Active = false
	return s.users.Update(ctx, user)
}

// ChangeRole reassigns an account's role. Users cannot change their own
// role.
func (s *Service) ChangeRole(ctx context.Context, id, role string) (models.User, error) {
	_, sessionUser := appcontext.Session(ctx)
	if id == sessionUser {
		return models.User{}, errs.Authorization("cannot change own role")
	}

	user, found, err := s.users.GetByID(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	if !found {
		return models.User{}, errs.ErrNotFound
	}

	user.Role = role
	return s.users.Update(ctx, user)
}

// Delete removes an account. Users cannot delete themselves.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	tenantID, sessionUser := appcontext.Session(ctx)
	if id == sessionUser {
		return false, errs.Authorization("cannot delete own account")
	}
	return s.users.Delete(ctx, id, tenantID)
}

func (s *Service) findByUsername(ctx context.Context, username string) (models.User, bool, error) {
	users, err := s.users.List(ctx, func(u models.User) bool {
		return u.Username == username
	})
	if err != nil {
		return models.User{}, false, err
	}
	if len(users) == 0 {
		return models.User{}, false, nil
	}
	return users[0], true, nil
}
