package services

import (
	"context"
	"errors"

	"github.com/nutriplan-app/apiserver/types"
	"go.uber.org/zap"
)

var ErrInvalidRole = errors.New("invalid role")

// UserService encapsulates the admin-facing user operations.
type UserService struct {
	repo   UserRepository
	audit  AuditRecorder
	logger *zap.SugaredLogger
}

func NewUserService(repo UserRepository, audit AuditRecorder, logger *zap.SugaredLogger) *UserService {
	return &UserService{repo: repo, audit: audit, logger: logger}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) List(ctx context.Context, offset, limit int) ([]types.User, int, error) {
	return s.repo.List(ctx, offset, limit)
}

// UpdateRole changes a user's role. The role set is closed.
func (s *UserService) UpdateRole(ctx context.Context, id int, role string, meta Meta) (types.User, error) {
	if !types.ValidRole(role) {
		return types.User{}, ErrInvalidRole
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	previous := user.Role
	user.Role = role
	user, err = s.repo.Update(ctx, user)
	if err != nil {
		return types.User{}, err
	}

	if s.audit != nil {
		err := s.audit.Record(ctx, types.AuditEvent{
			EventType: types.AuditRoleChange,
			UserID:    user.ID,
			IPAddress: meta.IP,
			UserAgent: meta.UserAgent,
			Details:   previous + " -> " + role,
		})
		if err != nil {
			s.logger.Errorw("failed to record audit event", "event", types.AuditRoleChange, "err", err)
		}
	}
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}
