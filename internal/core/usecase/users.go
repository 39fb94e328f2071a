package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
	"github.com/kirillkom/collateral-appraisal/internal/core/ports"
)

type UserDirectoryUseCase struct {
	users ports.UserRepository
}

func NewUserDirectoryUseCase(users ports.UserRepository) *UserDirectoryUseCase {
	return &UserDirectoryUseCase{users: users}
}

// ListUsers returns users with the given role, or every user when role is empty.
func (uc *UserDirectoryUseCase) ListUsers(ctx context.Context, role domain.Role) ([]domain.User, error) {
	roles := []domain.Role{role}
	if role == "" {
		roles = []domain.Role{domain.RoleAppraiser, domain.RoleSupervisor, domain.RoleAdmin}
	} else if !role.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list users", fmt.Errorf("unknown role %q", role))
	}

	out := make([]domain.User, 0)
	for _, r := range roles {
		users, err := uc.users.ListByRole(ctx, r)
		if err != nil {
			return nil, fmt.Errorf("list users by role: %w", err)
		}
		out = append(out, users...)
	}
	return out, nil
}
