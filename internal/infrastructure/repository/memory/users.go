package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
)

type UserRepository struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

func NewUserRepository(seed ...domain.User) *UserRepository {
	r := &UserRepository{users: make(map[string]domain.User, len(seed))}
	for _, u := range seed {
		r.users[u.ID] = u
	}
	return r
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get user", fmt.Errorf("user_id=%s", id))
	}
	return &u, nil
}

func (r *UserRepository) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Username, username) {
			return &u, nil
		}
	}
	return nil, domain.WrapError(domain.ErrNotFound, "find user", fmt.Errorf("username=%s", username))
}

func (r *UserRepository) ListByRole(_ context.Context, role domain.Role) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.User, 0)
	for _, u := range r.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *UserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == user.ID || strings.EqualFold(u.Username, user.Username) {
			return domain.WrapError(domain.ErrConflict, "create user", fmt.Errorf("username=%s", user.Username))
		}
	}
	r.users[user.ID] = *user
	return nil
}
