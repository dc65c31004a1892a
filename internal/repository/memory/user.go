package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jwalitptl/clinic-portal/internal/model"
	"github.com/jwalitptl/clinic-portal/internal/repository"
)

type userRepository struct {
	mu      sync.RWMutex
	users   map[int64]*model.User
	byEmail map[string]int64
	seq     sequence
}

func NewUserRepository() repository.UserRepository {
	return &userRepository{
		users:   make(map[int64]*model.User),
		byEmail: make(map[string]int64),
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := emailKey(user.Email)
	if _, taken := r.byEmail[key]; taken {
		return fmt.Errorf("email %s: %w", user.Email, repository.ErrConflict)
	}

	user.ID = r.seq.next()
	r.users[user.ID] = user.Clone()
	r.byEmail[key] = user.ID
	return nil
}

func (r *userRepository) Get(ctx context.Context, id int64) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return user.Clone(), nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[emailKey(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.users[id].Clone(), nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[user.ID]
	if !ok {
		return repository.ErrNotFound
	}

	oldKey, newKey := emailKey(existing.Email), emailKey(user.Email)
	if oldKey != newKey {
		if _, taken := r.byEmail[newKey]; taken {
			return fmt.Errorf("email %s: %w", user.Email, repository.ErrConflict)
		}
		delete(r.byEmail, oldKey)
		r.byEmail[newKey] = user.ID
	}

	r.users[user.ID] = user.Clone()
	return nil
}

// List returns users ordered by id. An empty role matches every user.
func (r *userRepository) List(ctx context.Context, role model.Role) ([]*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]*model.User, 0, len(r.users))
	for _, u := range r.users {
		if role != "" && u.Role != role {
			continue
		}
		users = append(users, u.Clone())
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}
