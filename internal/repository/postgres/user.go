package postgres

import (
	"context"

	"github.com/jwalitptl/clinic-portal/internal/model"
	"github.com/jwalitptl/clinic-portal/internal/repository"
)

const userColumns = `id, email, password_hash, name, phone, role, specialization, created_at`

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (email, password_hash, name, phone, role, specialization, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := r.db.QueryRowxContext(ctx, query,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Phone,
		user.Role,
		user.Specialization,
		user.CreatedAt,
	).Scan(&user.ID)
	return translateError(err, "create user")
}

func (r *userRepository) Get(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, translateError(err, "get user")
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	if err != nil {
		return nil, translateError(err, "get user by email")
	}
	return &user, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	query := `
		UPDATE users
		SET email = $1, password_hash = $2, name = $3, phone = $4, specialization = $5
		WHERE id = $6
	`
	result, err := r.db.ExecContext(ctx, query,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Phone,
		user.Specialization,
		user.ID,
	)
	if err != nil {
		return translateError(err, "update user")
	}
	return checkAffected(result)
}

func (r *userRepository) List(ctx context.Context, role model.Role) ([]*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ($1 = '' OR role = $1) ORDER BY id`

	users := make([]*model.User, 0)
	if err := r.db.SelectContext(ctx, &users, query, string(role)); err != nil {
		return nil, translateError(err, "list users")
	}
	return users, nil
}
