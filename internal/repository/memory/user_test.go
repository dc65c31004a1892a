package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-portal/internal/model"
	"github.com/jwalitptl/clinic-portal/internal/repository"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()

	doctor := &model.User{Email: "doc@demo.com", Name: "Doc", Role: model.RoleDoctor}
	patient := &model.User{Email: "pat@demo.com", Name: "Pat", Role: model.RolePatient}
	require.NoError(t, repo.Create(ctx, doctor))
	require.NoError(t, repo.Create(ctx, patient))
	assert.Equal(t, int64(1), doctor.ID)
	assert.Equal(t, int64(2), patient.ID)

	t.Run("email is unique case-insensitively", func(t *testing.T) {
		err := repo.Create(ctx, &model.User{Email: "DOC@demo.com", Role: model.RolePatient})
		assert.ErrorIs(t, err, repository.ErrConflict)
	})

	t.Run("get by email", func(t *testing.T) {
		got, err := repo.GetByEmail(ctx, "Pat@Demo.com")
		require.NoError(t, err)
		assert.Equal(t, patient.ID, got.ID)

		_, err = repo.GetByEmail(ctx, "nobody@demo.com")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("list by role", func(t *testing.T) {
		doctors, err := repo.List(ctx, model.RoleDoctor)
		require.NoError(t, err)
		require.Len(t, doctors, 1)
		assert.Equal(t, "Doc", doctors[0].Name)

		all, err := repo.List(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("update re-indexes email", func(t *testing.T) {
		updated := patient.Clone()
		updated.Email = "patient@demo.com"
		require.NoError(t, repo.Update(ctx, updated))

		_, err := repo.GetByEmail(ctx, "pat@demo.com")
		assert.ErrorIs(t, err, repository.ErrNotFound)
		got, err := repo.GetByEmail(ctx, "patient@demo.com")
		require.NoError(t, err)
		assert.Equal(t, patient.ID, got.ID)

		clash := got.Clone()
		clash.Email = "doc@demo.com"
		assert.ErrorIs(t, repo.Update(ctx, clash), repository.ErrConflict)
	})

	t.Run("update missing user", func(t *testing.T) {
		err := repo.Update(ctx, &model.User{ID: 99, Email: "ghost@demo.com"})
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}
