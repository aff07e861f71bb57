package users

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestCreateHashesPassword(t *testing.T) {
	repo := newFakeRepo()
	service := NewService(repo)

	user, err := service.Create(context.Background(), CreateUserRequest{
		Name:                 "  Jane Doe  ",
		Email:                "jane@example.com",
		Role:                 "admin",
		Password:             "super-secret",
		PasswordConfirmation: "super-secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", user.Name)
	assert.NotEqual(t, "super-secret", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("super-secret")))
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	repo := newFakeRepo(User{ID: 1, Name: "Jane", Email: "jane@example.com", Role: "admin"})
	service := NewService(repo)

	_, err := service.Create(context.Background(), CreateUserRequest{
		Name:     "Other Jane",
		Email:    "jane@example.com",
		Role:     "user",
		Password: "super-secret",
	})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestUpdateBlankPasswordKeepsHash(t *testing.T) {
	repo := newFakeRepo(User{ID: 1, Name: "Jane", Email: "jane@example.com", Role: "admin", PasswordHash: "$existing-hash"})
	service := NewService(repo)

	user, err := service.Update(context.Background(), 1, UpdateUserRequest{
		Name:  "Jane Updated",
		Email: "jane@example.com",
		Role:  "admin",
	})
	require.NoError(t, err)
	assert.Equal(t, "Jane Updated", user.Name)
	assert.Equal(t, "$existing-hash", user.PasswordHash)
}

func TestUpdateWithPasswordRehashesAndClearsFlag(t *testing.T) {
	repo := newFakeRepo(User{ID: 1, Name: "Jane", Email: "jane@example.com", Role: "admin", PasswordHash: "$old", MustChangePassword: true})
	service := NewService(repo)

	user, err := service.Update(context.Background(), 1, UpdateUserRequest{
		Name:                 "Jane",
		Email:                "jane@example.com",
		Role:                 "admin",
		Password:             "fresh-password",
		PasswordConfirmation: "fresh-password",
	})
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("fresh-password")))
	assert.False(t, user.MustChangePassword)
}

func TestUpdateKeepingOwnEmail(t *testing.T) {
	repo := newFakeRepo(
		User{ID: 1, Name: "Jane", Email: "jane@example.com", Role: "admin"},
		User{ID: 2, Name: "Joe", Email: "joe@example.com", Role: "user"},
	)
	service := NewService(repo)

	// Re-submitting an unchanged email must not count as a duplicate.
	_, err := service.Update(context.Background(), 1, UpdateUserRequest{Name: "Jane", Email: "jane@example.com", Role: "admin"})
	assert.NoError(t, err)

	// Taking another row's email must.
	_, err = service.Update(context.Background(), 1, UpdateUserRequest{Name: "Jane", Email: "joe@example.com", Role: "admin"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestUpdateMissingUser(t *testing.T) {
	service := NewService(newFakeRepo())
	_, err := service.Update(context.Background(), 99, UpdateUserRequest{Name: "X", Email: "x@example.com", Role: "user"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBulkDeleteEmptySelectionIsNoop(t *testing.T) {
	repo := newFakeRepo(User{ID: 1, Name: "Jane", Email: "jane@example.com", Role: "admin"})
	service := NewService(repo)

	deleted, err := service.BulkDelete(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Len(t, repo.users, 1)
}

func TestBulkDeleteCountsExistingOnly(t *testing.T) {
	repo := newFakeRepo(
		User{ID: 1, Name: "A", Email: "a@example.com", Role: "user"},
		User{ID: 2, Name: "B", Email: "b@example.com", Role: "user"},
	)
	service := NewService(repo)

	deleted, err := service.BulkDelete(context.Background(), []int64{1, 2, 99})
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)
	assert.Empty(t, repo.users)
}

func TestImportSkipsBlankRowsAndAppliesDefaults(t *testing.T) {
	repo := newFakeRepo()
	service := NewService(repo)

	result, err := service.Import(context.Background(), []ImportRow{
		{Name: "Alice", Email: "alice@example.com", Role: "admin", Password: "alice-password"},
		{Name: "", Email: ""},
		{Name: "Bob", Email: ""},
		{Name: "", Email: "carol@example.com"},
		{Name: "Dave", Email: "dave@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 3, result.Skipped)

	dave, err := repo.FindByEmail(context.Background(), "dave@example.com")
	require.NoError(t, err)
	assert.Equal(t, DefaultRole, dave.Role)
	// A row without a password never yields a usable credential.
	assert.True(t, dave.MustChangePassword)
	assert.NotEmpty(t, dave.PasswordHash)

	alice, err := repo.FindByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.False(t, alice.MustChangePassword)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(alice.PasswordHash), []byte("alice-password")))
}

func TestImportSkipsDuplicateEmails(t *testing.T) {
	repo := newFakeRepo(User{ID: 1, Name: "Alice", Email: "alice@example.com", Role: "admin"})
	service := NewService(repo)

	result, err := service.Import(context.Background(), []ImportRow{
		{Name: "Alice Again", Email: "alice@example.com", Password: "whatever-pass"},
		{Name: "Bob", Email: "bob@example.com", Password: "whatever-pass"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Skipped)
}

func TestExportRowsRespectsFilters(t *testing.T) {
	repo := newFakeRepo(
		User{ID: 1, Name: "Admin A", Email: "a@example.com", Role: "admin"},
		User{ID: 2, Name: "User B", Email: "b@example.com", Role: "user"},
		User{ID: 3, Name: "Admin C", Email: "c@example.com", Role: "admin"},
	)
	service := NewService(repo)

	values := url.Values{}
	values.Set("role", "admin")
	values.Set("sort", "name:asc")

	rows, err := service.ExportRows(context.Background(), values)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Admin A", rows[0].Name)
	assert.Equal(t, "Admin C", rows[1].Name)
}
