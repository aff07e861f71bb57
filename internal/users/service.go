package users

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/atlas-admin/atlas-admin/internal/tablequery"
)

// Service handles user management business rules.
type Service struct {
	repo Repository
}

// NewService builds a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create stores a new user with a hashed password.
func (s *Service) Create(ctx context.Context, req CreateUserRequest) (*User, error) {
	taken, err := s.repo.EmailTaken(ctx, req.Email, 0)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, ErrEmailTaken
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := User{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.TrimSpace(req.Email),
		Role:         req.Role,
		PasswordHash: hash,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		id, err := repo.Create(ctx, user)
		if err != nil {
			return err
		}
		user.ID = id
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return s.repo.Get(ctx, user.ID)
}

// Update applies the request to an existing user. A blank password leaves
// the stored hash untouched.
func (s *Service) Update(ctx context.Context, id int64, req UpdateUserRequest) (*User, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	taken, err := s.repo.EmailTaken(ctx, req.Email, id)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, ErrEmailTaken
	}

	updates := map[string]interface{}{
		"name":  strings.TrimSpace(req.Name),
		"email": strings.TrimSpace(req.Email),
		"role":  req.Role,
	}
	if req.Password != "" {
		hash, err := hashPassword(req.Password)
		if err != nil {
			return nil, err
		}
		updates["password_hash"] = hash
		updates["must_change_password"] = false
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.Update(ctx, id, updates)
	})
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Get loads a single user.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.Get(ctx, id)
}

// Delete removes a single user.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// BulkDelete removes the given users in one transaction. An empty selection
// is a no-op, not an error; the handler reports it as a notice.
func (s *Service) BulkDelete(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var deleted int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		deleted, err = repo.DeleteMany(ctx, ids)
		return err
	})
	return deleted, err
}

// ExportRows loads every user matching the list filters, unpaginated, in the
// same order the list view would show them.
func (s *Service) ExportRows(ctx context.Context, values url.Values) ([]User, error) {
	q := tablequery.Parse(values, ListSpec)
	return s.repo.ListAll(ctx, q)
}

// ImportResult summarizes one import run.
type ImportResult struct {
	Created int
	Skipped int
}

// Import persists spreadsheet rows in one transaction. Rows with a blank
// name or email are skipped, not errors. Rows without a role get the default
// role. Rows without a password get a random secret and are flagged for a
// mandatory password change on first login; the import format never decides
// a usable credential on its own.
func (s *Service) Import(ctx context.Context, rows []ImportRow) (ImportResult, error) {
	var result ImportResult
	var batch []User

	for _, row := range rows {
		name := strings.TrimSpace(row.Name)
		email := strings.TrimSpace(row.Email)
		if name == "" || email == "" {
			result.Skipped++
			continue
		}
		role := strings.TrimSpace(row.Role)
		if role == "" {
			role = DefaultRole
		}

		password := row.Password
		mustChange := false
		if password == "" {
			password = randomSecret()
			mustChange = true
		}
		hash, err := hashPassword(password)
		if err != nil {
			return result, err
		}
		batch = append(batch, User{
			Name:               name,
			Email:              email,
			Role:               role,
			PasswordHash:       hash,
			MustChangePassword: mustChange,
		})
	}

	if len(batch) == 0 {
		return result, nil
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		created, err := repo.CreateBatch(ctx, batch)
		if err != nil {
			return err
		}
		result.Created = created
		result.Skipped += len(batch) - created
		return nil
	})
	return result, err
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
