package users

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/atlas-admin/atlas-admin/internal/tablequery"
)

// fakeRepo is an in-memory Repository used across the package tests. It
// mirrors the SQL semantics: ILIKE search over name and email, role filter,
// allow-listed ordering with an id DESC tiebreaker, and batch inserts that
// silently drop duplicate emails.
type fakeRepo struct {
	users   map[int64]User
	nextID  int64
	listErr error
}

func newFakeRepo(seed ...User) *fakeRepo {
	repo := &fakeRepo{users: make(map[int64]User)}
	for _, user := range seed {
		repo.nextID++
		if user.ID == 0 {
			user.ID = repo.nextID
		} else if user.ID > repo.nextID {
			repo.nextID = user.ID
		}
		if user.CreatedAt.IsZero() {
			user.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(user.ID) * time.Hour)
		}
		repo.users[user.ID] = user
	}
	return repo
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) matching(q tablequery.Query) []User {
	var out []User
	needle := strings.ToLower(q.Search)
	for _, user := range f.users {
		if needle != "" &&
			!strings.Contains(strings.ToLower(user.Name), needle) &&
			!strings.Contains(strings.ToLower(user.Email), needle) &&
			!strings.Contains(strings.ToLower(user.Role), needle) {
			continue
		}
		if role := q.Filters["role"]; role != "" && user.Role != role {
			continue
		}
		out = append(out, user)
	}

	sort.Slice(out, func(i, j int) bool {
		if q.Sort != nil {
			var less, equal bool
			switch q.Sort.Column {
			case "name":
				less, equal = out[i].Name < out[j].Name, out[i].Name == out[j].Name
			case "email":
				less, equal = out[i].Email < out[j].Email, out[i].Email == out[j].Email
			case "role":
				less, equal = out[i].Role < out[j].Role, out[i].Role == out[j].Role
			case "created_at":
				less, equal = out[i].CreatedAt.Before(out[j].CreatedAt), out[i].CreatedAt.Equal(out[j].CreatedAt)
			default:
				less, equal = out[i].ID < out[j].ID, false
			}
			if !equal {
				if q.Sort.Desc {
					return !less
				}
				return less
			}
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (f *fakeRepo) List(ctx context.Context, q tablequery.Query) ([]User, int, error) {
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	all := f.matching(q)
	total := len(all)
	start := q.Offset()
	if start > total {
		start = total
	}
	end := start + q.PerPage
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (f *fakeRepo) ListAll(ctx context.Context, q tablequery.Query) ([]User, error) {
	return f.matching(q), nil
}

func (f *fakeRepo) Get(ctx context.Context, id int64) (*User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (f *fakeRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	for _, user := range f.users {
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeRepo) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	for _, user := range f.users {
		if user.Email == email && user.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) Create(ctx context.Context, user User) (int64, error) {
	if taken, _ := f.EmailTaken(ctx, user.Email, 0); taken {
		return 0, ErrEmailTaken
	}
	f.nextID++
	user.ID = f.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	f.users[user.ID] = user
	return user.ID, nil
}

func (f *fakeRepo) CreateBatch(ctx context.Context, batch []User) (int, error) {
	created := 0
	for _, user := range batch {
		if taken, _ := f.EmailTaken(ctx, user.Email, 0); taken {
			continue
		}
		if _, err := f.Create(ctx, user); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func (f *fakeRepo) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	user, ok := f.users[id]
	if !ok {
		return ErrNotFound
	}
	for column, value := range updates {
		switch column {
		case "name":
			user.Name = value.(string)
		case "email":
			user.Email = value.(string)
		case "role":
			user.Role = value.(string)
		case "password_hash":
			user.PasswordHash = value.(string)
		case "must_change_password":
			user.MustChangePassword = value.(bool)
		}
	}
	user.UpdatedAt = time.Now()
	f.users[id] = user
	return nil
}

func (f *fakeRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := f.users[id]; !ok {
		return ErrNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeRepo) DeleteMany(ctx context.Context, ids []int64) (int64, error) {
	var deleted int64
	for _, id := range ids {
		if _, ok := f.users[id]; ok {
			delete(f.users, id)
			deleted++
		}
	}
	return deleted, nil
}

var _ Repository = (*fakeRepo)(nil)
