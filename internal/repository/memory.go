package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"visitethiopia/api/internal/models"
)

// MemoryUserRepository keeps users in process memory. It backs tests and
// the "memory" store driver for local runs.
type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[string]models.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]models.User)}
}

func (r *MemoryUserRepository) Ping(context.Context) error { return nil }

func (r *MemoryUserRepository) Create(ctx context.Context, user models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user.Email = NormalizeEmail(user.Email)
	if _, ok := r.users[user.ID]; ok {
		return ErrDuplicateEmail
	}
	if _, ok := r.byEmailLocked(user.Email); ok {
		return ErrDuplicateEmail
	}
	user.Version = 1
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *MemoryUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byEmailLocked(email)
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return cloneUser(user), nil
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return cloneUser(user), nil
}

func (r *MemoryUserRepository) Save(ctx context.Context, user models.User) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.users[user.ID]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	if current.Version != user.Version {
		return models.User{}, ErrStaleUser
	}
	user.Email = NormalizeEmail(user.Email)
	if other, ok := r.byEmailLocked(user.Email); ok && other.ID != user.ID {
		return models.User{}, ErrDuplicateEmail
	}

	user.CreatedAt = current.CreatedAt
	user.Version++
	r.users[user.ID] = cloneUser(user)
	return cloneUser(user), nil
}

func (r *MemoryUserRepository) ConsumeVerificationToken(ctx context.Context, hash string, now time.Time) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, user := range r.users {
		if user.EmailVerificationToken == "" || user.EmailVerificationToken != hash {
			continue
		}
		if user.EmailVerificationExpires == nil || !user.EmailVerificationExpires.After(now) {
			return models.User{}, ErrTokenExpired
		}
		user.IsVerified = true
		user.EmailVerificationToken = ""
		user.EmailVerificationExpires = nil
		user.UpdatedAt = now
		user.Version++
		r.users[id] = user
		return cloneUser(user), nil
	}
	return models.User{}, ErrTokenNotFound
}

func (r *MemoryUserRepository) ConsumeResetToken(ctx context.Context, hash string, now time.Time, passwordHash []byte) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, user := range r.users {
		if user.PasswordResetToken == "" || user.PasswordResetToken != hash {
			continue
		}
		if user.PasswordResetExpires == nil || !user.PasswordResetExpires.After(now) {
			return models.User{}, ErrTokenExpired
		}
		if !user.Active {
			return models.User{}, ErrTokenNotFound
		}
		changedAt := now
		user.PasswordHash = append([]byte(nil), passwordHash...)
		user.PasswordChangedAt = &changedAt
		user.IsVerified = true
		user.PasswordResetToken = ""
		user.PasswordResetExpires = nil
		user.UpdatedAt = now
		user.Version++
		r.users[id] = user
		return cloneUser(user), nil
	}
	return models.User{}, ErrTokenNotFound
}

func (r *MemoryUserRepository) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var purged int64
	for id, user := range r.users {
		changed := false
		if user.EmailVerificationExpires != nil && !user.EmailVerificationExpires.After(now) {
			user.EmailVerificationToken = ""
			user.EmailVerificationExpires = nil
			changed = true
		}
		if user.PasswordResetExpires != nil && !user.PasswordResetExpires.After(now) {
			user.PasswordResetToken = ""
			user.PasswordResetExpires = nil
			changed = true
		}
		if changed {
			user.Version++
			r.users[id] = user
			purged++
		}
	}
	return purged, nil
}

func (r *MemoryUserRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := make([]models.User, 0, len(r.users))
	for _, user := range r.users {
		users = append(users, cloneUser(user))
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})

	if offset < 0 || offset >= len(users) {
		return []models.User{}, nil
	}
	users = users[offset:]
	if limit > 0 && limit < len(users) {
		users = users[:limit]
	}
	return users, nil
}

func (r *MemoryUserRepository) byEmailLocked(email string) (models.User, bool) {
	email = NormalizeEmail(email)
	for _, user := range r.users {
		if user.Email == email {
			return user, true
		}
	}
	return models.User{}, false
}

func cloneUser(u models.User) models.User {
	u.PasswordHash = append([]byte(nil), u.PasswordHash...)
	u.PasswordChangedAt = cloneTime(u.PasswordChangedAt)
	u.EmailVerificationExpires = cloneTime(u.EmailVerificationExpires)
	u.PasswordResetExpires = cloneTime(u.PasswordResetExpires)
	return u
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// NormalizeEmail lower-cases and trims an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
