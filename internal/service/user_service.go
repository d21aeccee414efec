package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"visitethiopia/api/internal/apperror"
	"visitethiopia/api/internal/models"
	"visitethiopia/api/internal/repository"
	"visitethiopia/api/internal/security"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	// maxListOffset keeps (page-1)*limit far from int overflow.
	maxListOffset = math.MaxInt32
)

// UserService covers profile self-service and admin account management.
type UserService struct {
	users  UserRepository
	mailer Mailer
	opts   Options
	log    zerolog.Logger
	now    func() time.Time
}

func NewUserService(users UserRepository, mailer Mailer, opts Options, log zerolog.Logger, now func() time.Time) *UserService {
	if now == nil {
		now = time.Now
	}
	if opts.VerificationTTL <= 0 {
		opts.VerificationTTL = 24 * time.Hour
	}
	opts.PublicURL = strings.TrimRight(opts.PublicURL, "/")
	return &UserService{users: users, mailer: mailer, opts: opts, log: log, now: now}
}

func (s *UserService) Get(ctx context.Context, id string) (models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, apperror.NotFound(msgNoUserWithID)
		}
		return models.User{}, apperror.Internal(err, msgInternal)
	}
	return user, nil
}

// ProfileInput holds optional profile changes. Nil fields are left alone.
type ProfileInput struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email"`
}

// UpdateProfile changes names and email. A new email address must be
// verified again before the next login.
func (s *UserService) UpdateProfile(ctx context.Context, id string, input ProfileInput) (models.User, error) {
	if input.Email != nil {
		normalized := repository.NormalizeEmail(*input.Email)
		input.Email = &normalized
	}
	if err := input.validate(); err != nil {
		return models.User{}, asValidationError(err)
	}

	var plain string
	user, err := mutateUser(ctx, s.users, s.now, id, func(u *models.User) error {
		plain = ""
		if input.FirstName != nil {
			u.FirstName = strings.TrimSpace(*input.FirstName)
		}
		if input.LastName != nil {
			u.LastName = strings.TrimSpace(*input.LastName)
		}
		if input.Email == nil || *input.Email == u.Email {
			return nil
		}

		secret, hash, err := security.NewSecret()
		if err != nil {
			return err
		}
		expires := s.now().UTC().Add(s.opts.VerificationTTL)
		u.Email = *input.Email
		u.IsVerified = false
		u.EmailVerificationToken = hash
		u.EmailVerificationExpires = &expires
		plain = secret
		return nil
	})
	if err != nil {
		return models.User{}, err
	}

	if plain != "" {
		url := s.opts.PublicURL + usersPath + "/verify/" + plain
		if err := s.mailer.SendVerification(ctx, user.Email, user.FirstName, url); err != nil {
			s.log.Error().Err(err).Str("user_id", user.ID).Msg("queue verification email failed")
		}
	}
	return user, nil
}

// Deactivate soft-deletes an account. Deactivated users cannot log in and
// their sessions stop resolving.
func (s *UserService) Deactivate(ctx context.Context, id string) error {
	_, err := mutateUser(ctx, s.users, s.now, id, func(u *models.User) error {
		u.Active = false
		return nil
	})
	return err
}

func (s *UserService) List(ctx context.Context, page, limit int) ([]models.User, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if page <= 0 {
		page = 1
	}
	if page-1 > maxListOffset/limit {
		return []models.User{}, nil
	}

	users, err := s.users.List(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, apperror.Internal(err, msgInternal)
	}
	return users, nil
}

// UpdateRole is the only way to grant the admin role.
func (s *UserService) UpdateRole(ctx context.Context, id string, role string) (models.User, error) {
	r := models.UserRole(role)
	if !r.Valid() {
		return models.User{}, apperror.Validation("Role must be one of user, guide or admin")
	}
	return mutateUser(ctx, s.users, s.now, id, func(u *models.User) error {
		u.Role = r
		return nil
	})
}
