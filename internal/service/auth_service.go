package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"visitethiopia/api/internal/apperror"
	"visitethiopia/api/internal/ids"
	"visitethiopia/api/internal/models"
	"visitethiopia/api/internal/repository"
	"visitethiopia/api/internal/security"
	"visitethiopia/api/internal/session"
)

// UserRepository is the persistence surface the services need. The token
// consume operations must be atomic: at most one caller ever succeeds per
// stored token.
type UserRepository interface {
	Ping(ctx context.Context) error
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	Save(ctx context.Context, user models.User) (models.User, error)
	ConsumeVerificationToken(ctx context.Context, hash string, now time.Time) (models.User, error)
	ConsumeResetToken(ctx context.Context, hash string, now time.Time, passwordHash []byte) (models.User, error)
	PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error)
	List(ctx context.Context, limit, offset int) ([]models.User, error)
}

// Mailer queues transactional mail. Implementations return once the message
// is accepted for delivery, not once it is delivered.
type Mailer interface {
	SendVerification(ctx context.Context, to, name, url string) error
	SendPasswordReset(ctx context.Context, to, name, url string) error
}

type Options struct {
	// PublicURL is the externally reachable origin used in emailed links.
	PublicURL         string
	VerificationTTL   time.Duration
	PasswordResetTTL  time.Duration
	MinPasswordLength int
}

const (
	usersPath    = "/api/v1/users"
	maxSaveTries = 3
)

// errUnchanged lets a mutation decline to write.
var errUnchanged = errors.New("unchanged")

type AuthService struct {
	users  UserRepository
	mailer Mailer
	issuer *session.Issuer
	codec  *security.SessionCodec
	opts   Options
	log    zerolog.Logger
	now    func() time.Time

	hashPassword func(string) ([]byte, error)
	dummyOnce    sync.Once
	dummyHash    []byte
}

func NewAuthService(
	users UserRepository,
	mailer Mailer,
	codec *security.SessionCodec,
	issuer *session.Issuer,
	opts Options,
	log zerolog.Logger,
	now func() time.Time,
) *AuthService {
	if now == nil {
		now = time.Now
	}
	if opts.MinPasswordLength <= 0 {
		opts.MinPasswordLength = 8
	}
	if opts.VerificationTTL <= 0 {
		opts.VerificationTTL = 24 * time.Hour
	}
	if opts.PasswordResetTTL <= 0 {
		opts.PasswordResetTTL = 10 * time.Minute
	}
	opts.PublicURL = strings.TrimRight(opts.PublicURL, "/")

	return &AuthService{
		users:        users,
		mailer:       mailer,
		issuer:       issuer,
		codec:        codec,
		opts:         opts,
		log:          log,
		now:          now,
		hashPassword: security.HashPassword,
	}
}

type SignupInput struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
	Role            string `json:"role"`
}

// Signup creates an unverified account and queues the verification email.
// No session is issued until the address is verified.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (models.User, error) {
	input.Email = repository.NormalizeEmail(input.Email)
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	if err := input.validate(s.opts.MinPasswordLength); err != nil {
		return models.User{}, asValidationError(err)
	}

	role := models.UserRole(input.Role)
	if role == "" {
		role = models.UserRoleUser
	}

	passwordHash, err := s.hashPassword(input.Password)
	if err != nil {
		return models.User{}, apperror.Internal(err, msgInternal)
	}
	plain, hash, err := security.NewSecret()
	if err != nil {
		return models.User{}, apperror.Internal(err, msgInternal)
	}

	now := s.now().UTC()
	expires := now.Add(s.opts.VerificationTTL)
	user := models.User{
		ID:                       ids.New(),
		FirstName:                input.FirstName,
		LastName:                 input.LastName,
		Email:                    input.Email,
		PasswordHash:             passwordHash,
		Role:                     role,
		Active:                   true,
		EmailVerificationToken:   hash,
		EmailVerificationExpires: &expires,
		CreatedAt:                now,
		UpdatedAt:                now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return models.User{}, apperror.Conflict(msgEmailTaken)
		}
		return models.User{}, apperror.Internal(err, msgInternal)
	}

	// The account exists either way; a lost email can be re-requested.
	if err := s.mailer.SendVerification(ctx, user.Email, user.FirstName, s.link("/verify/", plain)); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("queue verification email failed")
	}

	return user, nil
}

// ResendVerification issues a fresh verification secret, replacing any
// outstanding one. Unknown, inactive and already verified accounts are
// ignored so the caller learns nothing about the address.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	email = repository.NormalizeEmail(email)
	if email == "" {
		return apperror.Validation(msgMissingEmail)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil
		}
		return apperror.Internal(err, msgInternal)
	}
	if !user.Active || user.IsVerified {
		return nil
	}

	var plain string
	user, err = s.mutate(ctx, user.ID, func(u *models.User) error {
		secret, hash, err := security.NewSecret()
		if err != nil {
			return err
		}
		expires := s.now().UTC().Add(s.opts.VerificationTTL)
		u.EmailVerificationToken = hash
		u.EmailVerificationExpires = &expires
		plain = secret
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.mailer.SendVerification(ctx, user.Email, user.FirstName, s.link("/verify/", plain)); err != nil {
		return apperror.Internal(err, msgMailFailed)
	}
	return nil
}

// VerifyEmail consumes a verification secret. Unknown and expired secrets
// produce the same message.
func (s *AuthService) VerifyEmail(ctx context.Context, plain string) (models.User, error) {
	if strings.TrimSpace(plain) == "" {
		return models.User{}, apperror.InvalidToken(msgVerifyInvalid)
	}

	user, err := s.users.ConsumeVerificationToken(ctx, security.HashSecret(plain), s.now().UTC())
	if err != nil {
		return models.User{}, tokenError(err, msgVerifyInvalid)
	}
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (models.User, session.Session, error) {
	email = repository.NormalizeEmail(email)
	if email == "" || password == "" {
		return models.User{}, session.Session{}, apperror.Validation(msgMissingCredentials)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return models.User{}, session.Session{}, apperror.Internal(err, msgInternal)
	}
	if err != nil || !user.Active {
		// Spend the same hashing effort as a real check.
		_, _ = security.VerifyPassword(password, s.dummyPasswordHash())
		return models.User{}, session.Session{}, apperror.Authentication(msgIncorrectLogin)
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("stored password hash unreadable")
	}
	if !ok {
		return models.User{}, session.Session{}, apperror.Authentication(msgIncorrectLogin)
	}
	if !user.IsVerified {
		return models.User{}, session.Session{}, apperror.Authentication(msgUnverified)
	}

	sess, err := s.issuer.Issue(user)
	if err != nil {
		return models.User{}, session.Session{}, apperror.Internal(err, msgInternal)
	}
	return user, sess, nil
}

// Logout returns the cookie that clears the client's session. Issued tokens
// stay valid until they expire or the password changes.
func (s *AuthService) Logout() *http.Cookie {
	return s.issuer.Clear()
}

func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = repository.NormalizeEmail(email)
	if email == "" {
		return apperror.Validation(msgMissingEmail)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperror.NotFound(msgNoUserWithEmail)
		}
		return apperror.Internal(err, msgInternal)
	}
	if !user.Active {
		return apperror.NotFound(msgNoUserWithEmail)
	}

	var plain, issued string
	user, err = s.mutate(ctx, user.ID, func(u *models.User) error {
		secret, hash, err := security.NewSecret()
		if err != nil {
			return err
		}
		expires := s.now().UTC().Add(s.opts.PasswordResetTTL)
		u.PasswordResetToken = hash
		u.PasswordResetExpires = &expires
		plain, issued = secret, hash
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email, user.FirstName, s.link("/resetPassword/", plain)); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("queue password reset email failed")
		// A newer request may have replaced the token meanwhile; leave it.
		_, clearErr := s.mutate(ctx, user.ID, func(u *models.User) error {
			if u.PasswordResetToken != issued {
				return errUnchanged
			}
			u.PasswordResetToken = ""
			u.PasswordResetExpires = nil
			return nil
		})
		if clearErr != nil {
			s.log.Error().Err(clearErr).Str("user_id", user.ID).Msg("clear password reset token failed")
		}
		return apperror.Internal(err, msgMailFailed)
	}
	return nil
}

// ResetPassword validates the new password before touching the token so a
// rejected password never burns a valid link.
func (s *AuthService) ResetPassword(ctx context.Context, plain, password, passwordConfirm string) (models.User, session.Session, error) {
	if strings.TrimSpace(plain) == "" {
		return models.User{}, session.Session{}, apperror.InvalidToken(msgResetInvalid)
	}
	pair := passwordPair{Password: password, PasswordConfirm: passwordConfirm}
	if err := pair.validate(s.opts.MinPasswordLength); err != nil {
		return models.User{}, session.Session{}, asValidationError(err)
	}

	passwordHash, err := s.hashPassword(password)
	if err != nil {
		return models.User{}, session.Session{}, apperror.Internal(err, msgInternal)
	}

	user, err := s.users.ConsumeResetToken(ctx, security.HashSecret(plain), s.now().UTC(), passwordHash)
	if err != nil {
		return models.User{}, session.Session{}, tokenError(err, msgResetInvalid)
	}

	sess, err := s.issuer.Issue(user)
	if err != nil {
		return models.User{}, session.Session{}, apperror.Internal(err, msgInternal)
	}
	return user, sess, nil
}

type UpdatePasswordInput struct {
	PasswordCurrent string `json:"passwordCurrent"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

func (s *AuthService) UpdatePassword(ctx context.Context, userID string, input UpdatePasswordInput) (models.User, session.Session, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, session.Session{}, apperror.Unauthenticated(msgUserGone)
		}
		return models.User{}, session.Session{}, apperror.Internal(err, msgInternal)
	}

	ok, err := security.VerifyPassword(input.PasswordCurrent, user.PasswordHash)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("stored password hash unreadable")
	}
	if !ok {
		return models.User{}, session.Session{}, apperror.Authentication(msgWrongCurrent)
	}

	pair := passwordPair{Password: input.Password, PasswordConfirm: input.PasswordConfirm}
	if err := pair.validate(s.opts.MinPasswordLength); err != nil {
		return models.User{}, session.Session{}, asValidationError(err)
	}

	passwordHash, err := s.hashPassword(input.Password)
	if err != nil {
		return models.User{}, session.Session{}, apperror.Internal(err, msgInternal)
	}

	// Only the version read above may be replaced; a concurrent change
	// means the current password check may no longer hold.
	user.PasswordHash = passwordHash
	changedAt := s.now().UTC()
	user.PasswordChangedAt = &changedAt
	user.PasswordResetToken = ""
	user.PasswordResetExpires = nil
	user.UpdatedAt = changedAt

	user, err = s.users.Save(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrStaleUser) {
			return models.User{}, session.Session{}, apperror.Conflict(msgConcurrentUpdate)
		}
		return models.User{}, session.Session{}, apperror.Internal(err, msgInternal)
	}

	sess, err := s.issuer.Issue(user)
	if err != nil {
		return models.User{}, session.Session{}, apperror.Internal(err, msgInternal)
	}
	return user, sess, nil
}

// Identity is the authenticated caller attached to a request.
type Identity struct {
	User   models.User
	Claims security.SessionClaims
}

// Role is the role currently stored for the user, not the one in the token.
func (i Identity) Role() models.UserRole {
	return i.User.Role
}

// Authenticate resolves a session token into the current user. Tokens issued
// before the last password change are rejected.
func (s *AuthService) Authenticate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, apperror.Unauthenticated(msgNotLoggedIn)
	}

	claims, err := s.codec.Parse(token)
	if err != nil {
		if errors.Is(err, security.ErrExpiredToken) {
			return Identity{}, apperror.Unauthenticated(msgSessionExpired)
		}
		return Identity{}, apperror.Unauthenticated(msgSessionInvalid)
	}

	user, err := s.users.GetByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Identity{}, apperror.Unauthenticated(msgUserGone)
		}
		return Identity{}, apperror.Internal(err, msgInternal)
	}
	if !user.Active {
		return Identity{}, apperror.Unauthenticated(msgUserGone)
	}
	if user.ChangedPasswordAfter(claims.IssuedAtTime()) {
		return Identity{}, apperror.Unauthenticated(msgPasswordChanged)
	}

	return Identity{User: user, Claims: *claims}, nil
}

// mutate applies fn to the latest stored copy of the user and saves it,
// retrying when another writer got there first.
func (s *AuthService) mutate(ctx context.Context, id string, fn func(*models.User) error) (models.User, error) {
	return mutateUser(ctx, s.users, s.now, id, fn)
}

func mutateUser(
	ctx context.Context,
	users UserRepository,
	now func() time.Time,
	id string,
	fn func(*models.User) error,
) (models.User, error) {
	for attempt := 0; attempt < maxSaveTries; attempt++ {
		user, err := users.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return models.User{}, apperror.NotFound(msgNoUserWithID)
			}
			return models.User{}, apperror.Internal(err, msgInternal)
		}
		if err := fn(&user); err != nil {
			if errors.Is(err, errUnchanged) {
				return user, nil
			}
			var appErr *apperror.Error
			if errors.As(err, &appErr) {
				return models.User{}, err
			}
			return models.User{}, apperror.Internal(err, msgInternal)
		}
		user.UpdatedAt = now().UTC()

		saved, err := users.Save(ctx, user)
		switch {
		case err == nil:
			return saved, nil
		case errors.Is(err, repository.ErrStaleUser):
			continue
		case errors.Is(err, repository.ErrDuplicateEmail):
			return models.User{}, apperror.Conflict(msgEmailTaken)
		default:
			return models.User{}, apperror.Internal(err, msgInternal)
		}
	}
	return models.User{}, apperror.Conflict(msgConcurrentUpdate)
}

func (s *AuthService) link(path, secret string) string {
	return s.opts.PublicURL + usersPath + path + secret
}

func (s *AuthService) dummyPasswordHash() []byte {
	s.dummyOnce.Do(func() {
		hash, err := s.hashPassword(ids.New())
		if err != nil {
			s.log.Error().Err(err).Msg("prepare dummy password hash failed")
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func tokenError(err error, message string) error {
	switch {
	case errors.Is(err, repository.ErrTokenExpired):
		return apperror.ExpiredToken(message)
	case errors.Is(err, repository.ErrTokenNotFound):
		return apperror.InvalidToken(message)
	default:
		return apperror.Internal(err, msgInternal)
	}
}
