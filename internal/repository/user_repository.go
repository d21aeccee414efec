package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"visitethiopia/api/internal/models"
)

const uniqueViolation = "23505"

const userColumns = `
	id, first_name, last_name, email, password_hash, role, is_verified, active,
	password_changed_at,
	COALESCE(email_verification_token, ''), email_verification_expires,
	COALESCE(password_reset_token, ''), password_reset_expires,
	created_at, updated_at, version
`

// UserRepository is the PostgreSQL credential store.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *UserRepository) Create(ctx context.Context, user models.User) error {
	const query = `
		INSERT INTO users (
			id, first_name, last_name, email, password_hash, role, is_verified, active,
			password_changed_at, email_verification_token, email_verification_expires,
			password_reset_token, password_reset_expires, created_at, updated_at, version
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, NULLIF($12, ''), $13, $14, $15, 1
		)
	`

	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.FirstName,
		user.LastName,
		NormalizeEmail(user.Email),
		user.PasswordHash,
		user.Role,
		user.IsVerified,
		user.Active,
		user.PasswordChangedAt,
		user.EmailVerificationToken,
		user.EmailVerificationExpires,
		user.PasswordResetToken,
		user.PasswordResetExpires,
		user.CreatedAt,
		user.UpdatedAt,
	)
	return mapWriteError(err)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, NormalizeEmail(email)))
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) Save(ctx context.Context, user models.User) (models.User, error) {
	query := `
		UPDATE users SET
			first_name = $3,
			last_name = $4,
			email = $5,
			password_hash = $6,
			role = $7,
			is_verified = $8,
			active = $9,
			password_changed_at = $10,
			email_verification_token = NULLIF($11, ''),
			email_verification_expires = $12,
			password_reset_token = NULLIF($13, ''),
			password_reset_expires = $14,
			updated_at = $15,
			version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING ` + userColumns

	saved, err := scanUser(r.pool.QueryRow(ctx, query,
		user.ID,
		user.Version,
		user.FirstName,
		user.LastName,
		NormalizeEmail(user.Email),
		user.PasswordHash,
		user.Role,
		user.IsVerified,
		user.Active,
		user.PasswordChangedAt,
		user.EmailVerificationToken,
		user.EmailVerificationExpires,
		user.PasswordResetToken,
		user.PasswordResetExpires,
		user.UpdatedAt,
	))
	if err == nil {
		return saved, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return models.User{}, mapWriteError(err)
	}
	if _, err := r.GetByID(ctx, user.ID); err != nil {
		return models.User{}, err
	}
	return models.User{}, ErrStaleUser
}

func (r *UserRepository) ConsumeVerificationToken(ctx context.Context, hash string, now time.Time) (models.User, error) {
	query := `
		UPDATE users SET
			is_verified = TRUE,
			email_verification_token = NULL,
			email_verification_expires = NULL,
			updated_at = $2,
			version = version + 1
		WHERE email_verification_token = $1 AND email_verification_expires > $2
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, hash, now))
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return models.User{}, err
	}
	return models.User{}, r.classifyMiss(ctx, `SELECT TRUE FROM users WHERE email_verification_token = $1`, hash)
}

func (r *UserRepository) ConsumeResetToken(ctx context.Context, hash string, now time.Time, passwordHash []byte) (models.User, error) {
	query := `
		UPDATE users SET
			password_hash = $3,
			password_changed_at = $2,
			is_verified = TRUE,
			password_reset_token = NULL,
			password_reset_expires = NULL,
			updated_at = $2,
			version = version + 1
		WHERE password_reset_token = $1 AND password_reset_expires > $2 AND active
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, hash, now, passwordHash))
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return models.User{}, err
	}
	return models.User{}, r.classifyMiss(ctx, `SELECT active FROM users WHERE password_reset_token = $1`, hash)
}

// classifyMiss runs a probe returning one boolean: false means the token
// exists but belongs to an account that may not use it.
func (r *UserRepository) classifyMiss(ctx context.Context, probe string, hash string) error {
	var usable bool
	if err := r.pool.QueryRow(ctx, probe, hash).Scan(&usable); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTokenNotFound
		}
		return err
	}
	if !usable {
		return ErrTokenNotFound
	}
	return ErrTokenExpired
}

func (r *UserRepository) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	const query = `
		UPDATE users SET
			email_verification_token = CASE WHEN email_verification_expires <= $1 THEN NULL ELSE email_verification_token END,
			email_verification_expires = CASE WHEN email_verification_expires <= $1 THEN NULL ELSE email_verification_expires END,
			password_reset_token = CASE WHEN password_reset_expires <= $1 THEN NULL ELSE password_reset_token END,
			password_reset_expires = CASE WHEN password_reset_expires <= $1 THEN NULL ELSE password_reset_expires END,
			version = version + 1
		WHERE email_verification_expires <= $1 OR password_reset_expires <= $1
	`
	cmd, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("purge expired tokens: %w", err)
	}
	return cmd.RowsAffected(), nil
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	if offset < 0 {
		return []models.User{}, nil
	}
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at, id LIMIT $1 OFFSET $2`

	var limitArg any
	if limit > 0 {
		limitArg = limit
	}

	rows, err := r.pool.Query(ctx, query, limitArg, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.IsVerified,
		&user.Active,
		&user.PasswordChangedAt,
		&user.EmailVerificationToken,
		&user.EmailVerificationExpires,
		&user.PasswordResetToken,
		&user.PasswordResetExpires,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Version,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateEmail
	}
	return err
}
