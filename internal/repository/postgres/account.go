package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vidtube/vidtube/internal/domain"
	"github.com/vidtube/vidtube/pkg/database"
	apperrors "github.com/vidtube/vidtube/pkg/errors"
)

const accountColumns = `id, username, email, full_name, avatar_url, cover_image_url, password_hash, refresh_token, created_at, updated_at`

// AccountRepository implements repository.AccountRepository using PostgreSQL.
type AccountRepository struct {
	db database.DBTX
}

// NewAccountRepository creates a new PostgreSQL-backed account repository.
func NewAccountRepository(db database.DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts a new account into the database.
func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) (err error) {
	query := `
		INSERT INTO accounts (id, username, email, full_name, avatar_url, cover_image_url, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	ctx, end := database.TraceQuery(ctx, "CreateAccount", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		a.ID,
		a.Username,
		a.Email,
		a.FullName,
		a.AvatarURL,
		a.CoverImageURL,
		a.PasswordHash(),
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		if database.ErrCode(err) == database.UniqueViolation {
			return apperrors.Conflict("username or email already exists")
		}
		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

// GetByID retrieves an account by its ID.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanAccount(ctx, "GetAccountByID", query, id)
}

// GetByUsername retrieves an account by its username.
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`
	return r.scanAccount(ctx, "GetAccountByUsername", query, username)
}

// FindByUsernameOrEmail retrieves the account matching either identifier.
func (r *AccountRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE (username = $1 AND $1 <> '') OR (email = $2 AND $2 <> '')
		ORDER BY created_at
		LIMIT 1`
	return r.scanAccount(ctx, "FindAccountByUsernameOrEmail", query, username, email)
}

// UpdateProfile sets the full name and email of an account.
func (r *AccountRepository) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.Account, error) {
	query := `
		UPDATE accounts SET full_name = $2, email = $3, updated_at = $4
		WHERE id = $1
		RETURNING ` + accountColumns
	return r.scanAccount(ctx, "UpdateAccountProfile", query, id, update.FullName, update.Email, time.Now().UTC())
}

// UpdateAvatar replaces the avatar URL of an account.
func (r *AccountRepository) UpdateAvatar(ctx context.Context, id, url string) (*domain.Account, error) {
	query := `
		UPDATE accounts SET avatar_url = $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + accountColumns
	return r.scanAccount(ctx, "UpdateAccountAvatar", query, id, url, time.Now().UTC())
}

// UpdateCoverImage replaces the cover image URL of an account.
func (r *AccountRepository) UpdateCoverImage(ctx context.Context, id, url string) (*domain.Account, error) {
	query := `
		UPDATE accounts SET cover_image_url = $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + accountColumns
	return r.scanAccount(ctx, "UpdateAccountCoverImage", query, id, url, time.Now().UTC())
}

// UpdatePasswordHash stores a new password digest.
func (r *AccountRepository) UpdatePasswordHash(ctx context.Context, id, digest string) error {
	query := `UPDATE accounts SET password_hash = $2, updated_at = $3 WHERE id = $1`
	return r.execOne(ctx, "UpdateAccountPassword", query, id, digest, time.Now().UTC())
}

// SetRefreshToken overwrites the stored refresh token.
func (r *AccountRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	query := `UPDATE accounts SET refresh_token = $2 WHERE id = $1`
	return r.execOne(ctx, "SetRefreshToken", query, id, token)
}

// CompareAndSwapRefreshToken rotates the refresh token only when the stored
// value still equals expected. Concurrent rotations of the same token race
// on this single statement and exactly one of them matches a row.
func (r *AccountRepository) CompareAndSwapRefreshToken(ctx context.Context, id, expected, next string) (swapped bool, err error) {
	query := `UPDATE accounts SET refresh_token = $3 WHERE id = $1 AND refresh_token = $2`

	ctx, end := database.TraceQuery(ctx, "SwapRefreshToken", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, id, expected, next)
	if err != nil {
		return false, fmt.Errorf("swap refresh token: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// ClearRefreshToken removes the stored refresh token. A missing account is
// treated the same as an already cleared token.
func (r *AccountRepository) ClearRefreshToken(ctx context.Context, id string) (err error) {
	query := `UPDATE accounts SET refresh_token = NULL WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "ClearRefreshToken", query)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

func (r *AccountRepository) execOne(ctx context.Context, op, query string, args ...any) (err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// scanAccount executes a query expected to return a single account row.
func (r *AccountRepository) scanAccount(ctx context.Context, op, query string, args ...any) (_ *domain.Account, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	var (
		a            domain.Account
		passwordHash string
	)
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&a.ID,
		&a.Username,
		&a.Email,
		&a.FullName,
		&a.AvatarURL,
		&a.CoverImageURL,
		&passwordHash,
		&a.RefreshToken,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		if database.ErrCode(err) == database.UniqueViolation {
			return nil, apperrors.Conflict("username or email already exists")
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	a.RestorePasswordHash(passwordHash)
	return &a, nil
}
