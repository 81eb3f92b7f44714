package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"authgate/core"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema/postgres/schema.sql
var postgresSchema string

// PostgresRepository is the production credential store, matching the
// SQLite repository behavior over a shared Postgres database.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	repo := &PostgresRepository{pool: pool}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return repo, nil
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

const pgIdentityColumns = "id, username, email, password_hash, role, department_id, auth_mode, created_at"

func (r *PostgresRepository) findIdentity(ctx context.Context, where string, arg interface{}) (*core.Identity, error) {
	query := `SELECT ` + pgIdentityColumns + ` FROM identities WHERE ` + where

	var identity core.Identity
	var role, authMode string

	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&identity.ID,
		&identity.Username,
		&identity.Email,
		&identity.PasswordHash,
		&role,
		&identity.DepartmentID,
		&authMode,
		&identity.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	identity.Role = core.Role(role)
	identity.AuthMode = core.AuthMode(authMode)

	return &identity, nil
}

func (r *PostgresRepository) FindIdentityByID(ctx context.Context, id uuid.UUID) (*core.Identity, error) {
	return r.findIdentity(ctx, "id = $1", id)
}

func (r *PostgresRepository) FindIdentityByUsername(ctx context.Context, username string) (*core.Identity, error) {
	return r.findIdentity(ctx, "username = $1", username)
}

func (r *PostgresRepository) FindIdentityByEmail(ctx context.Context, email string) (*core.Identity, error) {
	return r.findIdentity(ctx, "email = $1", email)
}

func (r *PostgresRepository) CreateIdentity(ctx context.Context, identity *core.Identity) error {
	query := `
		INSERT INTO identities (id, username, email, password_hash, role, department_id, auth_mode, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		identity.ID,
		identity.Username,
		identity.Email,
		identity.PasswordHash,
		string(identity.Role),
		identity.DepartmentID,
		string(identity.AuthMode),
		identity.CreatedAt,
	)
	if isPgUniqueViolation(err) {
		return core.ErrAlreadyExists
	}
	return err
}

func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE identities SET password_hash = $1 WHERE id = $2`, hash, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) UpdateAuthMode(ctx context.Context, id uuid.UUID, mode core.AuthMode) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE identities SET auth_mode = $1 WHERE id = $2`, string(mode), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

const pgOAuthAccountColumns = "id, identity_id, provider, subject_id, email, display_name, profile_photo, access_token, refresh_token, created_at"

func (r *PostgresRepository) FindOAuthAccount(ctx context.Context, provider core.Provider, subjectID string) (*core.OAuthAccount, error) {
	query := `SELECT ` + pgOAuthAccountColumns + ` FROM oauth_accounts WHERE provider = $1 AND subject_id = $2`

	var account core.OAuthAccount
	var providerStr string

	err := r.pool.QueryRow(ctx, query, string(provider), subjectID).Scan(
		&account.ID,
		&account.IdentityID,
		&providerStr,
		&account.SubjectID,
		&account.Email,
		&account.DisplayName,
		&account.ProfilePhoto,
		&account.AccessToken,
		&account.RefreshToken,
		&account.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	account.Provider = core.Provider(providerStr)

	return &account, nil
}

func (r *PostgresRepository) ListOAuthAccounts(ctx context.Context, identityID uuid.UUID) ([]core.OAuthAccount, error) {
	query := `SELECT ` + pgOAuthAccountColumns + ` FROM oauth_accounts WHERE identity_id = $1 ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, identityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []core.OAuthAccount{}
	for rows.Next() {
		var account core.OAuthAccount
		var providerStr string

		err := rows.Scan(
			&account.ID,
			&account.IdentityID,
			&providerStr,
			&account.SubjectID,
			&account.Email,
			&account.DisplayName,
			&account.ProfilePhoto,
			&account.AccessToken,
			&account.RefreshToken,
			&account.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		account.Provider = core.Provider(providerStr)
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

func (r *PostgresRepository) CreateOAuthAccount(ctx context.Context, account *core.OAuthAccount) error {
	query := `
		INSERT INTO oauth_accounts (identity_id, provider, subject_id, email, display_name, profile_photo, access_token, refresh_token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query,
		account.IdentityID,
		string(account.Provider),
		account.SubjectID,
		account.Email,
		account.DisplayName,
		account.ProfilePhoto,
		account.AccessToken,
		account.RefreshToken,
		account.CreatedAt,
	).Scan(&account.ID)
	if isPgUniqueViolation(err) {
		return core.ErrAlreadyExists
	}
	return err
}

func (r *PostgresRepository) UpdateOAuthAccountTokens(ctx context.Context, accountID int64, accessToken, refreshToken string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE oauth_accounts SET access_token = $1, refresh_token = $2 WHERE id = $3`,
		accessToken, refreshToken, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteOAuthAccount(ctx context.Context, identityID uuid.UUID, provider core.Provider) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM oauth_accounts WHERE identity_id = $1 AND provider = $2`,
		identityID, string(provider))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) CreateRefreshToken(ctx context.Context, token *core.RefreshToken) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO refresh_tokens (token, identity_id, created_at) VALUES ($1, $2, $3)`,
		token.Token, token.IdentityID, token.CreatedAt)
	if isPgUniqueViolation(err) {
		return core.ErrAlreadyExists
	}
	return err
}

func (r *PostgresRepository) RefreshTokenExists(ctx context.Context, token string) (bool, error) {
	var one int
	err := r.pool.QueryRow(ctx,
		`SELECT 1 FROM refresh_tokens WHERE token = $1`, token).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *PostgresRepository) DeleteRefreshToken(ctx context.Context, token string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	return err
}

func (r *PostgresRepository) DeleteAllRefreshTokens(ctx context.Context, identityID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM refresh_tokens WHERE identity_id = $1`, identityID)
	return err
}

func (r *PostgresRepository) DepartmentName(ctx context.Context, id int64) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx,
		`SELECT name FROM departments WHERE id = $1`, id).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

// isPgUniqueViolation reports whether err is a unique-constraint
// violation (SQLSTATE 23505).
func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
