package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"authgate/core"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema/sqlite/schema.sql
var sqliteSchema string

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	repo := &SQLiteRepository{db: db}

	if err := repo.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) initSchema() error {
	_, err := r.db.Exec(sqliteSchema)
	return err
}

const identityColumns = "id, username, email, password_hash, role, department_id, auth_mode, created_at"

func (r *SQLiteRepository) scanIdentity(row *sql.Row) (*core.Identity, error) {
	var identity core.Identity
	var idStr string
	var email, passwordHash sql.NullString
	var departmentID sql.NullInt64
	var role, authMode string
	var createdAt int64

	err := row.Scan(&idStr, &identity.Username, &email, &passwordHash, &role, &departmentID, &authMode, &createdAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	identity.ID = uuid.MustParse(idStr)
	identity.Role = core.Role(role)
	identity.AuthMode = core.AuthMode(authMode)
	identity.CreatedAt = time.Unix(createdAt, 0)
	if email.Valid {
		identity.Email = &email.String
	}
	if passwordHash.Valid && passwordHash.String != "" {
		identity.PasswordHash = &passwordHash.String
	}
	if departmentID.Valid {
		identity.DepartmentID = &departmentID.Int64
	}

	return &identity, nil
}

func (r *SQLiteRepository) FindIdentityByID(ctx context.Context, id uuid.UUID) (*core.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE id = ?`
	return r.scanIdentity(r.db.QueryRowContext(ctx, query, id.String()))
}

func (r *SQLiteRepository) FindIdentityByUsername(ctx context.Context, username string) (*core.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE username = ?`
	return r.scanIdentity(r.db.QueryRowContext(ctx, query, username))
}

func (r *SQLiteRepository) FindIdentityByEmail(ctx context.Context, email string) (*core.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE email = ?`
	return r.scanIdentity(r.db.QueryRowContext(ctx, query, email))
}

func (r *SQLiteRepository) CreateIdentity(ctx context.Context, identity *core.Identity) error {
	query := `
		INSERT INTO identities (id, username, email, password_hash, role, department_id, auth_mode, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		identity.ID.String(),
		identity.Username,
		nullString(identity.Email),
		nullString(identity.PasswordHash),
		string(identity.Role),
		nullInt64(identity.DepartmentID),
		string(identity.AuthMode),
		identity.CreatedAt.Unix(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return core.ErrAlreadyExists
		}
		return err
	}

	return nil
}

func (r *SQLiteRepository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE identities SET password_hash = ? WHERE id = ?`, hash, id.String())
	if err != nil {
		return err
	}
	return requireRowsAffected(result)
}

func (r *SQLiteRepository) UpdateAuthMode(ctx context.Context, id uuid.UUID, mode core.AuthMode) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE identities SET auth_mode = ? WHERE id = ?`, string(mode), id.String())
	if err != nil {
		return err
	}
	return requireRowsAffected(result)
}

const oauthAccountColumns = "id, identity_id, provider, subject_id, email, display_name, profile_photo, access_token, refresh_token, created_at"

func (r *SQLiteRepository) FindOAuthAccount(ctx context.Context, provider core.Provider, subjectID string) (*core.OAuthAccount, error) {
	query := `SELECT ` + oauthAccountColumns + ` FROM oauth_accounts WHERE provider = ? AND subject_id = ?`

	var account core.OAuthAccount
	var identityIDStr, providerStr string
	var createdAt int64

	err := r.db.QueryRowContext(ctx, query, string(provider), subjectID).Scan(
		&account.ID,
		&identityIDStr,
		&providerStr,
		&account.SubjectID,
		&account.Email,
		&account.DisplayName,
		&account.ProfilePhoto,
		&account.AccessToken,
		&account.RefreshToken,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	account.IdentityID = uuid.MustParse(identityIDStr)
	account.Provider = core.Provider(providerStr)
	account.CreatedAt = time.Unix(createdAt, 0)

	return &account, nil
}

func (r *SQLiteRepository) ListOAuthAccounts(ctx context.Context, identityID uuid.UUID) ([]core.OAuthAccount, error) {
	query := `SELECT ` + oauthAccountColumns + ` FROM oauth_accounts WHERE identity_id = ? ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, identityID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []core.OAuthAccount{}
	for rows.Next() {
		var account core.OAuthAccount
		var identityIDStr, providerStr string
		var createdAt int64

		err := rows.Scan(
			&account.ID,
			&identityIDStr,
			&providerStr,
			&account.SubjectID,
			&account.Email,
			&account.DisplayName,
			&account.ProfilePhoto,
			&account.AccessToken,
			&account.RefreshToken,
			&createdAt,
		)
		if err != nil {
			return nil, err
		}

		account.IdentityID = uuid.MustParse(identityIDStr)
		account.Provider = core.Provider(providerStr)
		account.CreatedAt = time.Unix(createdAt, 0)
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

func (r *SQLiteRepository) CreateOAuthAccount(ctx context.Context, account *core.OAuthAccount) error {
	query := `
		INSERT INTO oauth_accounts (identity_id, provider, subject_id, email, display_name, profile_photo, access_token, refresh_token, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		account.IdentityID.String(),
		string(account.Provider),
		account.SubjectID,
		account.Email,
		account.DisplayName,
		account.ProfilePhoto,
		account.AccessToken,
		account.RefreshToken,
		account.CreatedAt.Unix(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return core.ErrAlreadyExists
		}
		return err
	}

	account.ID, err = result.LastInsertId()
	return err
}

func (r *SQLiteRepository) UpdateOAuthAccountTokens(ctx context.Context, accountID int64, accessToken, refreshToken string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE oauth_accounts SET access_token = ?, refresh_token = ? WHERE id = ?`,
		accessToken, refreshToken, accountID)
	if err != nil {
		return err
	}
	return requireRowsAffected(result)
}

func (r *SQLiteRepository) DeleteOAuthAccount(ctx context.Context, identityID uuid.UUID, provider core.Provider) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM oauth_accounts WHERE identity_id = ? AND provider = ?`,
		identityID.String(), string(provider))
	if err != nil {
		return err
	}
	return requireRowsAffected(result)
}

func (r *SQLiteRepository) CreateRefreshToken(ctx context.Context, token *core.RefreshToken) error {
	query := `INSERT INTO refresh_tokens (token, identity_id, created_at) VALUES (?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		token.Token,
		token.IdentityID.String(),
		token.CreatedAt.Unix(),
	)
	if err != nil && isUniqueConstraintError(err) {
		return core.ErrAlreadyExists
	}
	return err
}

func (r *SQLiteRepository) RefreshTokenExists(ctx context.Context, token string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM refresh_tokens WHERE token = ?`, token).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *SQLiteRepository) DeleteRefreshToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token = ?`, token)
	return err
}

func (r *SQLiteRepository) DeleteAllRefreshTokens(ctx context.Context, identityID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE identity_id = ?`, identityID.String())
	return err
}

func (r *SQLiteRepository) DepartmentName(ctx context.Context, id int64) (string, error) {
	var name string
	err := r.db.QueryRowContext(ctx,
		`SELECT name FROM departments WHERE id = ?`, id).Scan(&name)
	if err == sql.ErrNoRows {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

func requireRowsAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return core.ErrNotFound
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt64(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	return strings.Contains(errMsg, "UNIQUE constraint failed") ||
		strings.Contains(errMsg, "UNIQUE") ||
		strings.Contains(errMsg, "unique")
}
