package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

var _ AccountRepository = (*AccountRepositoryImpl)(nil)

// AccountRepositoryImpl handles database operations for platform accounts.
// The pipeline only reads credential bundles here; login flows that produce
// them live outside the service.
type AccountRepositoryImpl struct {
	db *DB
}

func NewAccountRepository(db *DB) *AccountRepositoryImpl {
	return &AccountRepositoryImpl{db: db}
}

const accountColumns = `id, platform, username, login_type, login_status,
	last_login_at, last_error, cookies, is_active, created_at, updated_at`

// GetActiveCredential returns the active online account for a platform,
// or nil when none is available.
func (r *AccountRepositoryImpl) GetActiveCredential(platform string) (*Account, error) {
	row := r.db.QueryRow(`
		SELECT `+accountColumns+`
		FROM platform_accounts
		WHERE platform = ? AND is_active = 1 AND login_status = ?
		ORDER BY id
		LIMIT 1
	`, platform, LoginStatusOnline)

	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active credential: %w", err)
	}
	return &account, nil
}

func (r *AccountRepositoryImpl) ListAccounts() ([]Account, error) {
	rows, err := r.db.Query(`
		SELECT ` + accountColumns + `
		FROM platform_accounts
		ORDER BY platform, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account row: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account rows: %w", err)
	}
	return accounts, nil
}

// UpsertAccount stores a credential bundle handed over by the external
// login tooling, keyed by (platform, username).
func (r *AccountRepositoryImpl) UpsertAccount(account Account) (int64, error) {
	var cookiesJSON interface{}
	if account.Cookies != nil {
		data, err := json.Marshal(account.Cookies)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal cookies: %w", err)
		}
		cookiesJSON = string(data)
	}

	var lastLoginAt interface{}
	if account.LastLoginAt != nil {
		lastLoginAt = *account.LastLoginAt
	}

	_, err := r.db.Exec(`
		INSERT INTO platform_accounts (platform, username, login_type, login_status, last_login_at, last_error, cookies, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(platform, username) DO UPDATE SET
			login_type = excluded.login_type,
			login_status = excluded.login_status,
			last_login_at = excluded.last_login_at,
			last_error = excluded.last_error,
			cookies = excluded.cookies,
			is_active = excluded.is_active,
			updated_at = ?
	`, account.Platform, account.Username, account.LoginType, account.LoginStatus,
		lastLoginAt, account.LastError, cookiesJSON, account.IsActive, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to upsert account: %w", err)
	}

	var id int64
	err = r.db.QueryRow(`
		SELECT id FROM platform_accounts WHERE platform = ? AND username = ?
	`, account.Platform, account.Username).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to get account id: %w", err)
	}
	return id, nil
}

func scanAccount(row rowScanner) (Account, error) {
	var account Account
	var lastLoginAt sql.NullTime
	var cookies sql.NullString

	err := row.Scan(
		&account.ID, &account.Platform, &account.Username, &account.LoginType,
		&account.LoginStatus, &lastLoginAt, &account.LastError, &cookies,
		&account.IsActive, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return account, err
	}

	if lastLoginAt.Valid {
		account.LastLoginAt = &lastLoginAt.Time
	}
	if cookies.Valid && cookies.String != "" {
		if err := json.Unmarshal([]byte(cookies.String), &account.Cookies); err != nil {
			return account, fmt.Errorf("failed to unmarshal cookies: %w", err)
		}
	}
	return account, nil
}
