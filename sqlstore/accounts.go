package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"taskboard/domain"
)

// InsertAccount registers credentials keyed by normalized email.
func (s *Store) InsertAccount(ctx context.Context, a domain.Account) error {
	_, err := s.exec(ctx, `INSERT INTO accounts (email, user_id, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		domain.NormalizeEmail(a.Email), a.UserID, a.PasswordHash, formatTime(a.CreatedAt))
	if isUniqueViolation(err) {
		return &domain.ValidationError{Fields: map[string]string{"email": "Email is already registered"}}
	}
	return mapErr("insert account", err)
}

// GetAccount looks up credentials by email.
func (s *Store) GetAccount(ctx context.Context, email string) (domain.Account, error) {
	email = domain.NormalizeEmail(email)
	var a domain.Account
	var created string
	err := s.queryRow(ctx, `SELECT email, user_id, password_hash, created_at FROM accounts WHERE email = ?`, email).
		Scan(&a.Email, &a.UserID, &a.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Account{}, &domain.NotFoundError{Kind: "account", ID: email}
	}
	if err != nil {
		return domain.Account{}, mapErr("get account", err)
	}
	if a.CreatedAt, err = parseTime(created); err != nil {
		return domain.Account{}, err
	}
	return a, nil
}

// UpdatePasswordHash replaces the stored hash.
func (s *Store) UpdatePasswordHash(ctx context.Context, email, hash string) error {
	email = domain.NormalizeEmail(email)
	res, err := s.exec(ctx, `UPDATE accounts SET password_hash = ? WHERE email = ?`, hash, email)
	if err != nil {
		return mapErr("update account", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &domain.NotFoundError{Kind: "account", ID: email}
	}
	return nil
}

// DeleteAccount removes the credentials row.
func (s *Store) DeleteAccount(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	res, err := s.exec(ctx, `DELETE FROM accounts WHERE email = ?`, email)
	if err != nil {
		return mapErr("delete account", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &domain.NotFoundError{Kind: "account", ID: email}
	}
	return nil
}

// UpsertProfile creates or replaces the public profile row.
func (s *Store) UpsertProfile(ctx context.Context, p domain.Profile) error {
	_, err := s.exec(ctx, `INSERT INTO profiles (id, email, full_name, username, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET email = excluded.email, full_name = excluded.full_name, username = excluded.username`,
		p.UserID, p.Email, p.FullName, p.Username, formatTime(p.CreatedAt))
	return mapErr("upsert profile", err)
}

// GetProfile returns the profile row of userID.
func (s *Store) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	var p domain.Profile
	var created string
	err := s.queryRow(ctx, `SELECT id, email, full_name, username, created_at FROM profiles WHERE id = ?`, userID).
		Scan(&p.UserID, &p.Email, &p.FullName, &p.Username, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Profile{}, &domain.NotFoundError{Kind: "profile", ID: userID}
	}
	if err != nil {
		return domain.Profile{}, mapErr("get profile", err)
	}
	if p.CreatedAt, err = parseTime(created); err != nil {
		return domain.Profile{}, err
	}
	return p, nil
}

// DeleteProfile removes the profile row. A missing row is not an error.
func (s *Store) DeleteProfile(ctx context.Context, userID string) error {
	_, err := s.exec(ctx, `DELETE FROM profiles WHERE id = ?`, userID)
	return mapErr("delete profile", err)
}

// GetTheme returns the stored theme of userID, or "" when none was saved.
func (s *Store) GetTheme(ctx context.Context, userID string) (domain.Theme, error) {
	var value string
	err := s.queryRow(ctx, `SELECT value FROM settings WHERE user_id = ? AND key = ?`, userID, domain.ThemeKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", mapErr("get settings", err)
	}
	return domain.Theme(value), nil
}

// SaveTheme stores theme under the owner's theme key.
func (s *Store) SaveTheme(ctx context.Context, userID string, theme domain.Theme) error {
	_, err := s.exec(ctx, `INSERT INTO settings (user_id, key, value) VALUES (?, ?, ?)
		ON CONFLICT (user_id, key) DO UPDATE SET value = excluded.value`, userID, domain.ThemeKey, string(theme))
	return mapErr("save settings", err)
}
