package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rturner/choreboard/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var perms string
	err := scanner.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.PINHash, &perms, &u.Disabled, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(perms), &u.Permissions); err != nil {
		return nil, fmt.Errorf("decode permissions: %w", err)
	}
	return &u, nil
}

const userCols = `id, username, password_hash, pin_hash, permissions, disabled, created_at, updated_at`

func (s *UserStore) Create(username, passwordHash, pinHash string, permissions []string) (*model.User, error) {
	perms, err := json.Marshal(permissions)
	if err != nil {
		return nil, fmt.Errorf("encode permissions: %w", err)
	}
	result, err := s.db.Exec(
		`INSERT INTO users (username, password_hash, pin_hash, permissions) VALUES (?, ?, ?, ?)`,
		username, passwordHash, pinHash, string(perms),
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetByUsername matches case-insensitively; the username column is COLLATE NOCASE.
func (s *UserStore) GetByUsername(username string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

func (s *UserStore) List() ([]*model.User, error) {
	rows, err := s.db.Query(`SELECT ` + userCols + ` FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *UserStore) Update(id int64, username string, permissions []string) (*model.User, error) {
	perms, err := json.Marshal(permissions)
	if err != nil {
		return nil, fmt.Errorf("encode permissions: %w", err)
	}
	_, err = s.db.Exec(
		`UPDATE users SET username = ?, permissions = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		username, string(perms), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) SetPasswordHash(id int64, hash string) error {
	_, err := s.db.Exec(
		`UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		hash, id,
	)
	if err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}
	return nil
}

func (s *UserStore) SetPINHash(id int64, hash string) error {
	_, err := s.db.Exec(
		`UPDATE users SET pin_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		hash, id,
	)
	if err != nil {
		return fmt.Errorf("set pin hash: %w", err)
	}
	return nil
}

// SetDisabled toggles whether an account can log in. Accounts are never
// hard-deleted: completion history references the completer, so removal
// goes through here instead.
func (s *UserStore) SetDisabled(id int64, disabled bool) error {
	_, err := s.db.Exec(
		`UPDATE users SET disabled = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		disabled, id,
	)
	if err != nil {
		return fmt.Errorf("set disabled: %w", err)
	}
	return nil
}
