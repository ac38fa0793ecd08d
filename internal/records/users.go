package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"arcturus.sanger.ac.uk/internal/auth"
)

// User is the administrative view of a principal row: no tokens.
type User struct {
	Username string  `json:"username"`
	Role     *string `json:"role,omitempty"`
}

// ListUsers returns every account except the batch 'assembler' role,
// which is reserved for pipeline jobs and never shown to curators.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		select username, role from users
		where role is null or role != 'assembler'
		order by username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []User
	for rows.Next() {
		var u User
		var role sql.NullString
		if err := rows.Scan(&u.Username, &role); err != nil {
			return nil, err
		}
		u.Role = nullableString(role)
		res = append(res, u)
	}
	return res, rows.Err()
}

func (s *Store) GetUser(ctx context.Context, username string) (User, error) {
	var u User
	var role sql.NullString
	err := s.db.QueryRowContext(ctx, `
		select username, role from users where username = ?
	`, username).Scan(&u.Username, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	u.Role = nullableString(role)
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, username, role string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return User{}, fmt.Errorf("%w: username required", ErrInvalid)
	}
	role = normalizeRole(role)
	if !auth.ValidRole(&role) {
		return User{}, fmt.Errorf("%w: unrecognized role %q", ErrInvalid, role)
	}
	_, err := s.db.ExecContext(ctx, `
		insert into users (username, role) values (?, ?)
	`, username, nullString(role))
	if err != nil {
		return User{}, err
	}
	u := User{Username: username}
	if role != "" {
		u.Role = &role
	}
	return u, nil
}

func (s *Store) UpdateUserRole(ctx context.Context, username, role string) (User, error) {
	role = normalizeRole(role)
	if !auth.ValidRole(&role) {
		return User{}, fmt.Errorf("%w: unrecognized role %q", ErrInvalid, role)
	}
	res, err := s.db.ExecContext(ctx, `
		update users set role = ? where username = ?
	`, nullString(role), username)
	if err != nil {
		return User{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetUser(ctx, username); err != nil {
			return User{}, err
		}
	}
	return s.GetUser(ctx, username)
}

func (s *Store) DeleteUser(ctx context.Context, username string) error {
	res, err := s.db.ExecContext(ctx, `delete from users where username = ?`, username)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// normalizeRole maps the UI's 'none' placeholder to the empty role.
func normalizeRole(role string) string {
	role = strings.TrimSpace(role)
	if role == "none" {
		return ""
	}
	return role
}
