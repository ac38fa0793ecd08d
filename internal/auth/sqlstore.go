package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

var _ Store = (*SQLStore)(nil)

// SQLStore implements Store over the request-bound tenant connection.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps a bound connection. The caller owns the connection's
// lifetime.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const principalColumns = `username, role, auth_token, auth_token_expiry, api_token, api_token_expiry`

func scanPrincipal(row *sql.Row) (*Principal, error) {
	var (
		p          Principal
		role       sql.NullString
		authToken  sql.NullString
		authExpiry sql.NullTime
		apiToken   sql.NullString
		apiExpiry  sql.NullTime
	)
	err := row.Scan(&p.Username, &role, &authToken, &authExpiry, &apiToken, &apiExpiry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Role = nullableString(role)
	p.AuthToken = nullableString(authToken)
	p.AuthTokenExpiry = nullableTime(authExpiry)
	p.APIToken = nullableString(apiToken)
	p.APITokenExpiry = nullableTime(apiExpiry)
	return &p, nil
}

func (s *SQLStore) FindByUsername(ctx context.Context, username string) (*Principal, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+principalColumns+` from users where username = ?`, username)
	return scanPrincipal(row)
}

func (s *SQLStore) FindByAuthToken(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`select `+principalColumns+` from users where auth_token = ?`, token)
	return scanPrincipal(row)
}

func (s *SQLStore) FindByAPIToken(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`select `+principalColumns+` from users where api_token = ?`, token)
	return scanPrincipal(row)
}

func (s *SQLStore) CreateOrGet(ctx context.Context, username string) (*Principal, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: empty username", ErrValidation)
	}
	existing, err := s.FindByUsername(ctx, username)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `insert into users(username) values(?)`, username)
	if err != nil && !isDuplicate(err) {
		return nil, err
	}
	// On a duplicate a concurrent first login won the insert; its row is
	// the principal.
	return s.FindByUsername(ctx, username)
}

func (s *SQLStore) Save(ctx context.Context, p *Principal) error {
	if p == nil || strings.TrimSpace(p.Username) == "" {
		return fmt.Errorf("%w: empty username", ErrValidation)
	}
	if !ValidRole(p.Role) {
		return fmt.Errorf("%w: unrecognized role %q", ErrValidation, *p.Role)
	}

	res, err := s.db.ExecContext(ctx, `
		update users
		set role = ?, auth_token = ?, auth_token_expiry = ?, api_token = ?, api_token_expiry = ?
		where username = ?`,
		nullString(p.Role), nullString(p.AuthToken), nullTime(p.AuthTokenExpiry),
		nullString(p.APIToken), nullTime(p.APITokenExpiry), p.Username,
	)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("%w: %s", ErrTokenCollision, p.Username)
		}
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// RowsAffected of zero can also mean a no-op update; confirm the
		// row exists before reporting not found.
		if _, ferr := s.FindByUsername(ctx, p.Username); errors.Is(ferr, ErrNotFound) {
			return ErrNotFound
		}
	}
	return nil
}

// isDuplicate recognizes unique constraint violations from both supported
// adapters (MySQL 1062, Postgres SQLSTATE 23505).
func isDuplicate(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return strings.Contains(err.Error(), "23505")
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullableTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func nullString(v *string) sql.NullString {
	if v == nil || *v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil || v.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}
