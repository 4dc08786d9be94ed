package token

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"

	"brokergate/internal/errors"
)

var _ Repo = (*MySQLRepo)(nil)

const mysqlPingTimeout = 5 * time.Second

// MySQLRepo stores token records in MySQL. It expects the following table
// to exist:
//
//	CREATE TABLE token_record (
//	    session_key   VARCHAR(191) NOT NULL PRIMARY KEY,
//	    access_token  TEXT NOT NULL,
//	    refresh_token TEXT NOT NULL,
//	    expires_at    DATETIME(3) NOT NULL,
//	    updated_at    DATETIME(3) NOT NULL
//	);
type MySQLRepo struct {
	db *sql.DB
}

// NewMySQLRepo opens a connection for the given DSN and verifies it.
// ParseTime is forced on so expires_at scans into time.Time.
func NewMySQLRepo(ctx context.Context, dsn string) (*MySQLRepo, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "[NewMySQLRepo] parse dsn")
	}
	cfg.ParseTime = true

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, errors.Wrapf(err, "[NewMySQLRepo] open mysql connection")
	}

	ctx, cancel := context.WithTimeout(ctx, mysqlPingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "[NewMySQLRepo] ping mysql")
	}

	return NewMySQLRepoWithDB(db), nil
}

// NewMySQLRepoWithDB wraps an already-open database handle. Useful for
// testing with sqlmock or for sharing one pool across repositories.
func NewMySQLRepoWithDB(db *sql.DB) *MySQLRepo {
	return &MySQLRepo{db: db}
}

// Has reports whether a record exists for the session key, stale or not
func (r *MySQLRepo) Has(ctx context.Context, sessionKey string) (bool, error) {
	if sessionKey == "" {
		return false, errors.New("sessionKey cannot be empty")
	}

	var one int
	err := r.db.QueryRowContext(ctx, `
        SELECT 1
        FROM token_record
        WHERE session_key = ?
    `, sessionKey).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, errors.Wrapf(err, "[MySQLRepo Has] %s", sessionKey)
	}
	return true, nil
}

// Get retrieves the record for a session key
func (r *MySQLRepo) Get(ctx context.Context, sessionKey string) (*Record, error) {
	if sessionKey == "" {
		return nil, errors.New("sessionKey cannot be empty")
	}

	var record Record
	err := r.db.QueryRowContext(ctx, `
        SELECT access_token, refresh_token, expires_at
        FROM token_record
        WHERE session_key = ?
    `, sessionKey).Scan(&record.AccessToken, &record.RefreshToken, &record.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrNoStoredToken
		}
		return nil, errors.Wrapf(err, "[MySQLRepo Get] %s", sessionKey)
	}
	return &record, nil
}

// Set stores or replaces the record for a session key
func (r *MySQLRepo) Set(ctx context.Context, sessionKey string, record *Record) error {
	if sessionKey == "" {
		return errors.New("sessionKey cannot be empty")
	}
	if record == nil {
		return errors.New("record cannot be nil")
	}

	_, err := r.db.ExecContext(ctx, `
        REPLACE INTO token_record (
            session_key,
            access_token,
            refresh_token,
            expires_at,
            updated_at
        ) VALUES (?, ?, ?, ?, ?)
    `,
		sessionKey,
		record.AccessToken,
		record.RefreshToken,
		record.ExpiresAt.UTC(),
		time.Now().UTC(),
	)
	if err != nil {
		return errors.Wrapf(err, "[MySQLRepo Set] %s", sessionKey)
	}
	return nil
}

// Delete removes the record for a session key. Deleting a key with no
// record is not an error.
func (r *MySQLRepo) Delete(ctx context.Context, sessionKey string) error {
	if sessionKey == "" {
		return errors.New("sessionKey cannot be empty")
	}

	_, err := r.db.ExecContext(ctx, `
        DELETE FROM token_record
        WHERE session_key = ?
    `, sessionKey)
	if err != nil {
		return errors.Wrapf(err, "[MySQLRepo Delete] %s", sessionKey)
	}
	return nil
}

// Close releases the underlying connection pool
func (r *MySQLRepo) Close() error {
	return r.db.Close()
}
