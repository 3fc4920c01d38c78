package session

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore persists checkout sessions in PostgreSQL, for deployments
// where requests may land on any instance.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	store := &PostgresStore{db: db}
	if err := store.ensureSchema(); err != nil {
		return nil, err
	}
	return store, nil
}

func (p *PostgresStore) ensureSchema() error {
	_, err := p.db.Exec(`
		CREATE TABLE IF NOT EXISTS checkout_sessions (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL,
			current     INT NOT NULL,
			max_visited INT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL,
			expires_at  TIMESTAMPTZ NOT NULL
		)
	`)
	return err
}

func (p *PostgresStore) Save(s *CheckoutSession) error {
	_, err := p.db.Exec(`
		INSERT INTO checkout_sessions (id, user_id, current, max_visited, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			current = EXCLUDED.current,
			max_visited = EXCLUDED.max_visited,
			updated_at = EXCLUDED.updated_at,
			expires_at = EXCLUDED.expires_at
	`, s.ID, s.UserID, s.Current, s.MaxVisited, s.CreatedAt, s.UpdatedAt, s.ExpiresAt)
	return err
}

func (p *PostgresStore) Get(id string) (*CheckoutSession, bool, error) {
	var s CheckoutSession
	err := p.db.QueryRow(`
		SELECT id, user_id, current, max_visited, created_at, updated_at, expires_at
		FROM checkout_sessions WHERE id = $1 AND expires_at > NOW()
	`, id).Scan(&s.ID, &s.UserID, &s.Current, &s.MaxVisited, &s.CreatedAt, &s.UpdatedAt, &s.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &s, true, nil
}

func (p *PostgresStore) Delete(id string) error {
	_, err := p.db.Exec(`DELETE FROM checkout_sessions WHERE id = $1`, id)
	return err
}

func (p *PostgresStore) DeleteExpired() error {
	_, err := p.db.Exec(`DELETE FROM checkout_sessions WHERE expires_at < NOW()`)
	return err
}

// Connect establishes a pooled PostgreSQL connection.
func Connect(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}
