package network

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// DBFileName is the name of the database file inside the data directory.
const DBFileName = "networks.db"

// SQLiteStore implements NetworkStore on a single SQLite database file.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (creating if needed) dataDir/networks.db.
func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBFileName)
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// SaveNetwork replaces the named network's nodes and relations in one
// transaction. The original created_at is kept on overwrite.
func (s *SQLiteStore) SaveNetwork(ctx context.Context, n *Network) error {
	if n == nil || n.Name == "" {
		return fmt.Errorf("network name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save network: begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO networks (name, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET updated_at = excluded.updated_at`,
		n.Name, now, now); err != nil {
		return fmt.Errorf("save network %q: %w", n.Name, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE network = ?`, n.Name); err != nil {
		return fmt.Errorf("save network %q: clear nodes: %w", n.Name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM relations WHERE network = ?`, n.Name); err != nil {
		return fmt.Errorf("save network %q: clear relations: %w", n.Name, err)
	}

	for _, id := range n.Nodes() {
		var value sql.NullFloat64
		if v, ok := n.values[id]; ok {
			value = sql.NullFloat64{Float64: v, Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO nodes (network, id, value) VALUES (?, ?, ?)`,
			n.Name, id, value); err != nil {
			return fmt.Errorf("save network %q: node %s: %w", n.Name, id, err)
		}
	}

	for _, r := range n.Relations() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO relations (network, a, b, weight) VALUES (?, ?, ?, ?)`,
			n.Name, r.A, r.B, r.Weight); err != nil {
			return fmt.Errorf("save network %q: relation %s-%s: %w", n.Name, r.A, r.B, err)
		}
	}

	return tx.Commit()
}

// LoadNetwork reads the named network.
func (s *SQLiteStore) LoadNetwork(ctx context.Context, name string) (*Network, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM networks WHERE name = ?`, name).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", name, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("load %q: %w", name, ErrNotFound)
	}

	n := New(name)

	rows, err := s.db.QueryContext(ctx, `SELECT id, value FROM nodes WHERE network = ?`, name)
	if err != nil {
		return nil, fmt.Errorf("load %q: query nodes: %w", name, err)
	}
	for rows.Next() {
		var id string
		var value sql.NullFloat64
		if err := rows.Scan(&id, &value); err != nil {
			rows.Close()
			return nil, fmt.Errorf("load %q: scan node: %w", name, err)
		}
		n.nodes[id] = struct{}{}
		if value.Valid {
			n.values[id] = value.Float64
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load %q: nodes: %w", name, err)
	}

	relRows, err := s.db.QueryContext(ctx, `SELECT a, b, weight FROM relations WHERE network = ?`, name)
	if err != nil {
		return nil, fmt.Errorf("load %q: query relations: %w", name, err)
	}
	defer relRows.Close()
	for relRows.Next() {
		var r Relation
		if err := relRows.Scan(&r.A, &r.B, &r.Weight); err != nil {
			return nil, fmt.Errorf("load %q: scan relation: %w", name, err)
		}
		if err := n.AddRelation(r.A, r.B, r.Weight); err != nil {
			return nil, fmt.Errorf("load %q: %w", name, err)
		}
	}
	if err := relRows.Err(); err != nil {
		return nil, fmt.Errorf("load %q: relations: %w", name, err)
	}

	return n, nil
}

// ListNetworks returns summaries sorted by name.
func (s *SQLiteStore) ListNetworks(ctx context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT n.name, n.updated_at,
		       (SELECT COUNT(*) FROM nodes WHERE network = n.name),
		       (SELECT COUNT(*) FROM relations WHERE network = n.name)
		FROM networks n
		ORDER BY n.name`)
	if err != nil {
		return nil, fmt.Errorf("list networks: %w", err)
	}
	defer rows.Close()

	out := make([]Summary, 0)
	for rows.Next() {
		var sum Summary
		var updated string
		if err := rows.Scan(&sum.Name, &updated, &sum.NodeCount, &sum.RelationCount); err != nil {
			return nil, fmt.Errorf("list networks: scan: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
			sum.UpdatedAt = t
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// DeleteNetwork removes the named network; nodes and relations cascade.
func (s *SQLiteStore) DeleteNetwork(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM networks WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete %q: %w", name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %q: %w", name, err)
	}
	if affected == 0 {
		return fmt.Errorf("delete %q: %w", name, ErrNotFound)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
