package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/gravitas-games/craftd/internal/inventory"
	"github.com/gravitas-games/craftd/internal/pkg/logger"
)

// dialect holds the statements that differ between drivers. Both SQLite and
// Postgres understand the same upsert, only the placeholders change.
type dialect struct {
	name   string
	schema string
	load   string
	save   string
}

var (
	sqliteDialect = dialect{
		name: "sqlite",
		schema: `CREATE TABLE IF NOT EXISTS inventories (
			owner TEXT NOT NULL,
			category TEXT NOT NULL,
			data TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (owner, category)
		);`,
		load: `SELECT data FROM inventories WHERE owner = ? AND category = ?;`,
		save: `INSERT INTO inventories (owner, category, data) VALUES (?, ?, ?)
			ON CONFLICT (owner, category) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP;`,
	}
	postgresDialect = dialect{
		name: "pgx",
		schema: `CREATE TABLE IF NOT EXISTS inventories (
			owner TEXT NOT NULL,
			category TEXT NOT NULL,
			data TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (owner, category)
		);`,
		load: `SELECT data FROM inventories WHERE owner = $1 AND category = $2;`,
		save: `INSERT INTO inventories (owner, category, data) VALUES ($1, $2, $3)
			ON CONFLICT (owner, category) DO UPDATE SET data = excluded.data, updated_at = NOW();`,
	}
)

// SQLStore keeps one JSON row per owner and category in SQLite or Postgres.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	log     *logger.Logger
}

// OpenSQLite opens (or creates) a SQLite database file.
func OpenSQLite(path string, l *logger.Logger) (*SQLStore, error) {
	if path == "" {
		return nil, errors.New("persistence: empty sqlite path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer; SQLite serializes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return newSQLStore(db, sqliteDialect, l)
}

// OpenPostgres connects through the pgx stdlib driver and pings the server.
func OpenPostgres(dsn string, l *logger.Logger) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	const defaultTimeout = 10 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("persistence: postgres ping: %w", err)
	}
	return newSQLStore(db, postgresDialect, l)
}

func newSQLStore(db *sql.DB, d dialect, l *logger.Logger) (*SQLStore, error) {
	if l == nil {
		l = logger.Nop()
	}
	if _, err := db.Exec(d.schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("persistence: init %s schema: %w", d.name, err)
	}
	return &SQLStore{db: db, dialect: d, log: l}, nil
}

// Load implements Store.
func (s *SQLStore) Load(ctx context.Context, owner inventory.OwnerID, category inventory.Category) (inventory.Snapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx, s.dialect.load, string(owner), string(category)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return inventory.Snapshot{}, ErrNotFound
	}
	if err != nil {
		s.log.Error("load inventory", zap.String("owner", string(owner)), zap.Error(err))
		return inventory.Snapshot{}, err
	}
	return decode([]byte(data))
}

// Save implements Store.
func (s *SQLStore) Save(ctx context.Context, owner inventory.OwnerID, category inventory.Category, snap inventory.Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.save, string(owner), string(category), string(data)); err != nil {
		s.log.Error("save inventory", zap.String("owner", string(owner)), zap.Error(err))
		return err
	}
	return nil
}

// Close implements Store.
func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
