package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"MeetingPrep/internal/config"
)

// Dialect captures the differences between the supported SQL engines.
type Dialect struct {
	Name        string
	DriverName  string
	Placeholder sq.PlaceholderFormat
	idColumn    string
	floatType   string
}

var (
	SQLite = Dialect{
		Name:        "sqlite",
		DriverName:  "sqlite",
		Placeholder: sq.Question,
		idColumn:    "INTEGER PRIMARY KEY AUTOINCREMENT",
		floatType:   "REAL",
	}
	Postgres = Dialect{
		Name:        "postgres",
		DriverName:  "pgx",
		Placeholder: sq.Dollar,
		idColumn:    "BIGSERIAL PRIMARY KEY",
		floatType:   "DOUBLE PRECISION",
	}
)

// DB bundles a connection with its dialect-aware statement builder.
type DB struct {
	conn    *sql.DB
	dialect Dialect
	sb      sq.StatementBuilderType
}

// Open connects to the configured database and verifies connectivity.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	dialect, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	dsn := cfg.DSN
	if dialect.Name == SQLite.Name {
		dsn, err = sqliteDSN(cfg.DSN)
		if err != nil {
			return nil, err
		}
	}
	if dsn == "" {
		return nil, fmt.Errorf("%s DSN is empty", dialect.Name)
	}

	conn, err := sql.Open(dialect.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect.Name, err)
	}
	if dialect.Name == SQLite.Name {
		conn.SetMaxOpenConns(1)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect.Name, err)
	}

	return NewWithDB(conn, dialect), nil
}

// NewWithDB wires an existing connection.
func NewWithDB(conn *sql.DB, dialect Dialect) *DB {
	return &DB{
		conn:    conn,
		dialect: dialect,
		sb:      sq.StatementBuilder.PlaceholderFormat(dialect.Placeholder),
	}
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Ping checks connectivity for health reporting.
func (d *DB) Ping(ctx context.Context) error {
	return d.conn.PingContext(ctx)
}

// Migrate creates the schema if it does not exist yet.
func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range d.schema() {
		if _, err := d.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (d *DB) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS meetings (
			id ` + d.dialect.idColumn + `,
			calendar_event_id TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL DEFAULT '',
			scheduled_at BIGINT,
			attendees TEXT NOT NULL DEFAULT '[]',
			company TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			insights TEXT NOT NULL DEFAULT '[]',
			hooks TEXT NOT NULL DEFAULT '[]',
			competitors TEXT NOT NULL DEFAULT '[]',
			draft_ids TEXT NOT NULL DEFAULT '[]',
			notion_page_id TEXT,
			feedback_score INTEGER,
			feedback_notes TEXT,
			steering_version INTEGER,
			error_message TEXT,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_meetings_status ON meetings (status)`,
		`CREATE TABLE IF NOT EXISTS steering_profiles (
			id ` + d.dialect.idColumn + `,
			version INTEGER NOT NULL UNIQUE,
			product_focus TEXT NOT NULL DEFAULT '',
			icp TEXT NOT NULL DEFAULT '',
			key_pains TEXT NOT NULL DEFAULT '[]',
			disallowed_claims TEXT NOT NULL DEFAULT '[]',
			competitor_list TEXT NOT NULL DEFAULT '[]',
			weight_news ` + d.dialect.floatType + ` NOT NULL,
			weight_role_pains ` + d.dialect.floatType + ` NOT NULL,
			weight_competitors ` + d.dialect.floatType + ` NOT NULL,
			specificity_rules TEXT NOT NULL DEFAULT '[]',
			updated_at BIGINT NOT NULL
		)`,
	}
}

func dialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// sqliteDSN accepts a plain path or a sqlite:// URL and enables WAL and foreign keys.
func sqliteDSN(raw string) (string, error) {
	path := strings.TrimPrefix(raw, "sqlite://")
	if path == "" {
		return "", fmt.Errorf("sqlite path is empty")
	}
	if strings.HasPrefix(path, "file:") {
		return path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create sqlite dir: %w", err)
	}
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path), nil
}
