package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrationsFS embed.FS

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint rejects an insert.
	ErrDuplicate = errors.New("already exists")
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
)

// Config selects the database. DSN is a file path for sqlite.
type Config struct {
	Type string
	DSN  string
}

// Repository stores users, generated questions and saved reports.
type Repository struct {
	db      *sqlx.DB
	dialect string
	logger  *zap.Logger
}

// Open connects to the database and applies pending migrations.
func Open(cfg Config, logger *zap.Logger) (*Repository, error) {
	dsn := cfg.DSN
	switch cfg.Type {
	case DialectSQLite:
		if !strings.Contains(dsn, "?") {
			dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
		}
	case DialectPostgres, DialectMySQL:
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}

	db, err := sqlx.Connect(cfg.Type, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.Type == DialectSQLite {
		// one writer at a time, avoids SQLITE_BUSY under concurrent requests
		db.SetMaxOpenConns(1)
	}

	repo := &Repository{
		db:      db,
		dialect: cfg.Type,
		logger:  logger,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("Repository initialized", zap.String("type", cfg.Type))

	return repo, nil
}

func (r *Repository) migrate() error {
	var (
		driver database.Driver
		err    error
	)
	switch r.dialect {
	case DialectSQLite:
		driver, err = sqlite.WithInstance(r.db.DB, &sqlite.Config{})
	case DialectPostgres:
		driver, err = postgres.WithInstance(r.db.DB, &postgres.Config{})
	case DialectMySQL:
		driver, err = migratemysql.WithInstance(r.db.DB, &migratemysql.Config{})
	}
	if err != nil {
		return fmt.Errorf("couldn't get database instance for migrations: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations/"+r.dialect)
	if err != nil {
		return fmt.Errorf("couldn't read embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, r.dialect, driver)
	if err != nil {
		return fmt.Errorf("couldn't create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	version, dirty, _ := m.Version()
	r.logger.Info("Database migration complete",
		zap.Uint("version", version),
		zap.Bool("dirty", dirty))

	return nil
}

// Ping checks the connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// insert runs an INSERT and returns the generated id. Postgres has no
// LastInsertId, so the id comes back through RETURNING there.
func (r *Repository) insert(ctx context.Context, query string, args ...interface{}) (int64, error) {
	query = r.db.Rebind(query)

	if r.dialect == DialectPostgres {
		var id int64
		if err := r.db.QueryRowxContext(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return id, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
