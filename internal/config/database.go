package config

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver registered as "pgx"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver registered as "postgres"
)

// Constraint names referenced by the repository's error mapping.
const (
	ConstraintUserEmail         = "users_email_lower_key"
	ConstraintCategoryName      = "categories_name_key"
	ConstraintBookCategory      = "books_category_id_fkey"
	ConstraintBookCopies        = "books_copies_check"
	ConstraintLoanUser          = "loans_user_id_fkey"
	ConstraintLoanBook          = "loans_book_id_fkey"
	ConstraintOneActiveLoan     = "loans_one_active_per_user"
	ConstraintLoanStatusAllowed = "loans_status_check"
)

// SetupDatabase initializes the database connection and applies the schema
func SetupDatabase(cfg *Config) (*sqlx.DB, error) {
	db, err := Connect(&cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := Migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// Connect opens a pooled connection with the configured driver
func Connect(cfg *DatabaseConfig) (*sqlx.DB, error) {
	driver := cfg.Driver
	switch driver {
	case "", "postgres", "pq":
		driver = "postgres"
	case "pgx":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(36) PRIMARY KEY,
		full_name VARCHAR(100) NOT NULL,
		email VARCHAR(255) NOT NULL,
		password VARCHAR(255) NOT NULL,
		role VARCHAR(20) NOT NULL DEFAULT 'User' CHECK (role IN ('User', 'Admin')),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ` + ConstraintUserEmail + ` ON users (lower(email))`,

	`CREATE TABLE IF NOT EXISTS categories (
		id VARCHAR(36) PRIMARY KEY,
		name VARCHAR(50) NOT NULL,
		description VARCHAR(200) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT ` + ConstraintCategoryName + ` UNIQUE (name)
	)`,

	`CREATE TABLE IF NOT EXISTS books (
		id VARCHAR(36) PRIMARY KEY,
		title VARCHAR(200) NOT NULL,
		author VARCHAR(100) NOT NULL,
		category_id VARCHAR(36) NOT NULL,
		total_copies INTEGER NOT NULL,
		available_copies INTEGER NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT ` + ConstraintBookCategory + ` FOREIGN KEY (category_id)
			REFERENCES categories(id) ON DELETE RESTRICT,
		CONSTRAINT ` + ConstraintBookCopies + ` CHECK (
			total_copies >= 1 AND available_copies >= 0 AND available_copies <= total_copies
		)
	)`,

	// Loans cascade with their user and their book.
	`CREATE TABLE IF NOT EXISTS loans (
		id VARCHAR(36) PRIMARY KEY,
		user_id VARCHAR(36) NOT NULL,
		book_id VARCHAR(36) NOT NULL,
		borrow_date TIMESTAMPTZ NOT NULL,
		due_date TIMESTAMPTZ NOT NULL,
		return_date TIMESTAMPTZ,
		status VARCHAR(20) NOT NULL DEFAULT 'Borrowed',
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT ` + ConstraintLoanUser + ` FOREIGN KEY (user_id)
			REFERENCES users(id) ON DELETE CASCADE,
		CONSTRAINT ` + ConstraintLoanBook + ` FOREIGN KEY (book_id)
			REFERENCES books(id) ON DELETE CASCADE,
		CONSTRAINT ` + ConstraintLoanStatusAllowed + ` CHECK (status IN ('Borrowed', 'Overdue', 'Returned'))
	)`,
	// At most one active loan per user, enforced by the database itself.
	`CREATE UNIQUE INDEX IF NOT EXISTS ` + ConstraintOneActiveLoan + `
		ON loans (user_id) WHERE status IN ('Borrowed', 'Overdue')`,

	`CREATE TABLE IF NOT EXISTS loan_events (
		id VARCHAR(36) PRIMARY KEY,
		loan_id VARCHAR(36) NOT NULL,
		event_type VARCHAR(30) NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL,
		payload JSONB NOT NULL
	)`,
}

var indexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_books_category_id ON books(category_id)",
	"CREATE INDEX IF NOT EXISTS idx_books_title ON books(title)",
	"CREATE INDEX IF NOT EXISTS idx_loans_book_id ON loans(book_id)",
	"CREATE INDEX IF NOT EXISTS idx_loans_status_due ON loans(status, due_date)",
	"CREATE INDEX IF NOT EXISTS idx_loans_borrow_date ON loans(borrow_date DESC)",
	"CREATE INDEX IF NOT EXISTS idx_loan_events_loan_id ON loan_events(loan_id, occurred_at)",
}

// Migrate creates the tables, constraints and indexes if they don't exist
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	for _, idx := range indexes {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			// Don't return error here, these indexes only speed up reads
			slog.Warn("failed to create index", "statement", idx, "error", err)
		}
	}

	return nil
}
