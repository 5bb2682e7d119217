package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rongwang/library-server/internal/models"
)

// Repository interface defines the methods that any repository implementation must satisfy
type Repository interface {
	Ping(ctx context.Context) error

	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListMembers(ctx context.Context) ([]models.MemberSummary, error)
	CountMembers(ctx context.Context) (int, error)

	// Category operations
	CreateCategory(ctx context.Context, category *models.Category) error
	UpdateCategory(ctx context.Context, category *models.Category) error
	DeleteCategory(ctx context.Context, id string) error
	GetCategory(ctx context.Context, id string) (*models.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)

	// Book operations
	CreateBook(ctx context.Context, book *models.Book) error
	UpdateBook(ctx context.Context, book *models.Book) error
	DeleteBook(ctx context.Context, id string) error
	GetBook(ctx context.Context, id string) (*models.Book, error)
	SearchBooks(ctx context.Context, filter models.BookFilter) ([]models.Book, error)
	FeaturedBooks(ctx context.Context, limit int) ([]models.Book, error)
	CountBooks(ctx context.Context) (int, error)

	// Loan ledger operations
	Borrow(ctx context.Context, userID, bookID string, now time.Time) (*models.Loan, error)
	Return(ctx context.Context, loanID, userID string, now time.Time) (*models.Loan, error)
	MarkOverdue(ctx context.Context, loanID, actorID string, now time.Time) (bool, error)
	SweepOverdue(ctx context.Context, now time.Time) (int64, error)
	GetLoan(ctx context.Context, id string) (*models.LoanView, error)
	ListLoans(ctx context.Context, filter models.LoanFilter) ([]models.LoanView, error)
	CountLoans(ctx context.Context, filter models.LoanFilter) (int, error)
	ListLoanEvents(ctx context.Context, loanID string) ([]models.LoanEvent, error)
}

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// GetDB returns the underlying database connection
func (r *PostgresRepository) GetDB() *sqlx.DB {
	return r.db
}

// Ping checks that the database is reachable
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return mapError(r.db.PingContext(ctx))
}

// inTx runs fn in one transaction, rolling back on any error
func (r *PostgresRepository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return mapError(err)
	}

	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return mapError(err)
	}

	err = mapError(tx.Commit())
	return err
}

// User repository methods
const userColumns = `id, full_name, email, password, role, created_at, updated_at`

func (r *PostgresRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, full_name, email, password, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	// Generate a new UUID if not provided
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.FullName, user.Email, user.Password, string(user.Role), user.CreatedAt, user.UpdatedAt)

	return mapError(err)
}

// GetUserByEmail matches the email case-insensitively
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, mapError(err)
	}

	return &user, nil
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, mapError(err)
	}

	return &user, nil
}

// ListMembers returns the accounts with role User and their loan counts
func (r *PostgresRepository) ListMembers(ctx context.Context) ([]models.MemberSummary, error) {
	query := `
		SELECT u.id, u.full_name, u.email, u.password, u.role, u.created_at, u.updated_at,
			COUNT(l.id) FILTER (WHERE l.status IN ('Borrowed', 'Overdue')) AS active_loans,
			COUNT(l.id) AS total_loans
		FROM users u
		LEFT JOIN loans l ON l.user_id = u.id
		WHERE u.role = $1
		GROUP BY u.id
		ORDER BY u.full_name ASC
	`

	members := []models.MemberSummary{}
	if err := r.db.SelectContext(ctx, &members, query, string(models.RoleUser)); err != nil {
		return nil, mapError(err)
	}

	return members, nil
}

func (r *PostgresRepository) CountMembers(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users WHERE role = $1`, string(models.RoleUser))
	return count, mapError(err)
}
