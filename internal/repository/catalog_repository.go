package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rongwang/library-server/internal/apperrors"
	"github.com/rongwang/library-server/internal/config"
	"github.com/rongwang/library-server/internal/models"
)

// Category repository methods
const categoryColumns = `id, name, description, created_at, updated_at`

func (r *PostgresRepository) CreateCategory(ctx context.Context, category *models.Category) error {
	query := `
		INSERT INTO categories (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if category.ID == "" {
		category.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	category.CreatedAt = now
	category.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		category.ID, category.Name, category.Description, category.CreatedAt, category.UpdatedAt)

	return mapError(err)
}

func (r *PostgresRepository) UpdateCategory(ctx context.Context, category *models.Category) error {
	query := `
		UPDATE categories SET name = $2, description = $3, updated_at = $4
		WHERE id = $1
		RETURNING created_at
	`

	category.UpdatedAt = time.Now().UTC()

	err := r.db.QueryRowxContext(ctx, query,
		category.ID, category.Name, category.Description, category.UpdatedAt).Scan(&category.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound("category not found")
	}

	return mapError(err)
}

// DeleteCategory removes a category that no book references
func (r *PostgresRepository) DeleteCategory(ctx context.Context, id string) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		var lockedID string
		err := tx.GetContext(ctx, &lockedID, `SELECT id FROM categories WHERE id = $1 FOR UPDATE`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NotFound("category not found")
		}
		if err != nil {
			return err
		}

		var hasBooks bool
		err = tx.GetContext(ctx, &hasBooks, `SELECT EXISTS(SELECT 1 FROM books WHERE category_id = $1)`, id)
		if err != nil {
			return err
		}
		if hasBooks {
			return apperrors.Conflict(apperrors.MsgCategoryHasBooks)
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
		if isConstraint(err, config.ConstraintBookCategory) {
			return apperrors.Conflict(apperrors.MsgCategoryHasBooks)
		}
		return err
	})
}

func (r *PostgresRepository) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`

	var category models.Category
	err := r.db.GetContext(ctx, &category, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Category not found
		}
		return nil, mapError(err)
	}

	return &category, nil
}

func (r *PostgresRepository) GetCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE name = $1`

	var category models.Category
	err := r.db.GetContext(ctx, &category, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError(err)
	}

	return &category, nil
}

func (r *PostgresRepository) ListCategories(ctx context.Context) ([]models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories ORDER BY name ASC`

	categories := []models.Category{}
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, mapError(err)
	}

	return categories, nil
}

// Book repository methods

// CreateBook inserts a book with every copy available
func (r *PostgresRepository) CreateBook(ctx context.Context, book *models.Book) error {
	query := `
		INSERT INTO books (id, title, author, category_id, total_copies, available_copies, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if book.ID == "" {
		book.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	book.AvailableCopies = book.TotalCopies
	book.CreatedAt = now
	book.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		book.ID, book.Title, book.Author, book.CategoryID, book.TotalCopies,
		book.AvailableCopies, book.Description, book.CreatedAt, book.UpdatedAt)

	return mapError(err)
}

// UpdateBook changes the editable fields of a book. A change of TotalCopies
// shifts AvailableCopies by the same amount; the caller's AvailableCopies is
// ignored and overwritten with the stored value.
func (r *PostgresRepository) UpdateBook(ctx context.Context, book *models.Book) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		var current struct {
			TotalCopies int       `db:"total_copies"`
			CreatedAt   time.Time `db:"created_at"`
		}
		err := tx.GetContext(ctx, &current,
			`SELECT total_copies, created_at FROM books WHERE id = $1 FOR UPDATE`, book.ID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NotFound("book not found")
		}
		if err != nil {
			return err
		}

		var active int
		err = tx.GetContext(ctx, &active,
			`SELECT COUNT(*) FROM loans WHERE book_id = $1 AND status IN ('Borrowed', 'Overdue')`, book.ID)
		if err != nil {
			return err
		}
		if book.TotalCopies < active {
			return apperrors.Conflict(apperrors.MsgCopiesInUse)
		}

		book.AvailableCopies = book.TotalCopies - active
		book.CreatedAt = current.CreatedAt
		book.UpdatedAt = time.Now().UTC()

		_, err = tx.ExecContext(ctx, `
			UPDATE books
			SET title = $2, author = $3, category_id = $4, total_copies = $5,
				available_copies = $6, description = $7, updated_at = $8
			WHERE id = $1
		`, book.ID, book.Title, book.Author, book.CategoryID, book.TotalCopies,
			book.AvailableCopies, book.Description, book.UpdatedAt)
		return err
	})
}

// DeleteBook removes a book with no active loans. Its returned loans are
// removed with it by the foreign key cascade.
func (r *PostgresRepository) DeleteBook(ctx context.Context, id string) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		var lockedID string
		err := tx.GetContext(ctx, &lockedID, `SELECT id FROM books WHERE id = $1 FOR UPDATE`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NotFound("book not found")
		}
		if err != nil {
			return err
		}

		var borrowed bool
		err = tx.GetContext(ctx, &borrowed,
			`SELECT EXISTS(SELECT 1 FROM loans WHERE book_id = $1 AND status IN ('Borrowed', 'Overdue'))`, id)
		if err != nil {
			return err
		}
		if borrowed {
			return apperrors.Conflict(apperrors.MsgBookBorrowed)
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
		return err
	})
}

func (r *PostgresRepository) GetBook(ctx context.Context, id string) (*models.Book, error) {
	query, args, err := bookSelect().Where(bookIDIs(id)).Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}

	var book models.Book
	err = r.db.GetContext(ctx, &book, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Book not found
		}
		return nil, mapError(err)
	}

	return &book, nil
}

// SearchBooks filters the catalog, ordered by title
func (r *PostgresRepository) SearchBooks(ctx context.Context, filter models.BookFilter) ([]models.Book, error) {
	query, args, err := buildBookSearchQuery(filter)
	if err != nil {
		return nil, err
	}

	books := []models.Book{}
	if err := r.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, mapError(err)
	}

	return books, nil
}

// FeaturedBooks picks up to limit random books that have a copy available
func (r *PostgresRepository) FeaturedBooks(ctx context.Context, limit int) ([]models.Book, error) {
	query, args, err := buildFeaturedBooksQuery(limit)
	if err != nil {
		return nil, err
	}

	books := []models.Book{}
	if err := r.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, mapError(err)
	}

	return books, nil
}

func (r *PostgresRepository) CountBooks(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM books`)
	return count, mapError(err)
}
