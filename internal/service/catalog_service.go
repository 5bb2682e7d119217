package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rongwang/library-server/internal/apperrors"
	"github.com/rongwang/library-server/internal/auth"
	"github.com/rongwang/library-server/internal/models"
	"github.com/rongwang/library-server/internal/validation"
)

// Category operations
func (s *DefaultService) CreateCategory(ctx context.Context, p auth.Principal, req models.CategoryRequest) (*models.Category, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return nil, err
	}
	if violations := validation.ValidateCategory(req); len(violations) > 0 {
		return nil, apperrors.Validation("invalid category", violations...)
	}

	category := &models.Category{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
	}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		return nil, fmt.Errorf("error creating category: %w", err)
	}

	return category, nil
}

func (s *DefaultService) UpdateCategory(ctx context.Context, p auth.Principal, id string, req models.CategoryRequest) (*models.Category, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return nil, err
	}
	if violations := validation.ValidateCategory(req); len(violations) > 0 {
		return nil, apperrors.Validation("invalid category", violations...)
	}

	category := &models.Category{
		ID:          id,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
	}
	if err := s.repo.UpdateCategory(ctx, category); err != nil {
		return nil, fmt.Errorf("error updating category: %w", err)
	}

	return category, nil
}

// DeleteCategory fails with a conflict while any book is in the category
func (s *DefaultService) DeleteCategory(ctx context.Context, p auth.Principal, id string) error {
	if err := auth.RequireAdmin(p); err != nil {
		return err
	}

	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("error deleting category: %w", err)
	}

	s.logger.Info("category deleted", "category_id", id, "actor_id", p.UserID)
	return nil
}

func (s *DefaultService) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	category, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error getting category: %w", err)
	}
	if category == nil {
		return nil, apperrors.NotFound("category not found")
	}
	return category, nil
}

func (s *DefaultService) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing categories: %w", err)
	}
	return categories, nil
}

// Book operations

// CreateBook adds a title with all of its copies available
func (s *DefaultService) CreateBook(ctx context.Context, p auth.Principal, req models.BookRequest) (*models.Book, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return nil, err
	}
	if err := s.checkBook(ctx, req); err != nil {
		return nil, err
	}

	book := bookFromRequest(req)
	if err := s.repo.CreateBook(ctx, book); err != nil {
		return nil, fmt.Errorf("error creating book: %w", err)
	}

	s.logger.Info("book created", "book_id", book.ID, "copies", book.TotalCopies)
	return s.GetBook(ctx, book.ID)
}

// UpdateBook edits a title; a change of total copies moves the available
// count by the same amount
func (s *DefaultService) UpdateBook(ctx context.Context, p auth.Principal, id string, req models.BookRequest) (*models.Book, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return nil, err
	}
	if err := s.checkBook(ctx, req); err != nil {
		return nil, err
	}

	book := bookFromRequest(req)
	book.ID = id
	if err := s.repo.UpdateBook(ctx, book); err != nil {
		return nil, fmt.Errorf("error updating book: %w", err)
	}

	return s.GetBook(ctx, id)
}

// DeleteBook fails with a conflict while any copy is on loan
func (s *DefaultService) DeleteBook(ctx context.Context, p auth.Principal, id string) error {
	if err := auth.RequireAdmin(p); err != nil {
		return err
	}

	if err := s.repo.DeleteBook(ctx, id); err != nil {
		return fmt.Errorf("error deleting book: %w", err)
	}

	s.logger.Info("book deleted", "book_id", id, "actor_id", p.UserID)
	return nil
}

func (s *DefaultService) GetBook(ctx context.Context, id string) (*models.Book, error) {
	book, err := s.repo.GetBook(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error getting book: %w", err)
	}
	if book == nil {
		return nil, apperrors.NotFound("book not found")
	}
	return book, nil
}

func (s *DefaultService) SearchBooks(ctx context.Context, filter models.BookFilter) ([]models.Book, error) {
	books, err := s.repo.SearchBooks(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error searching books: %w", err)
	}
	return books, nil
}

func (s *DefaultService) FeaturedBooks(ctx context.Context) ([]models.Book, error) {
	books, err := s.repo.FeaturedBooks(ctx, FeaturedLimit)
	if err != nil {
		return nil, fmt.Errorf("error getting featured books: %w", err)
	}
	return books, nil
}

// checkBook validates the fields and that the category exists
func (s *DefaultService) checkBook(ctx context.Context, req models.BookRequest) error {
	if violations := validation.ValidateBook(req); len(violations) > 0 {
		return apperrors.Validation("invalid book", violations...)
	}

	category, err := s.repo.GetCategory(ctx, req.CategoryID)
	if err != nil {
		return fmt.Errorf("error getting category: %w", err)
	}
	if category == nil {
		return apperrors.Validation("invalid book",
			apperrors.Violation{Field: "categoryId", Message: "category does not exist"})
	}
	return nil
}

func bookFromRequest(req models.BookRequest) *models.Book {
	return &models.Book{
		Title:       strings.TrimSpace(req.Title),
		Author:      strings.TrimSpace(req.Author),
		CategoryID:  req.CategoryID,
		TotalCopies: req.TotalCopies,
		Description: strings.TrimSpace(req.Description),
	}
}
