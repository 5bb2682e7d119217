package service

import (
	"context"
	"time"

	"github.com/rongwang/library-server/internal/models"
	"github.com/rongwang/library-server/internal/repository"
)

// mockRepository overrides the repository methods a test sets. Calling any
// other method panics on the nil embedded interface.
type mockRepository struct {
	repository.Repository

	GetUserByEmailFn func(ctx context.Context, email string) (*models.User, error)
	GetUserByIDFn    func(ctx context.Context, id string) (*models.User, error)
	CreateUserFn     func(ctx context.Context, user *models.User) error
	GetCategoryFn    func(ctx context.Context, id string) (*models.Category, error)
	CreateBookFn     func(ctx context.Context, book *models.Book) error
	GetBookFn        func(ctx context.Context, id string) (*models.Book, error)
	BorrowFn         func(ctx context.Context, userID, bookID string, now time.Time) (*models.Loan, error)
	ReturnFn         func(ctx context.Context, loanID, userID string, now time.Time) (*models.Loan, error)
	MarkOverdueFn    func(ctx context.Context, loanID, actorID string, now time.Time) (bool, error)
	SweepOverdueFn   func(ctx context.Context, now time.Time) (int64, error)
	GetLoanFn        func(ctx context.Context, id string) (*models.LoanView, error)
	ListLoansFn      func(ctx context.Context, filter models.LoanFilter) ([]models.LoanView, error)
	CountLoansFn     func(ctx context.Context, filter models.LoanFilter) (int, error)
	CountBooksFn     func(ctx context.Context) (int, error)
	CountMembersFn   func(ctx context.Context) (int, error)
	ListLoanEventsFn func(ctx context.Context, loanID string) ([]models.LoanEvent, error)
}

func (m *mockRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.GetUserByEmailFn(ctx, email)
}

func (m *mockRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return m.GetUserByIDFn(ctx, id)
}

func (m *mockRepository) CreateUser(ctx context.Context, user *models.User) error {
	return m.CreateUserFn(ctx, user)
}

func (m *mockRepository) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	return m.GetCategoryFn(ctx, id)
}

func (m *mockRepository) CreateBook(ctx context.Context, book *models.Book) error {
	return m.CreateBookFn(ctx, book)
}

func (m *mockRepository) GetBook(ctx context.Context, id string) (*models.Book, error) {
	return m.GetBookFn(ctx, id)
}

func (m *mockRepository) Borrow(ctx context.Context, userID, bookID string, now time.Time) (*models.Loan, error) {
	return m.BorrowFn(ctx, userID, bookID, now)
}

func (m *mockRepository) Return(ctx context.Context, loanID, userID string, now time.Time) (*models.Loan, error) {
	return m.ReturnFn(ctx, loanID, userID, now)
}

func (m *mockRepository) MarkOverdue(ctx context.Context, loanID, actorID string, now time.Time) (bool, error) {
	return m.MarkOverdueFn(ctx, loanID, actorID, now)
}

func (m *mockRepository) SweepOverdue(ctx context.Context, now time.Time) (int64, error) {
	return m.SweepOverdueFn(ctx, now)
}

func (m *mockRepository) GetLoan(ctx context.Context, id string) (*models.LoanView, error) {
	return m.GetLoanFn(ctx, id)
}

func (m *mockRepository) ListLoans(ctx context.Context, filter models.LoanFilter) ([]models.LoanView, error) {
	return m.ListLoansFn(ctx, filter)
}

func (m *mockRepository) CountLoans(ctx context.Context, filter models.LoanFilter) (int, error) {
	return m.CountLoansFn(ctx, filter)
}

func (m *mockRepository) CountBooks(ctx context.Context) (int, error) {
	return m.CountBooksFn(ctx)
}

func (m *mockRepository) CountMembers(ctx context.Context) (int, error) {
	return m.CountMembersFn(ctx)
}

func (m *mockRepository) ListLoanEvents(ctx context.Context, loanID string) ([]models.LoanEvent, error) {
	return m.ListLoanEventsFn(ctx, loanID)
}
