package service

import (
	"context"
	"time"

	"github.com/rongwang/library-server/internal/auth"
	"github.com/rongwang/library-server/internal/models"
	"github.com/rongwang/library-server/internal/repository"
	"github.com/rongwang/library-server/internal/utils"
)

// FeaturedLimit is the number of books shown on the home page
const FeaturedLimit = 6

// RecentLoansLimit is the number of loans on the admin dashboard
const RecentLoansLimit = 10

// Service defines all the business logic operations. Guarded operations take
// the caller's Principal explicitly and check it before touching storage.
type Service interface {
	Health(ctx context.Context) error

	// Accounts
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	VerifyCredential(ctx context.Context, email, password string) (*models.User, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	CreateAdmin(ctx context.Context, fullName, email, password string) (*models.User, error)
	GetUser(ctx context.Context, p auth.Principal, id string) (*models.User, error)
	ListMembers(ctx context.Context, p auth.Principal) ([]models.MemberSummary, error)

	// Catalog
	CreateCategory(ctx context.Context, p auth.Principal, req models.CategoryRequest) (*models.Category, error)
	UpdateCategory(ctx context.Context, p auth.Principal, id string, req models.CategoryRequest) (*models.Category, error)
	DeleteCategory(ctx context.Context, p auth.Principal, id string) error
	GetCategory(ctx context.Context, id string) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateBook(ctx context.Context, p auth.Principal, req models.BookRequest) (*models.Book, error)
	UpdateBook(ctx context.Context, p auth.Principal, id string, req models.BookRequest) (*models.Book, error)
	DeleteBook(ctx context.Context, p auth.Principal, id string) error
	GetBook(ctx context.Context, id string) (*models.Book, error)
	SearchBooks(ctx context.Context, filter models.BookFilter) ([]models.Book, error)
	FeaturedBooks(ctx context.Context) ([]models.Book, error)

	// Loan ledger
	Borrow(ctx context.Context, p auth.Principal, bookID string) (*models.LoanView, error)
	Return(ctx context.Context, p auth.Principal, loanID string) (*models.LoanView, error)
	MarkOverdue(ctx context.Context, p auth.Principal, loanID string) (bool, error)
	SweepOverdue(ctx context.Context, p auth.Principal) (int64, error)
	RunSweep(ctx context.Context) (int64, error)
	CurrentLoan(ctx context.Context, p auth.Principal) (*models.LoanView, error)
	History(ctx context.Context, p auth.Principal) ([]models.LoanView, error)
	ListLoans(ctx context.Context, p auth.Principal, status string) ([]models.LoanView, error)
	LoanEvents(ctx context.Context, p auth.Principal, loanID string) ([]models.LoanEvent, error)

	// Dashboards
	MemberDashboard(ctx context.Context, p auth.Principal) (*models.MemberDashboardResponse, error)
	AdminDashboard(ctx context.Context, p auth.Principal) (*models.DashboardStats, error)
}

// DefaultService implements the Service interface
type DefaultService struct {
	repo   repository.Repository
	tokens *auth.TokenIssuer
	logger *utils.Logger
	now    func() time.Time
}

// Option configures a DefaultService
type Option func(*DefaultService)

// WithClock replaces the wall clock, e.g. to test due dates
func WithClock(now func() time.Time) Option {
	return func(s *DefaultService) {
		s.now = now
	}
}

// NewDefaultService creates a new DefaultService
func NewDefaultService(repo repository.Repository, tokens *auth.TokenIssuer, logger *utils.Logger, opts ...Option) Service {
	if logger == nil {
		logger = utils.NopLogger()
	}

	s := &DefaultService{
		repo:   repo,
		tokens: tokens,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Health reports whether storage is reachable
func (s *DefaultService) Health(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *DefaultService) clock() time.Time {
	return s.now().UTC()
}
