package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rongwang/library-server/internal/apperrors"
	"github.com/rongwang/library-server/internal/auth"
	"github.com/rongwang/library-server/internal/models"
)

// Borrow opens a loan on bookID for the caller
func (s *DefaultService) Borrow(ctx context.Context, p auth.Principal, bookID string) (*models.LoanView, error) {
	if err := auth.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(bookID) == "" {
		return nil, apperrors.Validation("invalid borrow request",
			apperrors.Violation{Field: "bookId", Message: "is required"})
	}

	loan, err := s.repo.Borrow(ctx, p.UserID, bookID, s.clock())
	if err != nil {
		return nil, fmt.Errorf("error borrowing book: %w", err)
	}

	s.logger.Info("book borrowed", "loan_id", loan.ID, "user_id", p.UserID, "book_id", bookID, "due_date", loan.DueDate)
	return s.loanView(ctx, loan.ID)
}

// Return closes the caller's active loan. A loan owned by someone else is
// reported as not found.
func (s *DefaultService) Return(ctx context.Context, p auth.Principal, loanID string) (*models.LoanView, error) {
	if err := auth.RequireAuthenticated(p); err != nil {
		return nil, err
	}

	loan, err := s.repo.Return(ctx, loanID, p.UserID, s.clock())
	if err != nil {
		return nil, fmt.Errorf("error returning book: %w", err)
	}

	s.logger.Info("book returned", "loan_id", loan.ID, "user_id", p.UserID, "book_id", loan.BookID)
	return s.loanView(ctx, loan.ID)
}

// MarkOverdue reports whether the loan moved from Borrowed to Overdue.
// Loans in any other status are left alone.
func (s *DefaultService) MarkOverdue(ctx context.Context, p auth.Principal, loanID string) (bool, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return false, err
	}

	marked, err := s.repo.MarkOverdue(ctx, loanID, p.UserID, s.clock())
	if err != nil {
		return false, fmt.Errorf("error marking loan overdue: %w", err)
	}

	if marked {
		s.logger.Info("loan marked overdue", "loan_id", loanID, "actor_id", p.UserID)
	}
	return marked, nil
}

func (s *DefaultService) SweepOverdue(ctx context.Context, p auth.Principal) (int64, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return 0, err
	}
	return s.RunSweep(ctx)
}

// RunSweep promotes past-due loans to Overdue. It is unguarded and meant for
// the server itself and the CLI.
func (s *DefaultService) RunSweep(ctx context.Context) (int64, error) {
	swept, err := s.repo.SweepOverdue(ctx, s.clock())
	if err != nil {
		return 0, fmt.Errorf("error sweeping overdue loans: %w", err)
	}

	if swept > 0 {
		s.logger.Info("overdue sweep", "swept", swept)
	}
	return swept, nil
}

// sweepBeforeRead runs the sweep ahead of a listing. Reads use the tolerant
// overdue predicate, so a failed sweep is logged and the read goes on.
func (s *DefaultService) sweepBeforeRead(ctx context.Context) int64 {
	swept, err := s.RunSweep(ctx)
	if err != nil {
		s.logger.Warn("overdue sweep failed", "error", err)
		return 0
	}
	return swept
}

// CurrentLoan returns the caller's active loan, or nil when there is none
func (s *DefaultService) CurrentLoan(ctx context.Context, p auth.Principal) (*models.LoanView, error) {
	if err := auth.RequireAuthenticated(p); err != nil {
		return nil, err
	}

	loans, err := s.repo.ListLoans(ctx, models.LoanFilter{UserID: p.UserID, ActiveOnly: true, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("error getting current loan: %w", err)
	}
	if len(loans) == 0 {
		return nil, nil
	}

	loan := loans[0]
	loan.Annotate(s.clock())
	return &loan, nil
}

// History returns every loan of the caller, newest first
func (s *DefaultService) History(ctx context.Context, p auth.Principal) ([]models.LoanView, error) {
	if err := auth.RequireAuthenticated(p); err != nil {
		return nil, err
	}

	loans, err := s.repo.ListLoans(ctx, models.LoanFilter{UserID: p.UserID})
	if err != nil {
		return nil, fmt.Errorf("error getting loan history: %w", err)
	}

	s.annotate(loans)
	return loans, nil
}

// ListLoans returns all loans, optionally filtered by status. The Overdue
// filter also matches Borrowed loans past their due date.
func (s *DefaultService) ListLoans(ctx context.Context, p auth.Principal, status string) ([]models.LoanView, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return nil, err
	}

	filterStatus, err := ParseStatusFilter(status)
	if err != nil {
		return nil, err
	}

	s.sweepBeforeRead(ctx)

	loans, err := s.repo.ListLoans(ctx, models.LoanFilter{Status: filterStatus, Now: s.clock()})
	if err != nil {
		return nil, fmt.Errorf("error listing loans: %w", err)
	}

	s.annotate(loans)
	return loans, nil
}

// LoanEvents returns the audit trail of one loan
func (s *DefaultService) LoanEvents(ctx context.Context, p auth.Principal, loanID string) ([]models.LoanEvent, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return nil, err
	}

	events, err := s.repo.ListLoanEvents(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("error getting loan events: %w", err)
	}
	if len(events) == 0 {
		loan, err := s.repo.GetLoan(ctx, loanID)
		if err != nil {
			return nil, fmt.Errorf("error getting loan: %w", err)
		}
		if loan == nil {
			return nil, apperrors.NotFound("loan not found")
		}
	}

	return events, nil
}

// ParseStatusFilter accepts an empty filter or a loan status in any case
func ParseStatusFilter(status string) (models.LoanStatus, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return "", nil
	}

	for _, candidate := range []models.LoanStatus{models.LoanBorrowed, models.LoanOverdue, models.LoanReturned} {
		if strings.EqualFold(status, string(candidate)) {
			return candidate, nil
		}
	}

	return "", apperrors.Validation("invalid status filter",
		apperrors.Violation{Field: "status", Message: "must be one of Borrowed, Overdue, Returned"})
}

func (s *DefaultService) loanView(ctx context.Context, loanID string) (*models.LoanView, error) {
	loan, err := s.repo.GetLoan(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("error getting loan: %w", err)
	}
	if loan == nil {
		return nil, apperrors.NotFound("loan not found")
	}

	loan.Annotate(s.clock())
	return loan, nil
}

func (s *DefaultService) annotate(loans []models.LoanView) {
	now := s.clock()
	for i := range loans {
		loans[i].Annotate(now)
	}
}
