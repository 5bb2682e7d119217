package service

import (
	"context"
	"fmt"

	"github.com/rongwang/library-server/internal/auth"
	"github.com/rongwang/library-server/internal/models"
)

// MemberDashboard shows the caller's current loan
func (s *DefaultService) MemberDashboard(ctx context.Context, p auth.Principal) (*models.MemberDashboardResponse, error) {
	if err := auth.RequireAuthenticated(p); err != nil {
		return nil, err
	}

	s.sweepBeforeRead(ctx)

	current, err := s.CurrentLoan(ctx, p)
	if err != nil {
		return nil, err
	}

	return &models.MemberDashboardResponse{
		Status:      "success",
		UserName:    p.Name,
		CurrentLoan: current,
	}, nil
}

// AdminDashboard gathers the catalog and loan counters
func (s *DefaultService) AdminDashboard(ctx context.Context, p auth.Principal) (*models.DashboardStats, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return nil, err
	}

	stats := &models.DashboardStats{SweptThisCycle: s.sweepBeforeRead(ctx)}
	now := s.clock()

	var err error
	if stats.TotalBooks, err = s.repo.CountBooks(ctx); err != nil {
		return nil, fmt.Errorf("error counting books: %w", err)
	}
	if stats.TotalMembers, err = s.repo.CountMembers(ctx); err != nil {
		return nil, fmt.Errorf("error counting members: %w", err)
	}
	if stats.ActiveLoans, err = s.repo.CountLoans(ctx, models.LoanFilter{ActiveOnly: true}); err != nil {
		return nil, fmt.Errorf("error counting active loans: %w", err)
	}
	if stats.OverdueLoans, err = s.repo.CountLoans(ctx, models.LoanFilter{Status: models.LoanOverdue, Now: now}); err != nil {
		return nil, fmt.Errorf("error counting overdue loans: %w", err)
	}

	if stats.RecentLoans, err = s.repo.ListLoans(ctx, models.LoanFilter{Limit: RecentLoansLimit}); err != nil {
		return nil, fmt.Errorf("error listing recent loans: %w", err)
	}
	s.annotate(stats.RecentLoans)

	return stats, nil
}
