package models

import "github.com/rongwang/library-server/internal/apperrors"

// Request models
type RegisterRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type BookRequest struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	CategoryID  string `json:"categoryId"`
	TotalCopies int    `json:"totalCopies"`
	Description string `json:"description"`
}

type CategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type BorrowRequest struct {
	BookID string `json:"bookId" binding:"required"`
}

// Response models
type AuthResponse struct {
	Status    string `json:"status"`
	UserID    string `json:"userId,omitempty"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	Role      Role   `json:"role,omitempty"`
	Token     string `json:"token,omitempty"`
	ExpiresIn int    `json:"expiresIn,omitempty"`
}

type BookResponse struct {
	Status string `json:"status"`
	Book   *Book  `json:"book"`
}

type BookListResponse struct {
	Status string `json:"status"`
	Books  []Book `json:"books"`
}

type CategoryResponse struct {
	Status   string    `json:"status"`
	Category *Category `json:"category"`
}

type CategoryListResponse struct {
	Status     string     `json:"status"`
	Categories []Category `json:"categories"`
}

type LoanResponse struct {
	Status string    `json:"status"`
	Loan   *LoanView `json:"loan"`
}

type LoanListResponse struct {
	Status string     `json:"status"`
	Filter string     `json:"filter,omitempty"`
	Loans  []LoanView `json:"loans"`
}

type LoanEventListResponse struct {
	Status string      `json:"status"`
	LoanID string      `json:"loanId"`
	Events []LoanEvent `json:"events"`
}

type MemberListResponse struct {
	Status  string          `json:"status"`
	Members []MemberSummary `json:"members"`
}

type MemberDashboardResponse struct {
	Status      string    `json:"status"`
	UserName    string    `json:"userName"`
	CurrentLoan *LoanView `json:"currentLoan"`
}

type AdminDashboardResponse struct {
	Status string `json:"status"`
	DashboardStats
}

type MarkOverdueResponse struct {
	Status string `json:"status"`
	LoanID string `json:"loanId"`
	Marked bool   `json:"marked"`
}

type UserResponse struct {
	Status string `json:"status"`
	User   *User  `json:"user"`
}

type SweepResponse struct {
	Status string `json:"status"`
	Swept  int64  `json:"swept"`
}

type MessageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Status     string                `json:"status"`
	Code       string                `json:"code"`
	Message    string                `json:"message"`
	Violations []apperrors.Violation `json:"violations,omitempty"`
}
