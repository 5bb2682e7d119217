package models

import (
	"time"
)

// Role is the access level stored on a user
type Role string

const (
	RoleUser  Role = "User"
	RoleAdmin Role = "Admin"
)

// LoanStatus is the persisted state of a loan
type LoanStatus string

const (
	LoanBorrowed LoanStatus = "Borrowed"
	LoanOverdue  LoanStatus = "Overdue"
	LoanReturned LoanStatus = "Returned"
)

// LoanPeriod is the time between borrowDate and dueDate
const LoanPeriod = 14 * 24 * time.Hour

// Valid reports whether s is one of the known statuses
func (s LoanStatus) Valid() bool {
	switch s {
	case LoanBorrowed, LoanOverdue, LoanReturned:
		return true
	}
	return false
}

// IsActive reports whether a loan in this status still holds a copy
func (s LoanStatus) IsActive() bool {
	return s == LoanBorrowed || s == LoanOverdue
}

// User represents a library account
type User struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"fullName"`
	Email     string    `db:"email" json:"email"`
	Password  string    `db:"password" json:"-"` // bcrypt hash
	Role      Role      `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// MemberSummary is a user row for the admin member listing
type MemberSummary struct {
	User
	ActiveLoans int `db:"active_loans" json:"activeLoans"`
	TotalLoans  int `db:"total_loans" json:"totalLoans"`
}

// Category groups books
type Category struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// Book is a catalog title with its copy counters
type Book struct {
	ID              string    `db:"id" json:"id"`
	Title           string    `db:"title" json:"title"`
	Author          string    `db:"author" json:"author"`
	CategoryID      string    `db:"category_id" json:"categoryId"`
	CategoryName    string    `db:"category_name" json:"categoryName"` // joined, read only
	TotalCopies     int       `db:"total_copies" json:"totalCopies"`
	AvailableCopies int       `db:"available_copies" json:"availableCopies"`
	Description     string    `db:"description" json:"description"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time `db:"updated_at" json:"updatedAt"`
}

// Loan is one borrowing transaction
type Loan struct {
	ID         string     `db:"id" json:"id"`
	UserID     string     `db:"user_id" json:"userId"`
	BookID     string     `db:"book_id" json:"bookId"`
	BorrowDate time.Time  `db:"borrow_date" json:"borrowDate"`
	DueDate    time.Time  `db:"due_date" json:"dueDate"`
	ReturnDate *time.Time `db:"return_date" json:"returnDate,omitempty"`
	Status     LoanStatus `db:"status" json:"status"`
	Notes      string     `db:"notes" json:"notes"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updatedAt"`
}

// IsOverdue reports whether the loan is active and past its due date at now.
// A loan already promoted to Overdue keeps reporting true until returned.
func (l *Loan) IsOverdue(now time.Time) bool {
	if l.Status == LoanOverdue {
		return true
	}
	return l.Status == LoanBorrowed && now.After(l.DueDate)
}

// DaysOverdue counts whole calendar days (UTC) between the due date and now,
// or 0 when the loan is not overdue.
func (l *Loan) DaysOverdue(now time.Time) int {
	if !l.IsOverdue(now) || !now.After(l.DueDate) {
		return 0
	}
	today := truncateToDay(now)
	due := truncateToDay(l.DueDate)
	return int(today.Sub(due).Hours() / 24)
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// LoanView is a loan joined with the book and borrower it references
type LoanView struct {
	Loan
	BookTitle    string `db:"book_title" json:"bookTitle"`
	BookAuthor   string `db:"book_author" json:"bookAuthor"`
	CategoryName string `db:"category_name" json:"categoryName"`
	UserName     string `db:"user_name" json:"userName"`
	UserEmail    string `db:"user_email" json:"userEmail"`

	Overdue     bool `db:"-" json:"isOverdue"`
	DaysOverdue int  `db:"-" json:"daysOverdue"`
}

// Annotate fills the derived overdue fields for the given instant
func (v *LoanView) Annotate(now time.Time) {
	v.Overdue = v.Loan.IsOverdue(now)
	v.DaysOverdue = v.Loan.DaysOverdue(now)
}

// Loan event types recorded in the audit trail
const (
	LoanEventBorrowed      = "borrowed"
	LoanEventReturned      = "returned"
	LoanEventMarkedOverdue = "marked_overdue"
	LoanEventSweptOverdue  = "swept_overdue"
)

// LoanEvent is an audit record of a loan state change. It is not tied to the
// book or user rows by foreign keys, so it outlives them.
type LoanEvent struct {
	ID         string           `db:"id" json:"id"`
	LoanID     string           `db:"loan_id" json:"loanId"`
	EventType  string           `db:"event_type" json:"eventType"`
	OccurredAt time.Time        `db:"occurred_at" json:"occurredAt"`
	PayloadRaw []byte           `db:"payload" json:"-"`
	Payload    LoanEventPayload `db:"-" json:"payload"`
}

// LoanEventPayload is stored as JSONB in loan_events.payload
type LoanEventPayload struct {
	UserID     string     `json:"userId"`
	BookID     string     `json:"bookId"`
	BookTitle  string     `json:"bookTitle,omitempty"`
	Status     LoanStatus `json:"status"`
	DueDate    time.Time  `json:"dueDate"`
	ReturnDate *time.Time `json:"returnDate,omitempty"`
	ActorID    string     `json:"actorId,omitempty"`
}

// LoanFilter selects loans for the admin listing. An Overdue status matches
// swept rows and Borrowed rows already past due.
type LoanFilter struct {
	Status     LoanStatus
	ActiveOnly bool
	UserID     string
	BookID     string
	Now        time.Time
	Limit      int
}

// BookFilter selects books for catalog browsing
type BookFilter struct {
	Query         string
	CategoryID    string
	AvailableOnly bool
}

// DashboardStats backs the admin dashboard
type DashboardStats struct {
	TotalBooks     int        `json:"totalBooks"`
	TotalMembers   int        `json:"totalMembers"`
	ActiveLoans    int        `json:"activeLoans"`
	OverdueLoans   int        `json:"overdueLoans"`
	RecentLoans    []LoanView `json:"recentLoans"`
	SweptThisCycle int64      `json:"sweptThisCycle"`
}
