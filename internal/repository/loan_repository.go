package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/jmoiron/sqlx"
	"github.com/rongwang/library-server/internal/apperrors"
	"github.com/rongwang/library-server/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const loanColumns = `id, user_id, book_id, borrow_date, due_date, return_date, status, notes, created_at, updated_at`

// Loan ledger methods

// Borrow opens a loan for userID on bookID. The user row is locked first so
// concurrent borrows by the same user serialize on it; the partial unique
// index on active loans backs this up.
func (r *PostgresRepository) Borrow(ctx context.Context, userID, bookID string, now time.Time) (*models.Loan, error) {
	now = now.UTC()
	var loan *models.Loan

	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		var lockedUser string
		err := tx.GetContext(ctx, &lockedUser, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NotFound("user not found")
		}
		if err != nil {
			return err
		}

		var hasActive bool
		err = tx.GetContext(ctx, &hasActive,
			`SELECT EXISTS(SELECT 1 FROM loans WHERE user_id = $1 AND status IN ('Borrowed', 'Overdue'))`, userID)
		if err != nil {
			return err
		}
		if hasActive {
			return apperrors.Conflict(apperrors.MsgUserHasActiveLoan)
		}

		var book struct {
			Title           string `db:"title"`
			AvailableCopies int    `db:"available_copies"`
		}
		err = tx.GetContext(ctx, &book,
			`SELECT title, available_copies FROM books WHERE id = $1 FOR UPDATE`, bookID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NotFound("book not found")
		}
		if err != nil {
			return err
		}
		if book.AvailableCopies <= 0 {
			return apperrors.Conflict(apperrors.MsgBookUnavailable)
		}

		loan = &models.Loan{
			ID:         uuid.New().String(),
			UserID:     userID,
			BookID:     bookID,
			BorrowDate: now,
			DueDate:    now.Add(models.LoanPeriod),
			Status:     models.LoanBorrowed,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO loans (id, user_id, book_id, borrow_date, due_date, status, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, loan.ID, loan.UserID, loan.BookID, loan.BorrowDate, loan.DueDate,
			string(loan.Status), loan.Notes, loan.CreatedAt, loan.UpdatedAt)
		if err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE books SET available_copies = available_copies - 1, updated_at = $2
			WHERE id = $1 AND available_copies > 0
		`, bookID, now)
		if err != nil {
			return err
		}
		if rows, err := result.RowsAffected(); err != nil {
			return err
		} else if rows == 0 {
			return apperrors.Conflict(apperrors.MsgBookUnavailable)
		}

		return insertLoanEvents(ctx, tx, newLoanEvent(loan, models.LoanEventBorrowed, book.Title, userID, now))
	})
	if err != nil {
		return nil, err
	}

	return loan, nil
}

// Return closes an active loan owned by userID and gives the copy back
func (r *PostgresRepository) Return(ctx context.Context, loanID, userID string, now time.Time) (*models.Loan, error) {
	now = now.UTC()
	var loan models.Loan

	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &loan, `
			SELECT `+loanColumns+` FROM loans
			WHERE id = $1 AND user_id = $2 AND status IN ('Borrowed', 'Overdue')
			FOR UPDATE
		`, loanID, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NotFound("active loan not found")
		}
		if err != nil {
			return err
		}

		loan.Status = models.LoanReturned
		loan.ReturnDate = &now
		loan.UpdatedAt = now

		_, err = tx.ExecContext(ctx, `
			UPDATE loans SET status = $2, return_date = $3, updated_at = $3
			WHERE id = $1
		`, loan.ID, string(loan.Status), now)
		if err != nil {
			return err
		}

		var title string
		err = tx.GetContext(ctx, &title, `
			UPDATE books SET available_copies = available_copies + 1, updated_at = $2
			WHERE id = $1 AND available_copies < total_copies
			RETURNING title
		`, loan.BookID, now)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("book %s copy counter already at capacity", loan.BookID)
		}
		if err != nil {
			return err
		}

		return insertLoanEvents(ctx, tx, newLoanEvent(&loan, models.LoanEventReturned, title, userID, now))
	})
	if err != nil {
		return nil, err
	}

	return &loan, nil
}

// MarkOverdue promotes a Borrowed loan to Overdue. It reports false without
// error when the loan exists in another status.
func (r *PostgresRepository) MarkOverdue(ctx context.Context, loanID, actorID string, now time.Time) (bool, error) {
	now = now.UTC()
	marked := false

	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		var loan models.Loan
		err := tx.GetContext(ctx, &loan, `
			UPDATE loans SET status = 'Overdue', updated_at = $2
			WHERE id = $1 AND status = 'Borrowed'
			RETURNING `+loanColumns, loanID, now)
		if errors.Is(err, sql.ErrNoRows) {
			var exists bool
			if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM loans WHERE id = $1)`, loanID); err != nil {
				return err
			}
			if !exists {
				return apperrors.NotFound("loan not found")
			}
			return nil
		}
		if err != nil {
			return err
		}

		marked = true
		return insertLoanEvents(ctx, tx, newLoanEvent(&loan, models.LoanEventMarkedOverdue, "", actorID, now))
	})
	if err != nil {
		return false, err
	}

	return marked, nil
}

// SweepOverdue promotes every Borrowed loan past its due date to Overdue in
// one transaction. Rows locked by an in-flight return are skipped and picked
// up by the next sweep.
func (r *PostgresRepository) SweepOverdue(ctx context.Context, now time.Time) (int64, error) {
	now = now.UTC()
	var swept []models.Loan

	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.SelectContext(ctx, &swept, `
			UPDATE loans SET status = 'Overdue', updated_at = $1
			WHERE id IN (
				SELECT id FROM loans
				WHERE status = 'Borrowed' AND due_date < $1
				ORDER BY id
				FOR UPDATE SKIP LOCKED
			)
			RETURNING `+loanColumns, now)
		if err != nil {
			return err
		}
		if len(swept) == 0 {
			return nil
		}

		events := make([]models.LoanEvent, 0, len(swept))
		for i := range swept {
			events = append(events, newLoanEvent(&swept[i], models.LoanEventSweptOverdue, "", "", now))
		}
		return insertLoanEvents(ctx, tx, events...)
	})
	if err != nil {
		return 0, err
	}

	return int64(len(swept)), nil
}

func (r *PostgresRepository) GetLoan(ctx context.Context, id string) (*models.LoanView, error) {
	query, args, err := buildLoanByIDQuery(id)
	if err != nil {
		return nil, err
	}

	var loan models.LoanView
	err = r.db.GetContext(ctx, &loan, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Loan not found
		}
		return nil, mapError(err)
	}

	return &loan, nil
}

// ListLoans returns loans matching the filter, newest first
func (r *PostgresRepository) ListLoans(ctx context.Context, filter models.LoanFilter) ([]models.LoanView, error) {
	query, args, err := buildLoanListQuery(filter)
	if err != nil {
		return nil, err
	}

	loans := []models.LoanView{}
	if err := r.db.SelectContext(ctx, &loans, query, args...); err != nil {
		return nil, mapError(err)
	}

	return loans, nil
}

func (r *PostgresRepository) CountLoans(ctx context.Context, filter models.LoanFilter) (int, error) {
	query, args, err := buildLoanCountQuery(filter)
	if err != nil {
		return 0, err
	}

	var count int
	err = r.db.GetContext(ctx, &count, query, args...)
	return count, mapError(err)
}

// ListLoanEvents returns the audit trail of a loan in the order it happened
func (r *PostgresRepository) ListLoanEvents(ctx context.Context, loanID string) ([]models.LoanEvent, error) {
	query := `
		SELECT id, loan_id, event_type, occurred_at, payload
		FROM loan_events
		WHERE loan_id = $1
		ORDER BY occurred_at ASC, id ASC
	`

	events := []models.LoanEvent{}
	if err := r.db.SelectContext(ctx, &events, query, loanID); err != nil {
		return nil, mapError(err)
	}

	for i := range events {
		if err := json.Unmarshal(events[i].PayloadRaw, &events[i].Payload); err != nil {
			return nil, fmt.Errorf("failed to decode payload of loan event %s: %w", events[i].ID, err)
		}
	}

	return events, nil
}

// newLoanEvent snapshots the loan into an audit record
func newLoanEvent(loan *models.Loan, eventType, bookTitle, actorID string, at time.Time) models.LoanEvent {
	return models.LoanEvent{
		ID:         uuid.New().String(),
		LoanID:     loan.ID,
		EventType:  eventType,
		OccurredAt: at,
		Payload: models.LoanEventPayload{
			UserID:     loan.UserID,
			BookID:     loan.BookID,
			BookTitle:  bookTitle,
			Status:     loan.Status,
			DueDate:    loan.DueDate,
			ReturnDate: loan.ReturnDate,
			ActorID:    actorID,
		},
	}
}

func insertLoanEvents(ctx context.Context, tx *sqlx.Tx, events ...models.LoanEvent) error {
	for i := range events {
		raw, err := json.Marshal(events[i].Payload)
		if err != nil {
			return fmt.Errorf("failed to encode loan event payload: %w", err)
		}
		events[i].PayloadRaw = raw
	}

	query, args, err := buildLoanEventsInsert(events)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, query, args...)
	return err
}
