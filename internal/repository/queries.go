package repository

import (
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/rongwang/library-server/internal/models"
)

const dialectPostgres = "postgres"

var dialect = goqu.Dialect(dialectPostgres)

var activeStatuses = []interface{}{string(models.LoanBorrowed), string(models.LoanOverdue)}

// escapeLike makes user input literal inside a LIKE pattern
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func bookSelect() *goqu.SelectDataset {
	return dialect.
		From(goqu.T("books").As("b")).
		InnerJoin(goqu.T("categories").As("c"), goqu.On(goqu.I("c.id").Eq(goqu.I("b.category_id")))).
		Select(
			goqu.I("b.id"), goqu.I("b.title"), goqu.I("b.author"), goqu.I("b.category_id"),
			goqu.I("c.name").As("category_name"),
			goqu.I("b.total_copies"), goqu.I("b.available_copies"), goqu.I("b.description"),
			goqu.I("b.created_at"), goqu.I("b.updated_at"),
		)
}

// buildBookSearchQuery matches the query case-insensitively against title,
// author and category name, ordered by title
func buildBookSearchQuery(filter models.BookFilter) (string, []interface{}, error) {
	ds := bookSelect()

	var conditions []exp.Expression
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := "%" + escapeLike(q) + "%"
		conditions = append(conditions, goqu.Or(
			goqu.I("b.title").ILike(pattern),
			goqu.I("b.author").ILike(pattern),
			goqu.I("c.name").ILike(pattern),
		))
	}
	if filter.CategoryID != "" {
		conditions = append(conditions, goqu.I("b.category_id").Eq(filter.CategoryID))
	}
	if filter.AvailableOnly {
		conditions = append(conditions, goqu.I("b.available_copies").Gt(0))
	}
	if len(conditions) > 0 {
		ds = ds.Where(conditions...)
	}

	return ds.Order(goqu.I("b.title").Asc(), goqu.I("b.id").Asc()).Prepared(true).ToSQL()
}

func loanFrom() *goqu.SelectDataset {
	return dialect.
		From(goqu.T("loans").As("l")).
		InnerJoin(goqu.T("books").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("l.book_id")))).
		InnerJoin(goqu.T("categories").As("c"), goqu.On(goqu.I("c.id").Eq(goqu.I("b.category_id")))).
		InnerJoin(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("l.user_id"))))
}

// loanConditions builds the WHERE clause for a loan filter. The Overdue
// status also matches Borrowed loans already past due, so listings don't
// depend on the sweep having run.
func loanConditions(filter models.LoanFilter) []exp.Expression {
	var conditions []exp.Expression

	switch filter.Status {
	case "":
	case models.LoanOverdue:
		conditions = append(conditions, goqu.Or(
			goqu.I("l.status").Eq(string(models.LoanOverdue)),
			goqu.And(
				goqu.I("l.status").Eq(string(models.LoanBorrowed)),
				goqu.I("l.due_date").Lt(filter.Now),
			),
		))
	default:
		conditions = append(conditions, goqu.I("l.status").Eq(string(filter.Status)))
	}

	if filter.ActiveOnly {
		conditions = append(conditions, goqu.I("l.status").In(activeStatuses...))
	}
	if filter.UserID != "" {
		conditions = append(conditions, goqu.I("l.user_id").Eq(filter.UserID))
	}
	if filter.BookID != "" {
		conditions = append(conditions, goqu.I("l.book_id").Eq(filter.BookID))
	}

	return conditions
}

func loanViewSelect() *goqu.SelectDataset {
	return loanFrom().Select(
		goqu.I("l.id"), goqu.I("l.user_id"), goqu.I("l.book_id"),
		goqu.I("l.borrow_date"), goqu.I("l.due_date"), goqu.I("l.return_date"),
		goqu.I("l.status"), goqu.I("l.notes"), goqu.I("l.created_at"), goqu.I("l.updated_at"),
		goqu.I("b.title").As("book_title"),
		goqu.I("b.author").As("book_author"),
		goqu.I("c.name").As("category_name"),
		goqu.I("u.full_name").As("user_name"),
		goqu.I("u.email").As("user_email"),
	)
}

func buildLoanListQuery(filter models.LoanFilter) (string, []interface{}, error) {
	ds := loanViewSelect()
	if conditions := loanConditions(filter); len(conditions) > 0 {
		ds = ds.Where(conditions...)
	}
	ds = ds.Order(goqu.I("l.borrow_date").Desc(), goqu.I("l.id").Desc())
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}

	return ds.Prepared(true).ToSQL()
}

func buildLoanCountQuery(filter models.LoanFilter) (string, []interface{}, error) {
	ds := dialect.From(goqu.T("loans").As("l")).Select(goqu.COUNT(goqu.Star()))
	if conditions := loanConditions(filter); len(conditions) > 0 {
		ds = ds.Where(conditions...)
	}
	return ds.Prepared(true).ToSQL()
}

// buildLoanEventsInsert writes a batch of audit records in one statement
func buildLoanEventsInsert(events []models.LoanEvent) (string, []interface{}, error) {
	rows := make([]interface{}, 0, len(events))
	for _, event := range events {
		rows = append(rows, goqu.Record{
			"id":          event.ID,
			"loan_id":     event.LoanID,
			"event_type":  event.EventType,
			"occurred_at": event.OccurredAt,
			"payload":     string(event.PayloadRaw),
		})
	}
	return dialect.Insert("loan_events").Rows(rows...).Prepared(true).ToSQL()
}

func bookIDIs(id string) exp.Expression {
	return goqu.I("b.id").Eq(id)
}

func buildFeaturedBooksQuery(limit int) (string, []interface{}, error) {
	return bookSelect().
		Where(goqu.I("b.available_copies").Gt(0)).
		Order(goqu.Func("random").Asc()).
		Limit(uint(limit)).
		Prepared(true).
		ToSQL()
}

func buildLoanByIDQuery(id string) (string, []interface{}, error) {
	return loanViewSelect().Where(goqu.I("l.id").Eq(id)).Prepared(true).ToSQL()
}
