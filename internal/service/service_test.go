package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rongwang/library-server/internal/apperrors"
	"github.com/rongwang/library-server/internal/auth"
	"github.com/rongwang/library-server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var (
	fixedNow = time.Date(2026, 5, 10, 9, 30, 0, 0, time.UTC)
	member   = auth.Principal{UserID: "user-1", Role: models.RoleUser, Name: "Budi Santoso"}
	admin    = auth.Principal{UserID: "admin-1", Role: models.RoleAdmin, Name: "Administrator"}
)

func newTestService(repo *mockRepository) (Service, *auth.TokenIssuer) {
	tokens := auth.NewTokenIssuer("test-secret-key", time.Hour)
	svc := NewDefaultService(repo, tokens, nil, WithClock(func() time.Time { return fixedNow }))
	return svc, tokens
}

func hashPassword(t *testing.T, password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestRegister(t *testing.T) {
	t.Run("password policy", func(t *testing.T) {
		svc, _ := newTestService(&mockRepository{
			GetUserByEmailFn: func(ctx context.Context, email string) (*models.User, error) { return nil, nil },
			CreateUserFn:     func(ctx context.Context, user *models.User) error { return nil },
		})

		for _, password := range []string{"password1", "Password1!", "Pass1", "PASSWORD1"} {
			_, err := svc.Register(context.Background(), models.RegisterRequest{
				FullName: "Budi Santoso", Email: "budi@gmail.com", Password: password,
			})
			assert.True(t, apperrors.Is(err, apperrors.KindValidation), "password %q", password)
		}

		resp, err := svc.Register(context.Background(), models.RegisterRequest{
			FullName: "Budi Santoso", Email: "budi@gmail.com", Password: "Password1",
		})
		require.NoError(t, err)
		assert.Equal(t, "success", resp.Status)
	})

	t.Run("password longer than bcrypt accepts", func(t *testing.T) {
		svc, _ := newTestService(&mockRepository{
			GetUserByEmailFn: func(ctx context.Context, email string) (*models.User, error) { return nil, nil },
			CreateUserFn: func(ctx context.Context, user *models.User) error {
				t.Fatal("user must not be created")
				return nil
			},
		})

		_, err := svc.Register(context.Background(), models.RegisterRequest{
			FullName: "Budi Santoso", Email: "budi@gmail.com", Password: "Aa1" + strings.Repeat("b", 77),
		})
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.KindValidation))

		appErr, ok := apperrors.As(err)
		require.True(t, ok)
		require.Len(t, appErr.Violations, 1)
		assert.Equal(t, "password", appErr.Violations[0].Field)
	})

	t.Run("stores normalized email and hash", func(t *testing.T) {
		var stored *models.User
		svc, _ := newTestService(&mockRepository{
			GetUserByEmailFn: func(ctx context.Context, email string) (*models.User, error) {
				assert.Equal(t, "budi.santoso@gmail.com", email)
				return nil, nil
			},
			CreateUserFn: func(ctx context.Context, user *models.User) error {
				stored = user
				user.ID = "new-id"
				return nil
			},
		})

		resp, err := svc.Register(context.Background(), models.RegisterRequest{
			FullName: "  Budi Santoso ", Email: " Budi.Santoso@Gmail.com ", Password: "Password1",
		})
		require.NoError(t, err)
		require.NotNil(t, stored)

		assert.Equal(t, "new-id", resp.UserID)
		assert.Equal(t, "Budi Santoso", stored.FullName)
		assert.Equal(t, "budi.santoso@gmail.com", stored.Email)
		assert.Equal(t, models.RoleUser, stored.Role)
		assert.NotEqual(t, "Password1", stored.Password)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("Password1")))
	})

	t.Run("domain outside allow-list", func(t *testing.T) {
		svc, _ := newTestService(&mockRepository{})

		_, err := svc.Register(context.Background(), models.RegisterRequest{
			FullName: "Budi", Email: "budi@example.com", Password: "Password1",
		})
		assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	})

	t.Run("duplicate email", func(t *testing.T) {
		svc, _ := newTestService(&mockRepository{
			GetUserByEmailFn: func(ctx context.Context, email string) (*models.User, error) {
				return &models.User{ID: "existing", Email: email}, nil
			},
		})

		_, err := svc.Register(context.Background(), models.RegisterRequest{
			FullName: "Budi", Email: "BUDI@gmail.com", Password: "Password1",
		})
		assert.True(t, apperrors.Is(err, apperrors.KindConflict))
	})
}

func TestVerifyCredentialAndLogin(t *testing.T) {
	user := &models.User{
		ID:       "user-1",
		FullName: "Budi Santoso",
		Email:    "budi@gmail.com",
		Password: hashPassword(t, "Password1"),
		Role:     models.RoleUser,
	}
	repo := &mockRepository{
		GetUserByEmailFn: func(ctx context.Context, email string) (*models.User, error) {
			if email == user.Email {
				return user, nil
			}
			return nil, nil
		},
	}
	svc, tokens := newTestService(repo)
	ctx := context.Background()

	_, err := svc.VerifyCredential(ctx, "nobody@gmail.com", "Password1")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	_, err = svc.VerifyCredential(ctx, "budi@gmail.com", "Password2")
	assert.True(t, apperrors.Is(err, apperrors.KindAuth))

	found, err := svc.VerifyCredential(ctx, " BUDI@gmail.com", "Password1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	resp, err := svc.Login(ctx, models.LoginRequest{Email: "budi@gmail.com", Password: "Password1"})
	require.NoError(t, err)
	assert.Equal(t, 3600, resp.ExpiresIn)
	assert.Equal(t, models.RoleUser, resp.Role)

	principal, err := tokens.Parse(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", principal.UserID)
	assert.Equal(t, "Budi Santoso", principal.Name)
}

func TestGetUser(t *testing.T) {
	svc, _ := newTestService(&mockRepository{
		GetUserByIDFn: func(ctx context.Context, id string) (*models.User, error) {
			if id == member.UserID {
				return &models.User{ID: id}, nil
			}
			return nil, nil
		},
	})
	ctx := context.Background()

	_, err := svc.GetUser(ctx, auth.Anonymous, member.UserID)
	assert.True(t, apperrors.Is(err, apperrors.KindAuth))

	_, err = svc.GetUser(ctx, member, "someone-else")
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization))

	user, err := svc.GetUser(ctx, member, member.UserID)
	require.NoError(t, err)
	assert.Equal(t, member.UserID, user.ID)

	_, err = svc.GetUser(ctx, admin, "missing")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestCatalogGuards(t *testing.T) {
	// the empty mock panics if a guarded call reaches storage
	svc, _ := newTestService(&mockRepository{})
	ctx := context.Background()
	req := models.BookRequest{Title: "Laskar Pelangi", Author: "Andrea Hirata", CategoryID: "cat-1", TotalCopies: 1}

	_, err := svc.CreateBook(ctx, auth.Anonymous, req)
	assert.True(t, apperrors.Is(err, apperrors.KindAuth))

	_, err = svc.CreateBook(ctx, member, req)
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization))

	err = svc.DeleteCategory(ctx, member, "cat-1")
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization))

	err = svc.DeleteBook(ctx, auth.Anonymous, "book-1")
	assert.True(t, apperrors.Is(err, apperrors.KindAuth))

	_, err = svc.MarkOverdue(ctx, member, "loan-1")
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization))

	_, err = svc.ListLoans(ctx, member, "")
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization))

	_, err = svc.Borrow(ctx, auth.Anonymous, "book-1")
	assert.True(t, apperrors.Is(err, apperrors.KindAuth))
}

func TestCreateBook(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects invalid fields", func(t *testing.T) {
		svc, _ := newTestService(&mockRepository{})

		_, err := svc.CreateBook(ctx, admin, models.BookRequest{Title: " ", Author: "A", CategoryID: "cat-1", TotalCopies: 0})
		var appErr *apperrors.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.KindValidation, appErr.Kind)
		assert.Len(t, appErr.Violations, 2)
	})

	t.Run("rejects unknown category", func(t *testing.T) {
		svc, _ := newTestService(&mockRepository{
			GetCategoryFn: func(ctx context.Context, id string) (*models.Category, error) { return nil, nil },
		})

		_, err := svc.CreateBook(ctx, admin, models.BookRequest{Title: "T", Author: "A", CategoryID: "missing", TotalCopies: 1})
		var appErr *apperrors.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.KindValidation, appErr.Kind)
		assert.Equal(t, "categoryId", appErr.Violations[0].Field)
	})

	t.Run("creates trimmed book", func(t *testing.T) {
		var created *models.Book
		svc, _ := newTestService(&mockRepository{
			GetCategoryFn: func(ctx context.Context, id string) (*models.Category, error) {
				return &models.Category{ID: id, Name: "Novel"}, nil
			},
			CreateBookFn: func(ctx context.Context, book *models.Book) error {
				book.ID = "book-1"
				book.AvailableCopies = book.TotalCopies
				created = book
				return nil
			},
			GetBookFn: func(ctx context.Context, id string) (*models.Book, error) {
				b := *created
				b.CategoryName = "Novel"
				return &b, nil
			},
		})

		book, err := svc.CreateBook(ctx, admin, models.BookRequest{
			Title: " Laskar Pelangi ", Author: "Andrea Hirata", CategoryID: "cat-1", TotalCopies: 3,
		})
		require.NoError(t, err)
		assert.Equal(t, "Laskar Pelangi", book.Title)
		assert.Equal(t, 3, book.AvailableCopies)
		assert.Equal(t, "Novel", book.CategoryName)
	})
}

func TestBorrowAndReturn(t *testing.T) {
	ctx := context.Background()
	loan := &models.Loan{
		ID:         "loan-1",
		UserID:     member.UserID,
		BookID:     "book-1",
		BorrowDate: fixedNow,
		DueDate:    fixedNow.Add(models.LoanPeriod),
		Status:     models.LoanBorrowed,
	}

	repo := &mockRepository{
		BorrowFn: func(ctx context.Context, userID, bookID string, now time.Time) (*models.Loan, error) {
			assert.Equal(t, member.UserID, userID)
			assert.Equal(t, "book-1", bookID)
			assert.Equal(t, fixedNow, now)
			return loan, nil
		},
		ReturnFn: func(ctx context.Context, loanID, userID string, now time.Time) (*models.Loan, error) {
			if userID != member.UserID {
				return nil, apperrors.NotFound("active loan not found")
			}
			returned := *loan
			returned.Status = models.LoanReturned
			returned.ReturnDate = &now
			return &returned, nil
		},
		GetLoanFn: func(ctx context.Context, id string) (*models.LoanView, error) {
			return &models.LoanView{Loan: *loan, BookTitle: "Laskar Pelangi"}, nil
		},
	}
	svc, _ := newTestService(repo)

	_, err := svc.Borrow(ctx, member, " ")
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	view, err := svc.Borrow(ctx, member, "book-1")
	require.NoError(t, err)
	assert.Equal(t, "loan-1", view.ID)
	assert.False(t, view.Overdue)
	assert.Equal(t, 0, view.DaysOverdue)

	other := auth.Principal{UserID: "user-2", Role: models.RoleUser}
	_, err = svc.Return(ctx, other, "loan-1")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	_, err = svc.Return(ctx, member, "loan-1")
	require.NoError(t, err)
}

func TestBorrowPropagatesConflict(t *testing.T) {
	svc, _ := newTestService(&mockRepository{
		BorrowFn: func(ctx context.Context, userID, bookID string, now time.Time) (*models.Loan, error) {
			return nil, apperrors.Conflict(apperrors.MsgUserHasActiveLoan)
		},
	})

	_, err := svc.Borrow(context.Background(), member, "book-2")
	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.KindConflict, appErr.Kind)
	assert.Equal(t, apperrors.MsgUserHasActiveLoan, appErr.Message)
}

func TestListLoans(t *testing.T) {
	ctx := context.Background()
	swept := false

	svc, _ := newTestService(&mockRepository{
		SweepOverdueFn: func(ctx context.Context, now time.Time) (int64, error) {
			swept = true
			return 1, nil
		},
		ListLoansFn: func(ctx context.Context, filter models.LoanFilter) ([]models.LoanView, error) {
			assert.True(t, swept, "sweep runs before the listing")
			assert.Equal(t, models.LoanOverdue, filter.Status)
			assert.Equal(t, fixedNow, filter.Now)
			return []models.LoanView{{Loan: models.Loan{
				ID: "loan-1", Status: models.LoanBorrowed, DueDate: fixedNow.Add(-49 * time.Hour),
			}}}, nil
		},
	})

	_, err := svc.ListLoans(ctx, admin, "Lost")
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	loans, err := svc.ListLoans(ctx, admin, "overdue")
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.True(t, loans[0].Overdue)
	assert.Equal(t, 2, loans[0].DaysOverdue)
}

func TestParseStatusFilter(t *testing.T) {
	status, err := ParseStatusFilter("")
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatus(""), status)

	status, err = ParseStatusFilter(" returned ")
	require.NoError(t, err)
	assert.Equal(t, models.LoanReturned, status)

	_, err = ParseStatusFilter("Lost")
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestMarkOverdue(t *testing.T) {
	svc, _ := newTestService(&mockRepository{
		MarkOverdueFn: func(ctx context.Context, loanID, actorID string, now time.Time) (bool, error) {
			assert.Equal(t, admin.UserID, actorID)
			switch loanID {
			case "borrowed":
				return true, nil
			case "returned":
				return false, nil
			}
			return false, apperrors.NotFound("loan not found")
		},
	})
	ctx := context.Background()

	marked, err := svc.MarkOverdue(ctx, admin, "borrowed")
	require.NoError(t, err)
	assert.True(t, marked)

	marked, err = svc.MarkOverdue(ctx, admin, "returned")
	require.NoError(t, err)
	assert.False(t, marked)

	_, err = svc.MarkOverdue(ctx, admin, "missing")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestAdminDashboard(t *testing.T) {
	var filters []models.LoanFilter
	svc, _ := newTestService(&mockRepository{
		SweepOverdueFn: func(ctx context.Context, now time.Time) (int64, error) {
			return 0, errors.New("sweep failed")
		},
		CountBooksFn:   func(ctx context.Context) (int, error) { return 12, nil },
		CountMembersFn: func(ctx context.Context) (int, error) { return 4, nil },
		CountLoansFn: func(ctx context.Context, filter models.LoanFilter) (int, error) {
			filters = append(filters, filter)
			if filter.Status == models.LoanOverdue {
				return 1, nil
			}
			return 3, nil
		},
		ListLoansFn: func(ctx context.Context, filter models.LoanFilter) ([]models.LoanView, error) {
			assert.Equal(t, RecentLoansLimit, filter.Limit)
			return []models.LoanView{}, nil
		},
	})

	stats, err := svc.AdminDashboard(context.Background(), admin)
	require.NoError(t, err)

	assert.Equal(t, 12, stats.TotalBooks)
	assert.Equal(t, 4, stats.TotalMembers)
	assert.Equal(t, 3, stats.ActiveLoans)
	assert.Equal(t, 1, stats.OverdueLoans)
	assert.Equal(t, int64(0), stats.SweptThisCycle)
	require.Len(t, filters, 2)
	assert.True(t, filters[0].ActiveOnly)
	assert.Equal(t, fixedNow, filters[1].Now)

	_, err = svc.AdminDashboard(context.Background(), member)
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization))
}

func TestMemberDashboard(t *testing.T) {
	svc, _ := newTestService(&mockRepository{
		SweepOverdueFn: func(ctx context.Context, now time.Time) (int64, error) { return 0, nil },
		ListLoansFn: func(ctx context.Context, filter models.LoanFilter) ([]models.LoanView, error) {
			assert.Equal(t, member.UserID, filter.UserID)
			assert.True(t, filter.ActiveOnly)
			return []models.LoanView{}, nil
		},
	})

	dashboard, err := svc.MemberDashboard(context.Background(), member)
	require.NoError(t, err)
	assert.Equal(t, "Budi Santoso", dashboard.UserName)
	assert.Nil(t, dashboard.CurrentLoan)

	_, err = svc.MemberDashboard(context.Background(), auth.Anonymous)
	assert.True(t, apperrors.Is(err, apperrors.KindAuth))
}

func TestLoanEvents(t *testing.T) {
	svc, _ := newTestService(&mockRepository{
		ListLoanEventsFn: func(ctx context.Context, loanID string) ([]models.LoanEvent, error) {
			if loanID == "loan-1" {
				return []models.LoanEvent{{ID: "e1", LoanID: loanID, EventType: models.LoanEventBorrowed}}, nil
			}
			return []models.LoanEvent{}, nil
		},
		GetLoanFn: func(ctx context.Context, id string) (*models.LoanView, error) { return nil, nil },
	})
	ctx := context.Background()

	events, err := svc.LoanEvents(ctx, admin, "loan-1")
	require.NoError(t, err)
	assert.Len(t, events, 1)

	_, err = svc.LoanEvents(ctx, admin, "missing")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}
