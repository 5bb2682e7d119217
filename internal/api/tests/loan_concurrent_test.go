package api_test

import (
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rongwang/library-server/internal/api/testutils"
	"github.com/rongwang/library-server/internal/apperrors"
	"github.com/rongwang/library-server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// One member racing to borrow several books ends up with exactly one loan
func TestConcurrentBorrowSameMember(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	category := testCtx.CreateCategory(t, "Novel")
	const numBooks = 8
	bookIDs := make([]string, numBooks)
	for i := range bookIDs {
		bookIDs[i] = testCtx.CreateBook(t, category.ID, fmt.Sprintf("Concurrent Book %d", i), 2).ID
	}

	codes := make(chan int, numBooks)
	var wg sync.WaitGroup
	for _, bookID := range bookIDs {
		wg.Add(1)
		go func(bookID string) {
			defer wg.Done()

			w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/me/loans",
				models.BorrowRequest{BookID: bookID}, testutils.AuthHeaders(testCtx.MemberToken))
			codes <- w.Code
		}(bookID)
	}
	wg.Wait()
	close(codes)

	created, conflicts := 0, 0
	for code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicts++
		default:
			t.Errorf("unexpected status %d", code)
		}
	}
	assert.Equal(t, 1, created, "exactly one borrow may win")
	assert.Equal(t, numBooks-1, conflicts)

	active, err := testCtx.Repository.CountLoans(t.Context(), models.LoanFilter{UserID: testCtx.MemberID, ActiveOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, active)

	for _, bookID := range bookIDs {
		testCtx.RequireConservation(t, bookID)
	}
}

// Many members racing for fewer copies never overdraw the counter
func TestConcurrentBorrowScarceCopies(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	const copies = 3
	const numMembers = 10

	category := testCtx.CreateCategory(t, "Novel")
	book := testCtx.CreateBook(t, category.ID, "Laskar Pelangi", copies)

	memberIDs := make([]string, numMembers)
	for i := range memberIDs {
		memberIDs[i], _ = testCtx.CreateMember(t, fmt.Sprintf("Member %d", i), fmt.Sprintf("member%d@gmail.com", i))
	}

	errs := make(chan error, numMembers)
	var wg sync.WaitGroup
	for _, id := range memberIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()

			_, err := testCtx.Service.Borrow(t.Context(), memberPrincipal(id), book.ID)
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, apperrors.Is(err, apperrors.KindConflict), "unexpected error: %v", err)
	}

	assert.Equal(t, copies, succeeded)
	assert.Equal(t, 0, getBook(t, testCtx, book.ID).AvailableCopies)
	testCtx.RequireConservation(t, book.ID)
}

// Returns and sweeps running together keep every invariant
func TestConcurrentReturnAndSweep(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	const numMembers = 6

	category := testCtx.CreateCategory(t, "Novel")
	book := testCtx.CreateBook(t, category.ID, "Bumi Manusia", numMembers)

	type loanOwner struct {
		memberID string
		loanID   string
	}
	owners := make([]loanOwner, numMembers)
	for i := range owners {
		id, _ := testCtx.CreateMember(t, fmt.Sprintf("Member %d", i), fmt.Sprintf("member%d@gmail.com", i))
		loan, err := testCtx.Service.Borrow(t.Context(), memberPrincipal(id), book.ID)
		require.NoError(t, err)
		testCtx.SetDueDate(t, loan.ID, time.Now().Add(-time.Hour))
		owners[i] = loanOwner{memberID: id, loanID: loan.ID}
	}

	var wg sync.WaitGroup
	for _, owner := range owners {
		wg.Add(2)
		go func(owner loanOwner) {
			defer wg.Done()

			_, err := testCtx.Service.Return(t.Context(), memberPrincipal(owner.memberID), owner.loanID)
			assert.NoError(t, err)
		}(owner)
		go func() {
			defer wg.Done()

			_, err := testCtx.Service.RunSweep(t.Context())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	returned, err := testCtx.Repository.CountLoans(t.Context(), models.LoanFilter{Status: models.LoanReturned})
	require.NoError(t, err)
	assert.Equal(t, numMembers, returned)
	assert.Equal(t, numMembers, getBook(t, testCtx, book.ID).AvailableCopies)
	testCtx.RequireConservation(t, book.ID)
}
