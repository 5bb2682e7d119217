package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/rongwang/library-server/internal/api"
	"github.com/rongwang/library-server/internal/auth"
	"github.com/rongwang/library-server/internal/config"
	"github.com/rongwang/library-server/internal/models"
	"github.com/rongwang/library-server/internal/repository"
	"github.com/rongwang/library-server/internal/service"
	"github.com/rongwang/library-server/internal/utils"
	"github.com/stretchr/testify/require"
)

const (
	MemberEmail    = "testuser@gmail.com"
	MemberPassword = "Password123"
	AdminEmail     = "testadmin@gmail.com"
	AdminPassword  = "Admin1234"
)

// TestContext holds all dependencies for tests
type TestContext struct {
	Router      *gin.Engine
	Repository  repository.Repository
	Service     service.Service
	Tokens      *auth.TokenIssuer
	DB          *sqlx.DB
	MemberID    string
	MemberToken string
	AdminID     string
	AdminToken  string
}

// SetupTestContext connects to the test database, resets it and creates a
// member and an admin. The test is skipped when the database is unreachable.
func SetupTestContext(t *testing.T) *TestContext {
	t.Helper()

	// Load configuration from environment
	cfg := config.LoadConfig()

	// Override with test-specific config
	cfg.Database.DBName = cfg.Database.TestDBName
	cfg.Auth.JWTSecret = "test-secret-key"

	db, err := config.Connect(&cfg.Database)
	if err != nil {
		t.Skipf("test database unavailable: %v", err)
	}
	require.NoError(t, config.Migrate(context.Background(), db), "Failed to set up test database")

	cleanupTestDatabase(t, db)

	repo := repository.NewPostgresRepository(db)
	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, time.Hour)
	logger := utils.NopLogger()
	svc := service.NewDefaultService(repo, tokens, logger)

	// Set up Gin router
	gin.SetMode(gin.TestMode)
	router := gin.New()
	api.NewHandler(svc, tokens, logger).SetupRoutes(router)

	testCtx := &TestContext{
		Router:     router,
		Repository: repo,
		Service:    svc,
		Tokens:     tokens,
		DB:         db,
	}

	testCtx.MemberID, testCtx.MemberToken = testCtx.CreateMember(t, "Test User", MemberEmail)

	admin, err := svc.CreateAdmin(context.Background(), "Test Admin", AdminEmail, AdminPassword)
	require.NoError(t, err, "Failed to create test admin")
	testCtx.AdminID = admin.ID
	testCtx.AdminToken = testCtx.issue(t, admin)

	return testCtx
}

// CleanupTestContext cleans up test resources
func CleanupTestContext(t *TestContext) {
	if t.DB != nil {
		cleanupTestDatabase(nil, t.DB)
		t.DB.Close()
	}
}

// cleanupTestDatabase removes every row, children first
func cleanupTestDatabase(t *testing.T, db *sqlx.DB) {
	for _, table := range []string{"loan_events", "loans", "books", "categories", "users"} {
		if _, err := db.Exec("DELETE FROM " + table); err != nil && t != nil {
			t.Logf("Warning: Failed to clean %s: %v", table, err)
		}
	}
}

func (tc *TestContext) issue(t *testing.T, user *models.User) string {
	token, err := tc.Tokens.Issue(user)
	require.NoError(t, err, "Failed to generate token")
	return token
}

// AdminPrincipal is the caller used to build fixtures through the service
func (tc *TestContext) AdminPrincipal() auth.Principal {
	return auth.Principal{UserID: tc.AdminID, Role: models.RoleAdmin, Name: "Test Admin"}
}

// MemberPrincipal is the default member as a caller
func (tc *TestContext) MemberPrincipal() auth.Principal {
	return auth.Principal{UserID: tc.MemberID, Role: models.RoleUser, Name: "Test User"}
}

// CreateMember registers a member and returns its id and a session token
func (tc *TestContext) CreateMember(t *testing.T, name, email string) (string, string) {
	t.Helper()

	resp, err := tc.Service.Register(context.Background(), models.RegisterRequest{
		FullName: name,
		Email:    email,
		Password: MemberPassword,
	})
	require.NoError(t, err, "Failed to create member %s", email)

	user, err := tc.Repository.GetUserByID(context.Background(), resp.UserID)
	require.NoError(t, err)
	require.NotNil(t, user)

	return user.ID, tc.issue(t, user)
}

// CreateCategory adds a category as the test admin
func (tc *TestContext) CreateCategory(t *testing.T, name string) *models.Category {
	t.Helper()

	category, err := tc.Service.CreateCategory(context.Background(), tc.AdminPrincipal(),
		models.CategoryRequest{Name: name})
	require.NoError(t, err, "Failed to create category %s", name)
	return category
}

// CreateBook adds a book with the given number of copies as the test admin
func (tc *TestContext) CreateBook(t *testing.T, categoryID, title string, copies int) *models.Book {
	t.Helper()

	book, err := tc.Service.CreateBook(context.Background(), tc.AdminPrincipal(), models.BookRequest{
		Title:       title,
		Author:      "Test Author",
		CategoryID:  categoryID,
		TotalCopies: copies,
	})
	require.NoError(t, err, "Failed to create book %s", title)
	return book
}

// SetDueDate moves a loan's due date, e.g. into the past
func (tc *TestContext) SetDueDate(t *testing.T, loanID string, due time.Time) {
	t.Helper()

	_, err := tc.DB.Exec(`UPDATE loans SET due_date = $2 WHERE id = $1`, loanID, due.UTC())
	require.NoError(t, err)
}

// RequireConservation checks availableCopies + active loans == totalCopies
func (tc *TestContext) RequireConservation(t *testing.T, bookID string) {
	t.Helper()

	var row struct {
		Total     int `db:"total_copies"`
		Available int `db:"available_copies"`
		Active    int `db:"active"`
	}
	err := tc.DB.Get(&row, `
		SELECT b.total_copies, b.available_copies,
			(SELECT COUNT(*) FROM loans l WHERE l.book_id = b.id AND l.status IN ('Borrowed', 'Overdue')) AS active
		FROM books b WHERE b.id = $1
	`, bookID)
	require.NoError(t, err)

	require.GreaterOrEqual(t, row.Available, 0)
	require.LessOrEqual(t, row.Available, row.Total)
	require.Equal(t, row.Total, row.Available+row.Active, "copy counter drifted for book %s", bookID)
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}

// DecodeJSON unmarshals a recorded response body
func DecodeJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), "body: %s", w.Body.String())
}
