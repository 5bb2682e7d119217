package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rongwang/library-server/internal/auth"
	"github.com/rongwang/library-server/internal/models"
	"github.com/rongwang/library-server/internal/service"
	"github.com/rongwang/library-server/internal/utils"
)

// Handler serves the HTTP API on top of the service layer
type Handler struct {
	service service.Service
	tokens  *auth.TokenIssuer
	logger  *utils.Logger
}

// NewHandler creates a new Handler
func NewHandler(svc service.Service, tokens *auth.TokenIssuer, logger *utils.Logger) *Handler {
	if logger == nil {
		logger = utils.NopLogger()
	}
	return &Handler{
		service: svc,
		tokens:  tokens,
		logger:  logger,
	}
}

// SetupRoutes registers every route on the router
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(RequestLogger(h.logger))

	api := router.Group("/api")
	api.GET("/health", h.Health)

	api.Use(AuthMiddleware(h.tokens))

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
	}

	// Public catalog
	api.GET("/books", h.SearchBooks)
	api.GET("/books/featured", h.FeaturedBooks)
	api.GET("/books/:id", h.GetBook)
	api.GET("/categories", h.ListCategories)

	me := api.Group("/me", RequireAuth())
	{
		me.GET("", h.Me)
		me.GET("/dashboard", h.MemberDashboard)
		me.GET("/loans", h.History)
		me.POST("/loans", h.Borrow)
		me.POST("/loans/:id/return", h.Return)
	}

	admin := api.Group("/admin", RequireAdmin())
	{
		admin.GET("/dashboard", h.AdminDashboard)

		admin.POST("/books", h.CreateBook)
		admin.PUT("/books/:id", h.UpdateBook)
		admin.DELETE("/books/:id", h.DeleteBook)

		admin.POST("/categories", h.CreateCategory)
		admin.PUT("/categories/:id", h.UpdateCategory)
		admin.DELETE("/categories/:id", h.DeleteCategory)

		admin.GET("/users", h.ListMembers)

		admin.GET("/loans", h.ListLoans)
		admin.POST("/loans/sweep", h.SweepOverdue)
		admin.POST("/loans/:id/overdue", h.MarkOverdue)
		admin.GET("/loans/:id/events", h.LoanEvents)
	}
}

// Health reports whether the database is reachable
func (h *Handler) Health(c *gin.Context) {
	if err := h.service.Health(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Status: "success", Message: "ok"})
}
