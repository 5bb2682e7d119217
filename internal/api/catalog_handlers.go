package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rongwang/library-server/internal/models"
)

// SearchBooks lists the catalog filtered by q, categoryId and available
func (h *Handler) SearchBooks(c *gin.Context) {
	filter := models.BookFilter{
		Query:      c.Query("q"),
		CategoryID: c.Query("categoryId"),
	}
	if available := c.Query("available"); available != "" {
		value, err := strconv.ParseBool(available)
		if err != nil {
			badRequest(c, "available must be true or false")
			return
		}
		filter.AvailableOnly = value
	}

	books, err := h.service.SearchBooks(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.BookListResponse{Status: "success", Books: books})
}

func (h *Handler) FeaturedBooks(c *gin.Context) {
	books, err := h.service.FeaturedBooks(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.BookListResponse{Status: "success", Books: books})
}

func (h *Handler) GetBook(c *gin.Context) {
	book, err := h.service.GetBook(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.BookResponse{Status: "success", Book: book})
}

func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.service.ListCategories(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.CategoryListResponse{Status: "success", Categories: categories})
}

// Admin catalog maintenance

func (h *Handler) CreateBook(c *gin.Context) {
	var req models.BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	book, err := h.service.CreateBook(c.Request.Context(), principalFrom(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.BookResponse{Status: "success", Book: book})
}

func (h *Handler) UpdateBook(c *gin.Context) {
	var req models.BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	book, err := h.service.UpdateBook(c.Request.Context(), principalFrom(c), c.Param("id"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.BookResponse{Status: "success", Book: book})
}

func (h *Handler) DeleteBook(c *gin.Context) {
	if err := h.service.DeleteBook(c.Request.Context(), principalFrom(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{Status: "success", Message: "Book deleted"})
}

func (h *Handler) CreateCategory(c *gin.Context) {
	var req models.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	category, err := h.service.CreateCategory(c.Request.Context(), principalFrom(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.CategoryResponse{Status: "success", Category: category})
}

func (h *Handler) UpdateCategory(c *gin.Context) {
	var req models.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	category, err := h.service.UpdateCategory(c.Request.Context(), principalFrom(c), c.Param("id"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.CategoryResponse{Status: "success", Category: category})
}

func (h *Handler) DeleteCategory(c *gin.Context) {
	if err := h.service.DeleteCategory(c.Request.Context(), principalFrom(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{Status: "success", Message: "Category deleted"})
}
