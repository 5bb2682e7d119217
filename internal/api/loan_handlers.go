package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rongwang/library-server/internal/models"
)

// Member endpoints

func (h *Handler) MemberDashboard(c *gin.Context) {
	dashboard, err := h.service.MemberDashboard(c.Request.Context(), principalFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dashboard)
}

func (h *Handler) History(c *gin.Context) {
	loans, err := h.service.History(c.Request.Context(), principalFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.LoanListResponse{Status: "success", Loans: loans})
}

func (h *Handler) Borrow(c *gin.Context) {
	var req models.BorrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "bookId is required")
		return
	}

	loan, err := h.service.Borrow(c.Request.Context(), principalFrom(c), req.BookID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.LoanResponse{Status: "success", Loan: loan})
}

func (h *Handler) Return(c *gin.Context) {
	loan, err := h.service.Return(c.Request.Context(), principalFrom(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.LoanResponse{Status: "success", Loan: loan})
}

// Admin endpoints

func (h *Handler) AdminDashboard(c *gin.Context) {
	stats, err := h.service.AdminDashboard(c.Request.Context(), principalFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AdminDashboardResponse{Status: "success", DashboardStats: *stats})
}

func (h *Handler) ListMembers(c *gin.Context) {
	members, err := h.service.ListMembers(c.Request.Context(), principalFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MemberListResponse{Status: "success", Members: members})
}

// ListLoans lists every loan; ?status=Overdue also matches unswept past-due loans
func (h *Handler) ListLoans(c *gin.Context) {
	status := c.Query("status")

	loans, err := h.service.ListLoans(c.Request.Context(), principalFrom(c), status)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.LoanListResponse{Status: "success", Filter: status, Loans: loans})
}

func (h *Handler) MarkOverdue(c *gin.Context) {
	loanID := c.Param("id")

	marked, err := h.service.MarkOverdue(c.Request.Context(), principalFrom(c), loanID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MarkOverdueResponse{Status: "success", LoanID: loanID, Marked: marked})
}

func (h *Handler) SweepOverdue(c *gin.Context) {
	swept, err := h.service.SweepOverdue(c.Request.Context(), principalFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SweepResponse{Status: "success", Swept: swept})
}

func (h *Handler) LoanEvents(c *gin.Context) {
	loanID := c.Param("id")

	events, err := h.service.LoanEvents(c.Request.Context(), principalFrom(c), loanID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.LoanEventListResponse{Status: "success", LoanID: loanID, Events: events})
}
