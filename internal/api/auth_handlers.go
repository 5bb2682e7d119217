package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rongwang/library-server/internal/apperrors"
	"github.com/rongwang/library-server/internal/models"
)

// Register creates a member account
func (h *Handler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	resp, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Login exchanges a credential for a session token. An unknown email and a
// wrong password get the same answer.
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Email and password are required")
		return
	}

	resp, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) || apperrors.Is(err, apperrors.KindAuth) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Status:  "error",
				Code:    string(apperrors.KindAuth),
				Message: "invalid email or password",
			})
			return
		}
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Me returns the caller's profile
func (h *Handler) Me(c *gin.Context) {
	p := principalFrom(c)

	user, err := h.service.GetUser(c.Request.Context(), p, p.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.UserResponse{Status: "success", User: user})
}
