package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rongwang/library-server/internal/apperrors"
	"github.com/rongwang/library-server/internal/auth"
	"github.com/rongwang/library-server/internal/models"
	"github.com/rongwang/library-server/internal/utils"
)

const (
	principalKey    = "principal"
	requestIDKey    = "requestId"
	requestIDHeader = "X-Request-ID"
)

// RequestLogger logs one line per request and tags it with a request id
func RequestLogger(logger *utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(requestIDKey, requestID)
		c.Header(requestIDHeader, requestID)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		args := []any{
			"request_id", requestID,
			"method", c.Request.Method,
			"route", route,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if p := principalFrom(c); p.IsAuthenticated() {
			args = append(args, "user_id", p.UserID)
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("request", args...)
		case c.Writer.Status() >= http.StatusBadRequest:
			logger.Warn("request", args...)
		default:
			logger.Info("request", args...)
		}
	}
}

// AuthMiddleware resolves the bearer token into a Principal. Requests without
// a token continue as anonymous; a bad token is rejected.
func AuthMiddleware(tokens *auth.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Set(principalKey, auth.Anonymous)
			c.Next()
			return
		}

		principal, err := tokens.ParseAuthorizationHeader(authHeader)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Status:  "error",
				Code:    string(apperrors.KindAuth),
				Message: "Invalid token",
			})
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// RequireAuth rejects anonymous callers
func RequireAuth() gin.HandlerFunc {
	return guard(auth.RequireAuthenticated)
}

// RequireAdmin rejects anonymous callers and non-admins
func RequireAdmin() gin.HandlerFunc {
	return guard(auth.RequireAdmin)
}

func guard(check func(auth.Principal) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := check(principalFrom(c)); err != nil {
			c.AbortWithStatusJSON(statusFor(err), errorResponse(err))
			return
		}
		c.Next()
	}
}

// principalFrom returns the caller resolved by AuthMiddleware
func principalFrom(c *gin.Context) auth.Principal {
	if value, ok := c.Get(principalKey); ok {
		if p, ok := value.(auth.Principal); ok {
			return p
		}
	}
	return auth.Anonymous
}
