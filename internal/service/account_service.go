package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rongwang/library-server/internal/apperrors"
	"github.com/rongwang/library-server/internal/auth"
	"github.com/rongwang/library-server/internal/models"
	"github.com/rongwang/library-server/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

// normalizeEmail is the stored form of an email address
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a member account
func (s *DefaultService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	user, err := s.createUser(ctx, req.FullName, req.Email, req.Password, models.RoleUser)
	if err != nil {
		return nil, err
	}

	s.logger.Info("member registered", "user_id", user.ID)

	return &models.AuthResponse{
		Status: "success",
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.FullName,
		Role:   user.Role,
	}, nil
}

// CreateAdmin creates an administrator account. It is not reachable over
// HTTP; the seed and the CLI use it.
func (s *DefaultService) CreateAdmin(ctx context.Context, fullName, email, password string) (*models.User, error) {
	user, err := s.createUser(ctx, fullName, email, password, models.RoleAdmin)
	if err != nil {
		return nil, err
	}

	s.logger.Info("admin created", "user_id", user.ID)
	return user, nil
}

func (s *DefaultService) createUser(ctx context.Context, fullName, email, password string, role models.Role) (*models.User, error) {
	if violations := validation.ValidateRegistration(fullName, email, password); len(violations) > 0 {
		return nil, apperrors.Validation("invalid registration", violations...)
	}

	email = normalizeEmail(email)

	// Check if user already exists
	existingUser, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("error checking user existence: %w", err)
	}
	if existingUser != nil {
		return nil, apperrors.Conflict(apperrors.MsgEmailTaken)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, apperrors.Validation("invalid registration", apperrors.Violation{
			Field:   "password",
			Message: fmt.Sprintf("must be at most %d bytes", validation.MaxPasswordBytes),
		})
	}
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{
		FullName: strings.TrimSpace(fullName),
		Email:    email,
		Password: string(hashedPassword),
		Role:     role,
	}

	// A concurrent registration with the same email hits the unique index
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	return user, nil
}

// VerifyCredential looks up the account by email and checks the password
func (s *DefaultService) VerifyCredential(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	if user == nil {
		return nil, apperrors.NotFound("no account with this email")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, apperrors.Auth("invalid email or password")
	}

	return user, nil
}

// Login verifies the credential and issues a session token
func (s *DefaultService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.VerifyCredential(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	return &models.AuthResponse{
		Status:    "success",
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.FullName,
		Role:      user.Role,
		Token:     token,
		ExpiresIn: int(s.tokens.TTL().Seconds()),
	}, nil
}

// GetUser returns a profile. Members may only read their own.
func (s *DefaultService) GetUser(ctx context.Context, p auth.Principal, id string) (*models.User, error) {
	if err := auth.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	if p.UserID != id && !p.IsAdmin() {
		return nil, apperrors.Authorization("cannot view another user's profile")
	}

	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	if user == nil {
		return nil, apperrors.NotFound("user not found")
	}

	return user, nil
}

// ListMembers returns every member with their loan counts
func (s *DefaultService) ListMembers(ctx context.Context, p auth.Principal) ([]models.MemberSummary, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return nil, err
	}

	members, err := s.repo.ListMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing members: %w", err)
	}
	return members, nil
}
