package service

import (
	"context"
	"strings"

	"ynetwork/internal/models"
	"ynetwork/internal/repository"
	"ynetwork/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// SignupInput is the body of a signup request.
type SignupInput struct {
	Username        string `json:"username" validate:"required,username"`
	UniversityEmail string `json:"university_email" validate:"required,email,max=254"`
	Password        string `json:"password" validate:"required,password"`
	FirstName       string `json:"first_name" validate:"required,notblank,min=3,max=50"`
	LastName        string `json:"last_name" validate:"required,notblank,min=3,max=50"`
}

// LoginInput is the body of a login request.
type LoginInput struct {
	UniversityEmail string `json:"university_email" validate:"required,email"`
	Password        string `json:"password" validate:"required,max=64"`
}

// AuthService registers accounts and checks credentials. Token issuance stays in the HTTP layer.
type AuthService struct {
	userRepo   repository.UserRepository
	bcryptCost int
}

func NewAuthService(userRepo repository.UserRepository) *AuthService {
	return &AuthService{userRepo: userRepo, bcryptCost: bcrypt.DefaultCost}
}

// Signup creates a student account. A taken email or username is a Conflict.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	in.UniversityEmail = strings.ToLower(strings.TrimSpace(in.UniversityEmail))
	in.Username = strings.TrimSpace(in.Username)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.GetByEmail(ctx, in.UniversityEmail)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("An account with this email already exists")
	}
	existing, err = s.userRepo.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("Username already taken")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username:        in.Username,
		UniversityEmail: in.UniversityEmail,
		Password:        string(hashed),
		FirstName:       strings.TrimSpace(in.FirstName),
		LastName:        strings.TrimSpace(in.LastName),
		Role:            models.RoleStudent,
		AccountPrivacy:  models.PrivacyPublic,
		NotifyLikes:     true,
		NotifyComments:  true,
		NotifyFollows:   true,
		NotifyMessages:  true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login returns the account matching the credentials. Unknown email and wrong password
// produce the same Unauthorized error; a banned account is Forbidden.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*models.User, error) {
	in.UniversityEmail = strings.ToLower(strings.TrimSpace(in.UniversityEmail))
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByEmail(ctx, in.UniversityEmail)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if user.IsBanned {
		return nil, models.NewForbiddenError("This account has been suspended")
	}
	return user, nil
}
