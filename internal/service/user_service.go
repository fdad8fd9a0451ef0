package service

import (
	"context"
	"strings"

	"ynetwork/internal/cache"
	"ynetwork/internal/models"
	"ynetwork/internal/repository"
	"ynetwork/internal/validation"
)

const defaultUsersPP = 20

// UserService provides profile lookup, editing and discovery.
type UserService struct {
	userRepo repository.UserRepository
}

// UpdateProfileInput carries the editable profile fields. Nil fields are left unchanged.
type UpdateProfileInput struct {
	UserID            uint                   `json:"-"`
	FirstName         *string                `json:"first_name" validate:"omitempty,min=1,max=50"`
	LastName          *string                `json:"last_name" validate:"omitempty,min=1,max=50"`
	Bio               *string                `json:"bio" validate:"omitempty,max=160"`
	ProfilePictureURL *string                `json:"profile_picture_url" validate:"omitempty,url"`
	AccountPrivacy    *models.AccountPrivacy `json:"account_privacy" validate:"omitempty,oneof=public private"`
	NotifyLikes       *bool                  `json:"notify_likes"`
	NotifyComments    *bool                  `json:"notify_comments"`
	NotifyFollows     *bool                  `json:"notify_follows"`
	NotifyMessages    *bool                  `json:"notify_messages"`
}

// UserPage is one page of users.
type UserPage struct {
	Users      []models.User `json:"users"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	TotalPages int           `json:"totalPages"`
	TotalCount int64         `json:"totalCount"`
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// GetUserByID returns a user, served from the cache when possible.
func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		u, err := s.userRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		user = *u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.userRepo.GetByUsername(ctx, username)
}

func (s *UserService) ListUsers(ctx context.Context, p Pagination) (*UserPage, error) {
	p = p.normalize(defaultUsersPP)
	users, total, err := s.userRepo.List(ctx, p.Limit, p.offset())
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return &UserPage{
		Users:      users,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: totalPages(total, p.Limit),
		TotalCount: total,
	}, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if in.FirstName != nil {
		fields["first_name"] = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		fields["last_name"] = strings.TrimSpace(*in.LastName)
	}
	if in.Bio != nil {
		fields["bio"] = *in.Bio
	}
	if in.ProfilePictureURL != nil {
		fields["profile_picture_url"] = *in.ProfilePictureURL
	}
	if in.AccountPrivacy != nil {
		fields["account_privacy"] = *in.AccountPrivacy
	}
	if in.NotifyLikes != nil {
		fields["notify_likes"] = *in.NotifyLikes
	}
	if in.NotifyComments != nil {
		fields["notify_comments"] = *in.NotifyComments
	}
	if in.NotifyFollows != nil {
		fields["notify_follows"] = *in.NotifyFollows
	}
	if in.NotifyMessages != nil {
		fields["notify_messages"] = *in.NotifyMessages
	}

	if len(fields) > 0 {
		if err := s.userRepo.UpdateFields(ctx, in.UserID, fields); err != nil {
			return nil, err
		}
		cache.InvalidateUser(ctx, in.UserID)
	}
	return s.userRepo.GetByID(ctx, in.UserID)
}

// DeleteAccount soft-deletes the user and drops their cached entries.
func (s *UserService) DeleteAccount(ctx context.Context, userID uint) error {
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		return err
	}
	cache.InvalidateUser(ctx, userID)
	return nil
}

// SearchUsers matches username and names, case-insensitively.
func (s *UserService) SearchUsers(ctx context.Context, query string, p Pagination) ([]models.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewFieldValidationError(map[string]string{"q": "is required"})
	}
	p = p.normalize(defaultUsersPP)
	users, err := s.userRepo.Search(ctx, query, p.Limit, p.offset())
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

// Suggested returns popular users the caller does not follow yet.
func (s *UserService) Suggested(ctx context.Context, userID uint, limit int) ([]models.User, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	users, err := s.userRepo.Suggested(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}
