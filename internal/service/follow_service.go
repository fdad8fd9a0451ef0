package service

import (
	"context"

	"ynetwork/internal/cache"
	"ynetwork/internal/models"
	"ynetwork/internal/repository"
)

// FollowService provides follower-graph business logic.
type FollowService struct {
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
	notifier   Notifier
}

// NewFollowService returns a new FollowService.
func NewFollowService(followRepo repository.FollowRepository, userRepo repository.UserRepository, notifier Notifier) *FollowService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &FollowService{
		followRepo: followRepo,
		userRepo:   userRepo,
		notifier:   notifier,
	}
}

// Follow makes followerID follow targetID and notifies the target.
func (s *FollowService) Follow(ctx context.Context, followerID, targetID uint) error {
	if followerID == targetID {
		return models.NewValidationError("You cannot follow yourself")
	}
	if _, err := s.userRepo.GetByID(ctx, targetID); err != nil {
		return err
	}

	created, err := s.followRepo.Follow(ctx, followerID, targetID)
	if err != nil {
		return err
	}
	if !created {
		return models.NewConflictError("You are already following this user")
	}
	cache.InvalidateUser(ctx, followerID)
	cache.InvalidateUser(ctx, targetID)

	s.notifier.Notify(ctx, targetID, NotifyInput{
		ActorID: followerID,
		Type:    models.NotificationNewFollower,
		Content: "started following you.",
		Target:  &models.NotificationTarget{Kind: models.TargetUser, ID: followerID},
	})
	return nil
}

// Unfollow removes the edge. Unfollowing someone you do not follow is a validation error.
func (s *FollowService) Unfollow(ctx context.Context, followerID, targetID uint) error {
	if followerID == targetID {
		return models.NewValidationError("You cannot unfollow yourself")
	}
	removed, err := s.followRepo.Unfollow(ctx, followerID, targetID)
	if err != nil {
		return err
	}
	if !removed {
		return models.NewValidationError("You are not following this user")
	}
	cache.InvalidateUser(ctx, followerID)
	cache.InvalidateUser(ctx, targetID)
	return nil
}

func (s *FollowService) IsFollowing(ctx context.Context, followerID, targetID uint) (bool, error) {
	return s.followRepo.IsFollowing(ctx, followerID, targetID)
}

func (s *FollowService) Followers(ctx context.Context, userID uint, p Pagination) ([]models.User, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	p = p.normalize(defaultUsersPP)
	users, err := s.followRepo.Followers(ctx, userID, p.Limit, p.offset())
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

func (s *FollowService) Following(ctx context.Context, userID uint, p Pagination) ([]models.User, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	p = p.normalize(defaultUsersPP)
	users, err := s.followRepo.Following(ctx, userID, p.Limit, p.offset())
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}
