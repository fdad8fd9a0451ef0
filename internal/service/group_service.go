package service

import (
	"context"
	"slices"
	"strings"

	"ynetwork/internal/models"
	"ynetwork/internal/repository"
	"ynetwork/internal/validation"
)

const defaultGroupsPP = 20

// GroupService manages study groups and their membership.
// Every group owns a group conversation that mirrors its member list.
type GroupService struct {
	groupRepo  repository.GroupRepository
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
	notifier   Notifier
}

type CreateGroupInput struct {
	CreatorID   uint   `json:"-"`
	Name        string `json:"name" validate:"required,notblank,min=3,max=100"`
	Description string `json:"description" validate:"required,min=10,max=500"`
	Topic       string `json:"topic" validate:"required"`
	IsPublic    *bool  `json:"is_public"`
}

type UpdateGroupInput struct {
	UserID      uint    `json:"-"`
	GroupID     uint    `json:"-"`
	Description *string `json:"description" validate:"omitempty,min=10,max=500"`
	IsPublic    *bool   `json:"is_public"`
}

type GroupPage struct {
	Groups     []*models.Group `json:"groups"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"totalPages"`
	TotalCount int64           `json:"totalCount"`
}

func NewGroupService(
	groupRepo repository.GroupRepository,
	followRepo repository.FollowRepository,
	userRepo repository.UserRepository,
	notifier Notifier,
) *GroupService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &GroupService{
		groupRepo:  groupRepo,
		followRepo: followRepo,
		userRepo:   userRepo,
		notifier:   notifier,
	}
}

func validTopic(topic string) bool {
	return slices.Contains(models.GroupTopics, topic)
}

// CreateGroup stores the group with the creator as its first member and tells the creator's followers.
func (s *GroupService) CreateGroup(ctx context.Context, in CreateGroupInput) (*models.Group, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if !validTopic(in.Topic) {
		return nil, models.NewFieldValidationError(map[string]string{
			"topic": "must be one of: " + strings.Join(models.GroupTopics, ", "),
		})
	}

	group := &models.Group{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Topic:       in.Topic,
		IsPublic:    in.IsPublic == nil || *in.IsPublic,
		CreatorID:   in.CreatorID,
	}
	if err := s.groupRepo.Create(ctx, group); err != nil {
		return nil, err
	}

	followers, err := s.followRepo.FollowerIDs(ctx, in.CreatorID)
	if err != nil {
		return nil, err
	}
	target := &models.NotificationTarget{Kind: models.TargetGroup, ID: group.ID}
	for _, id := range followers {
		s.notifier.Notify(ctx, id, NotifyInput{
			ActorID: in.CreatorID,
			Type:    models.NotificationNewGroup,
			Content: group.Name,
			Target:  target,
		})
	}

	return s.groupRepo.GetByID(ctx, group.ID)
}

// GetGroup returns a group with its member summaries. Private groups are visible to members only.
func (s *GroupService) GetGroup(ctx context.Context, viewerID, groupID uint) (*models.Group, error) {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsPublic {
		member, err := s.groupRepo.IsMember(ctx, groupID, viewerID)
		if err != nil {
			return nil, err
		}
		if !member {
			return nil, models.NewNotFoundError("Group", groupID)
		}
	}

	memberIDs, err := s.groupRepo.MemberIDs(ctx, groupID)
	if err != nil {
		return nil, err
	}
	byID, err := s.userRepo.GetSummaries(ctx, memberIDs)
	if err != nil {
		return nil, err
	}
	group.Members = make([]models.UserSummary, 0, len(memberIDs))
	for _, id := range memberIDs {
		if summary, ok := byID[id]; ok {
			group.Members = append(group.Members, summary)
		}
	}
	return group, nil
}

func (s *GroupService) ListGroups(ctx context.Context, viewerID uint, topic string, p Pagination) (*GroupPage, error) {
	if topic != "" && !validTopic(topic) {
		return nil, models.NewFieldValidationError(map[string]string{
			"topic": "must be one of: " + strings.Join(models.GroupTopics, ", "),
		})
	}
	p = p.normalize(defaultGroupsPP)
	groups, total, err := s.groupRepo.List(ctx, viewerID, topic, p.Limit, p.offset())
	if err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []*models.Group{}
	}
	return &GroupPage{
		Groups:     groups,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: totalPages(total, p.Limit),
		TotalCount: total,
	}, nil
}

func (s *GroupService) MyGroups(ctx context.Context, userID uint) ([]*models.Group, error) {
	groups, err := s.groupRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []*models.Group{}
	}
	return groups, nil
}

// UpdateGroup lets the creator change the description and visibility.
func (s *GroupService) UpdateGroup(ctx context.Context, in UpdateGroupInput) (*models.Group, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	group, err := s.groupRepo.GetByID(ctx, in.GroupID)
	if err != nil {
		return nil, err
	}
	if group.CreatorID != in.UserID {
		return nil, models.NewForbiddenError("Only the group creator can edit this group")
	}

	fields := map[string]any{}
	if in.Description != nil {
		fields["description"] = strings.TrimSpace(*in.Description)
	}
	if in.IsPublic != nil {
		fields["is_public"] = *in.IsPublic
	}
	if err := s.groupRepo.Update(ctx, group.ID, fields); err != nil {
		return nil, err
	}
	return s.groupRepo.GetByID(ctx, group.ID)
}

// DeleteGroup removes the group and its conversation. The creator and admins may delete.
func (s *GroupService) DeleteGroup(ctx context.Context, userID, groupID uint) error {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if group.CreatorID != userID {
		admin, err := isAdmin(ctx, s.userRepo, userID)
		if err != nil {
			return err
		}
		if !admin {
			return models.NewForbiddenError("Only the group creator can delete this group")
		}
	}
	return s.groupRepo.Delete(ctx, group)
}

// JoinGroup adds the user to the group and its conversation, then tells the existing members.
func (s *GroupService) JoinGroup(ctx context.Context, userID, groupID uint) (*models.Group, error) {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsPublic {
		return nil, models.NewForbiddenError("This group is private")
	}

	existing, err := s.groupRepo.MemberIDs(ctx, groupID)
	if err != nil {
		return nil, err
	}
	joined, err := s.groupRepo.Join(ctx, group, userID)
	if err != nil {
		return nil, err
	}
	if !joined {
		return nil, models.NewConflictError("You are already a member of this group")
	}

	target := &models.NotificationTarget{Kind: models.TargetGroup, ID: group.ID}
	for _, id := range existing {
		s.notifier.Notify(ctx, id, NotifyInput{
			ActorID: userID,
			Type:    models.NotificationGroupJoin,
			Content: group.Name,
			Target:  target,
		})
	}
	return s.groupRepo.GetByID(ctx, groupID)
}

// LeaveGroup removes the user from the group. The creator cannot leave.
func (s *GroupService) LeaveGroup(ctx context.Context, userID, groupID uint) error {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if group.CreatorID == userID {
		return models.NewValidationError("The group creator cannot leave the group")
	}
	left, err := s.groupRepo.Leave(ctx, group, userID)
	if err != nil {
		return err
	}
	if !left {
		return models.NewValidationError("You are not a member of this group")
	}
	return nil
}

func (s *GroupService) Members(ctx context.Context, viewerID, groupID uint, p Pagination) ([]models.User, error) {
	if _, err := s.GetGroup(ctx, viewerID, groupID); err != nil {
		return nil, err
	}
	p = p.normalize(defaultUsersPP)
	users, err := s.groupRepo.Members(ctx, groupID, p.Limit, p.offset())
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}
