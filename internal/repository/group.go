package repository

import (
	"context"

	"ynetwork/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GroupRepository defines persistence operations for groups and their memberships.
type GroupRepository interface {
	Create(ctx context.Context, group *models.Group) error
	GetByID(ctx context.Context, id uint) (*models.Group, error)
	List(ctx context.Context, viewerID uint, topic string, limit, offset int) ([]*models.Group, int64, error)
	ListForUser(ctx context.Context, userID uint) ([]*models.Group, error)
	IsMember(ctx context.Context, groupID, userID uint) (bool, error)
	MemberIDs(ctx context.Context, groupID uint) ([]uint, error)
	Members(ctx context.Context, groupID uint, limit, offset int) ([]models.User, error)
	Join(ctx context.Context, group *models.Group, userID uint) (bool, error)
	Leave(ctx context.Context, group *models.Group, userID uint) (bool, error)
	Update(ctx context.Context, id uint, fields map[string]any) error
	Delete(ctx context.Context, group *models.Group) error
}

type groupRepository struct {
	db *gorm.DB
}

// NewGroupRepository creates a new group repository
func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

// Create inserts the group together with its group conversation.
// The creator becomes the first member and the conversation admin.
func (r *groupRepository) Create(ctx context.Context, group *models.Group) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		creator := group.CreatorID
		conv := &models.Conversation{
			Type:         models.ConversationGroup,
			GroupName:    group.Name,
			GroupAdminID: &creator,
		}
		if err := tx.Create(conv).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.ConversationParticipant{ConversationID: conv.ID, UserID: creator}).Error; err != nil {
			return err
		}

		group.ConversationID = &conv.ID
		group.MemberCount = 1
		if err := tx.Omit(clause.Associations).Create(group).Error; err != nil {
			return err
		}
		return tx.Create(&models.GroupMember{GroupID: group.ID, UserID: creator}).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *groupRepository) GetByID(ctx context.Context, id uint) (*models.Group, error) {
	var group models.Group
	if err := r.db.WithContext(ctx).Preload("Creator", publicUser).First(&group, id).Error; err != nil {
		return nil, notFoundOr(err, "Group", id)
	}
	return &group, nil
}

// List returns public groups plus the private ones viewerID belongs to.
func (r *groupRepository) List(ctx context.Context, viewerID uint, topic string, limit, offset int) ([]*models.Group, int64, error) {
	scope := func() *gorm.DB {
		mine := r.db.Model(&models.GroupMember{}).Select("group_id").Where("user_id = ?", viewerID)
		q := r.db.WithContext(ctx).Model(&models.Group{}).
			Where("study_groups.is_public = ? OR study_groups.id IN (?)", true, mine)
		if topic != "" {
			q = q.Where("study_groups.topic = ?", topic)
		}
		return q
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	var groups []*models.Group
	err := scope().
		Preload("Creator", publicUser).
		Order("study_groups.created_at DESC").
		Order("study_groups.id DESC").
		Limit(limit).
		Offset(offset).
		Find(&groups).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return groups, total, nil
}

func (r *groupRepository) ListForUser(ctx context.Context, userID uint) ([]*models.Group, error) {
	var groups []*models.Group
	err := r.db.WithContext(ctx).
		Joins("JOIN group_members gm ON gm.group_id = study_groups.id").
		Where("gm.user_id = ?", userID).
		Order("gm.joined_at DESC").
		Find(&groups).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return groups, nil
}

func (r *groupRepository) IsMember(ctx context.Context, groupID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *groupRepository) MemberIDs(ctx context.Context, groupID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.GroupMember{}).
		Where("group_id = ?", groupID).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *groupRepository) Members(ctx context.Context, groupID uint, limit, offset int) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Joins("JOIN group_members gm ON gm.user_id = users.id").
		Where("gm.group_id = ?", groupID).
		Order("gm.joined_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

// Join adds userID to the group and its conversation. It reports false when already a member.
func (r *groupRepository) Join(ctx context.Context, group *models.Group, userID uint) (bool, error) {
	joined := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.GroupMember{GroupID: group.ID, UserID: userID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		joined = true
		if group.ConversationID != nil {
			if err := addParticipant(tx, *group.ConversationID, userID); err != nil {
				return err
			}
		}
		return tx.Model(&models.Group{}).Where("id = ?", group.ID).
			UpdateColumn("member_count", gorm.Expr("member_count + 1")).Error
	})
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return joined, nil
}

// Leave removes userID from the group and its conversation. It reports false when not a member.
func (r *groupRepository) Leave(ctx context.Context, group *models.Group, userID uint) (bool, error) {
	left := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("group_id = ? AND user_id = ?", group.ID, userID).Delete(&models.GroupMember{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		left = true
		if group.ConversationID != nil {
			if err := removeParticipant(tx, *group.ConversationID, userID); err != nil {
				return err
			}
		}
		return tx.Model(&models.Group{}).Where("id = ? AND member_count > 0", group.ID).
			UpdateColumn("member_count", gorm.Expr("member_count - 1")).Error
	})
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return left, nil
}

func (r *groupRepository) Update(ctx context.Context, id uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Model(&models.Group{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Delete removes the group, its memberships and its conversation history.
func (r *groupRepository) Delete(ctx context.Context, group *models.Group) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", group.ID).Delete(&models.GroupMember{}).Error; err != nil {
			return err
		}
		if group.ConversationID != nil {
			if err := deleteConversationTx(tx, *group.ConversationID); err != nil {
				return err
			}
		}
		return tx.Delete(&models.Group{}, group.ID).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
