package repository

import (
	"context"
	"strings"
	"time"

	"ynetwork/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines the interface for post, like, bookmark and hashtag data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, post *models.Post) error
	ListByAuthor(ctx context.Context, authorID uint, visibilities []models.Visibility, limit, offset int) ([]*models.Post, error)
	Feed(ctx context.Context, userID uint, limit, offset int) ([]*models.Post, error)
	Public(ctx context.Context, limit, offset int) ([]*models.Post, error)
	ListByGroup(ctx context.Context, groupID uint, limit, offset int) ([]*models.Post, error)
	ListByHashtag(ctx context.Context, tag string, limit, offset int) ([]*models.Post, error)
	Search(ctx context.Context, query string, limit, offset int) ([]*models.Post, error)
	Trending(ctx context.Context, since time.Time, limit int) ([]models.TrendingHashtag, error)
	SearchHashtags(ctx context.Context, prefix string, limit int) ([]models.TrendingHashtag, error)
	ToggleLike(ctx context.Context, userID, postID uint) (bool, int, error)
	LikedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error)
	Likers(ctx context.Context, postID uint, limit, offset int) ([]models.User, error)
	ToggleSave(ctx context.Context, userID, postID uint) (bool, error)
	Saved(ctx context.Context, userID uint, limit, offset int) ([]*models.Post, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// Create inserts the post with its hashtag rows and bumps the author's post count.
func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(post).Error; err != nil {
			return err
		}
		if err := replaceHashtags(tx, post.ID, post.Hashtags); err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", post.AuthorID).
			UpdateColumn("post_count", gorm.Expr("post_count + 1")).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Preload("Author", publicUser).First(&post, id).Error; err != nil {
		return nil, notFoundOr(err, "Post", id)
	}
	if err := r.attachHashtags(ctx, []*models.Post{&post}); err != nil {
		return nil, err
	}
	return &post, nil
}

// Update rewrites the editable columns and replaces the hashtag set.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Post{}).Where("id = ?", post.ID).Updates(map[string]any{
			"content":    post.Content,
			"media_url":  post.MediaURL,
			"visibility": post.Visibility,
			"updated_at": time.Now().UTC(),
		}).Error
		if err != nil {
			return err
		}
		return replaceHashtags(tx, post.ID, post.Hashtags)
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Delete soft-deletes the post, drops its hashtags and decrements the author's post count.
func (r *postRepository) Delete(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Post{}, post.ID).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.PostHashtag{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.SavedPost{}).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ? AND post_count > 0", post.AuthorID).
			UpdateColumn("post_count", gorm.Expr("post_count - 1")).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func replaceHashtags(tx *gorm.DB, postID uint, tags []string) error {
	if err := tx.Where("post_id = ?", postID).Delete(&models.PostHashtag{}).Error; err != nil {
		return err
	}
	if len(tags) == 0 {
		return nil
	}
	rows := make([]models.PostHashtag, 0, len(tags))
	for _, tag := range tags {
		rows = append(rows, models.PostHashtag{PostID: postID, Tag: tag})
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func (r *postRepository) attachHashtags(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
		p.Hashtags = []string{}
	}

	var rows []models.PostHashtag
	if err := r.db.WithContext(ctx).Where("post_id IN ?", ids).Order("tag ASC").Find(&rows).Error; err != nil {
		return models.NewInternalError(err)
	}
	byPost := make(map[uint][]string, len(posts))
	for _, row := range rows {
		byPost[row.PostID] = append(byPost[row.PostID], row.Tag)
	}
	for _, p := range posts {
		if tags, ok := byPost[p.ID]; ok {
			p.Hashtags = tags
		}
	}
	return nil
}

// page runs a newest-first post query and attaches hashtags to the result.
func (r *postRepository) page(ctx context.Context, q *gorm.DB, limit, offset int) ([]*models.Post, error) {
	var posts []*models.Post
	err := q.Preload("Author", publicUser).
		Order("posts.created_at DESC").
		Order("posts.id DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := r.attachHashtags(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) ListByAuthor(ctx context.Context, authorID uint, visibilities []models.Visibility, limit, offset int) ([]*models.Post, error) {
	q := r.db.WithContext(ctx).
		Where("posts.author_id = ? AND posts.group_id IS NULL", authorID).
		Where("posts.visibility IN ?", visibilities)
	return r.page(ctx, q, limit, offset)
}

// Feed returns the user's own posts and the non-private posts of everyone they follow.
func (r *postRepository) Feed(ctx context.Context, userID uint, limit, offset int) ([]*models.Post, error) {
	followed := r.db.Model(&models.Follow{}).Select("following_id").Where("follower_id = ?", userID)
	q := r.db.WithContext(ctx).
		Where("posts.group_id IS NULL").
		Where("posts.author_id = ? OR (posts.author_id IN (?) AND posts.visibility <> ?)",
			userID, followed, models.VisibilityPrivate)
	return r.page(ctx, q, limit, offset)
}

func (r *postRepository) Public(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	q := r.db.WithContext(ctx).
		Where("posts.group_id IS NULL AND posts.visibility = ?", models.VisibilityPublic)
	return r.page(ctx, q, limit, offset)
}

func (r *postRepository) ListByGroup(ctx context.Context, groupID uint, limit, offset int) ([]*models.Post, error) {
	q := r.db.WithContext(ctx).Where("posts.group_id = ?", groupID)
	return r.page(ctx, q, limit, offset)
}

func (r *postRepository) ListByHashtag(ctx context.Context, tag string, limit, offset int) ([]*models.Post, error) {
	q := r.db.WithContext(ctx).
		Joins("JOIN post_hashtags ph ON ph.post_id = posts.id").
		Where("ph.tag = ? AND posts.visibility = ? AND posts.group_id IS NULL",
			strings.ToLower(tag), models.VisibilityPublic)
	return r.page(ctx, q, limit, offset)
}

func (r *postRepository) Search(ctx context.Context, query string, limit, offset int) ([]*models.Post, error) {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(query))) + "%"
	q := r.db.WithContext(ctx).
		Where("posts.visibility = ? AND posts.group_id IS NULL", models.VisibilityPublic).
		Where(`LOWER(posts.content) LIKE ? ESCAPE '\'`, pattern)
	return r.page(ctx, q, limit, offset)
}

// Trending counts hashtag usage on posts created since the given time.
func (r *postRepository) Trending(ctx context.Context, since time.Time, limit int) ([]models.TrendingHashtag, error) {
	var out []models.TrendingHashtag
	err := r.db.WithContext(ctx).
		Model(&models.PostHashtag{}).
		Select("tag, COUNT(*) AS count").
		Where("created_at >= ?", since).
		Group("tag").
		Order("count DESC").
		Order("tag ASC").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

// SearchHashtags returns tags starting with prefix, most used first.
func (r *postRepository) SearchHashtags(ctx context.Context, prefix string, limit int) ([]models.TrendingHashtag, error) {
	var out []models.TrendingHashtag
	err := r.db.WithContext(ctx).
		Model(&models.PostHashtag{}).
		Select("tag, COUNT(*) AS count").
		Where(`tag LIKE ? ESCAPE '\'`, escapeLike(strings.ToLower(prefix))+"%").
		Group("tag").
		Order("count DESC").
		Order("tag ASC").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

// ToggleLike flips userID's like on postID and returns the new state with the updated like count.
func (r *postRepository) ToggleLike(ctx context.Context, userID, postID uint) (bool, int, error) {
	var liked bool
	var count int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.Like{})
		if res.Error != nil {
			return res.Error
		}
		delta := -1
		if res.RowsAffected == 0 {
			if err := tx.Create(&models.Like{UserID: userID, PostID: postID}).Error; err != nil {
				return err
			}
			liked, delta = true, 1
		}
		if err := tx.Model(&models.Post{}).Where("id = ?", postID).
			UpdateColumn("like_count", gorm.Expr("like_count + ?", delta)).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", postID).Pluck("like_count", &count).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return false, 0, models.NewConflictError("like already recorded")
		}
		return false, 0, models.NewInternalError(err)
	}
	return liked, count, nil
}

func (r *postRepository) LikedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error) {
	if len(postIDs) == 0 || userID == 0 {
		return nil, nil
	}
	var liked []uint
	err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &liked).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return liked, nil
}

func (r *postRepository) Likers(ctx context.Context, postID uint, limit, offset int) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Joins("JOIN likes l ON l.user_id = users.id").
		Where("l.post_id = ?", postID).
		Order("l.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

// ToggleSave bookmarks or un-bookmarks a post and reports the new state.
func (r *postRepository) ToggleSave(ctx context.Context, userID, postID uint) (bool, error) {
	saved := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.SavedPost{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		saved = true
		return tx.Omit(clause.Associations).Create(&models.SavedPost{UserID: userID, PostID: postID}).Error
	})
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return saved, nil
}

// Saved lists the user's bookmarked posts, most recently saved first.
func (r *postRepository) Saved(ctx context.Context, userID uint, limit, offset int) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.db.WithContext(ctx).
		Joins("JOIN saved_posts sp ON sp.post_id = posts.id").
		Where("sp.user_id = ?", userID).
		Preload("Author", publicUser).
		Order("sp.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := r.attachHashtags(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}
