package models

import (
	"time"

	"gorm.io/gorm"
)

// Visibility controls who can see a post.
type Visibility string

const (
	VisibilityPublic        Visibility = "public"
	VisibilityFollowersOnly Visibility = "followers_only"
	VisibilityPrivate       Visibility = "private"
)

// Post represents a post on a user's profile, the feed, or inside a group.
type Post struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	AuthorID     uint       `gorm:"not null;index" json:"author_id"`
	Author       *User      `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Content      string     `gorm:"type:text;not null" json:"content"`
	MediaURL     string     `json:"media_url,omitempty"`
	Visibility   Visibility `gorm:"type:varchar(20);default:'public';not null;index" json:"visibility"`
	GroupID      *uint      `gorm:"index" json:"group_id,omitempty"`
	LikeCount    int        `gorm:"default:0;not null" json:"like_count"`
	CommentCount int        `gorm:"default:0;not null" json:"comment_count"`
	Hashtags     []string   `gorm:"-" json:"hashtags"`
	// Liked is computed for the requesting user.
	Liked     bool           `gorm:"-" json:"liked"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// PostHashtag links a post to a lower-cased tag extracted from its content.
type PostHashtag struct {
	PostID    uint      `gorm:"primaryKey" json:"post_id"`
	Tag       string    `gorm:"primaryKey;size:100;index" json:"tag"`
	CreatedAt time.Time `json:"created_at"`
}

// TrendingHashtag is a tag with its usage count over a window.
type TrendingHashtag struct {
	Tag   string `json:"tag"`
	Count int64  `json:"count"`
}

// Comment is a reply on a post.
type Comment struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	PostID    uint           `gorm:"not null;index" json:"post_id"`
	AuthorID  uint           `gorm:"not null;index" json:"author_id"`
	Author    *User          `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Like is a single user's like on a post.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_likes_user_post" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_likes_user_post;index" json:"post_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SavedPost is a bookmark of a post by a user.
type SavedPost struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_saved_user_post" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_saved_user_post" json:"post_id"`
	Post      *Post     `gorm:"foreignKey:PostID" json:"post,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
