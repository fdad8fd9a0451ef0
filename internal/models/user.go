// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// Role is the authorization tier of an account.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// AccountPrivacy controls who may see a profile's followers-only content.
type AccountPrivacy string

const (
	PrivacyPublic  AccountPrivacy = "public"
	PrivacyPrivate AccountPrivacy = "private"
)

// User represents a student account on YNetwork.
type User struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	Username          string         `gorm:"uniqueIndex;size:30;not null" json:"username"`
	UniversityEmail   string         `gorm:"uniqueIndex;not null" json:"university_email,omitempty"`
	Password          string         `gorm:"not null" json:"-"`
	FirstName         string         `gorm:"size:50;not null" json:"first_name"`
	LastName          string         `gorm:"size:50;not null" json:"last_name"`
	Bio               string         `gorm:"size:160" json:"bio"`
	ProfilePictureURL string         `json:"profile_picture_url"`
	Role              Role           `gorm:"type:varchar(20);default:'student';not null" json:"role"`
	AccountPrivacy    AccountPrivacy `gorm:"type:varchar(20);default:'public';not null" json:"account_privacy"`

	NotifyLikes    bool `gorm:"default:true" json:"notify_likes"`
	NotifyComments bool `gorm:"default:true" json:"notify_comments"`
	NotifyFollows  bool `gorm:"default:true" json:"notify_follows"`
	NotifyMessages bool `gorm:"default:true" json:"notify_messages"`

	FollowerCount  int  `gorm:"default:0;not null" json:"follower_count"`
	FollowingCount int  `gorm:"default:0;not null" json:"following_count"`
	PostCount      int  `gorm:"default:0;not null" json:"post_count"`
	IsBanned       bool `gorm:"default:false;not null" json:"is_banned"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsAdmin reports whether the account carries the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserSummary is the public projection of a user attached to messages, notifications and lists.
type UserSummary struct {
	ID                uint   `json:"id"`
	Username          string `json:"username"`
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	ProfilePictureURL string `json:"profile_picture_url"`
}

// Summary projects u onto its public fields.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:                u.ID,
		Username:          u.Username,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		ProfilePictureURL: u.ProfilePictureURL,
	}
}

// Follow is a directed follower -> following edge.
type Follow struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	FollowerID  uint      `gorm:"not null;uniqueIndex:idx_follows_pair;index:idx_follows_follower" json:"follower_id"`
	FollowingID uint      `gorm:"not null;uniqueIndex:idx_follows_pair;index:idx_follows_following" json:"following_id"`
	CreatedAt   time.Time `json:"created_at"`

	Follower  *User `gorm:"foreignKey:FollowerID" json:"follower,omitempty"`
	Following *User `gorm:"foreignKey:FollowingID" json:"following,omitempty"`
}

// TableName specifies the table name for GORM
func (Follow) TableName() string {
	return "follows"
}
