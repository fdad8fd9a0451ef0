package models

import (
	"time"

	"gorm.io/gorm"
)

// Group is a student community with its own group conversation.
type Group struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Name           string         `gorm:"size:100;not null" json:"name"`
	Description    string         `gorm:"size:500" json:"description"`
	Topic          string         `gorm:"size:50;index" json:"topic"`
	IsPublic       bool           `gorm:"not null" json:"is_public"`
	CreatorID      uint           `gorm:"not null;index" json:"creator_id"`
	Creator        *User          `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	ConversationID *uint          `json:"conversation_id,omitempty"`
	MemberCount    int            `gorm:"default:0;not null" json:"member_count"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`

	Members []UserSummary `gorm:"-" json:"members,omitempty"`
}

// TableName specifies the table name for GORM
func (Group) TableName() string {
	return "study_groups"
}

// Group topics accepted on creation.
var GroupTopics = []string{"Web Development", "AI", "CyberSecurity", "Data Analytics", "Games Development"}

// Event types accepted on creation.
var EventTypes = []string{"Workshop", "Competition", "Bootcamp", "Seminar", "Social"}

// GroupMember is the membership row linking users to groups.
type GroupMember struct {
	GroupID  uint      `gorm:"primaryKey" json:"group_id"`
	UserID   uint      `gorm:"primaryKey;index" json:"user_id"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

// Event is a dated campus event users can join.
type Event struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Title            string         `gorm:"size:150;not null" json:"title"`
	Description      string         `gorm:"type:text" json:"description"`
	EventType        string         `gorm:"size:50;index" json:"event_type"`
	Location         string         `gorm:"size:200" json:"location"`
	StartDate        time.Time      `gorm:"not null;index" json:"start_date"`
	EndDate          time.Time      `gorm:"not null" json:"end_date"`
	CreatorID        uint           `gorm:"not null;index" json:"creator_id"`
	Creator          *User          `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	ParticipantLimit int            `gorm:"default:0" json:"participant_limit"`
	ParticipantCount int            `gorm:"default:0;not null" json:"participant_count"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`

	Participants []UserSummary `gorm:"-" json:"participants,omitempty"`
}

// EventParticipant is the attendance row linking users to events.
type EventParticipant struct {
	EventID  uint      `gorm:"primaryKey" json:"event_id"`
	UserID   uint      `gorm:"primaryKey;index" json:"user_id"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

// ReportStatus tracks a report through moderation.
type ReportStatus string

const (
	ReportPending        ReportStatus = "pending"
	ReportActionTaken    ReportStatus = "resolved_action_taken"
	ReportNoActionNeeded ReportStatus = "resolved_no_action"
	ReportDismissed      ReportStatus = "dismissed"
)

// ReportEntity names what kind of entity a report refers to.
type ReportEntity string

const (
	ReportEntityPost    ReportEntity = "post"
	ReportEntityComment ReportEntity = "comment"
	ReportEntityUser    ReportEntity = "user"
)

// Report is a user's complaint about a post, comment or user.
type Report struct {
	ID                 uint         `gorm:"primaryKey" json:"id"`
	ReporterID         uint         `gorm:"not null;uniqueIndex:idx_reports_reporter_entity" json:"reporter_id"`
	Reporter           *User        `gorm:"foreignKey:ReporterID" json:"reporter,omitempty"`
	ReportedEntityType ReportEntity `gorm:"type:varchar(20);not null;uniqueIndex:idx_reports_reporter_entity" json:"reported_entity_type"`
	ReportedEntityID   uint         `gorm:"not null;uniqueIndex:idx_reports_reporter_entity" json:"reported_entity_id"`
	Reason             string       `gorm:"size:1000;not null" json:"reason"`
	Status             ReportStatus `gorm:"type:varchar(20);default:'pending';not null;index" json:"status"`
	AdminNotes         string       `gorm:"size:2000" json:"admin_notes,omitempty"`
	ResolvedByID       *uint        `json:"resolved_by,omitempty"`
	ResolvedAt         *time.Time   `json:"resolved_timestamp,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// Media is an uploaded file stored in object storage.
type Media struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UploaderID uint      `gorm:"not null;index" json:"uploader_id"`
	StorageKey string    `gorm:"uniqueIndex;not null" json:"key"`
	CDNURL     string    `gorm:"not null" json:"cdn_url"`
	FileType   string    `gorm:"size:100" json:"file_type"`
	FileName   string    `gorm:"size:255" json:"file_name"`
	FileSize   int64     `json:"file_size"`
	Width      int       `json:"width,omitempty"`
	Height     int       `json:"height,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
