package models

import "time"

// Notification types emitted by the services.
const (
	NotificationLike        = "like"
	NotificationNewComment  = "new_comment"
	NotificationNewFollower = "new_follower"
	NotificationNewMessage  = "new_message"
	NotificationNewGroup    = "new_group"
	NotificationGroupJoin   = "group_join"
	NotificationNewEvent    = "new_event"
)

// TargetKind names the entity a notification points at.
type TargetKind string

const (
	TargetPost         TargetKind = "Post"
	TargetComment      TargetKind = "Comment"
	TargetUser         TargetKind = "User"
	TargetEvent        TargetKind = "Event"
	TargetGroup        TargetKind = "Group"
	TargetConversation TargetKind = "Conversation"
)

// Valid reports whether k is one of the known target kinds.
func (k TargetKind) Valid() bool {
	switch k {
	case TargetPost, TargetComment, TargetUser, TargetEvent, TargetGroup, TargetConversation:
		return true
	}
	return false
}

// NotificationTarget is a kind-tagged reference to any entity. It carries no foreign key.
type NotificationTarget struct {
	Kind TargetKind `json:"kind"`
	ID   uint       `json:"id"`
}

// Notification is a persisted, per-recipient notice about something another user did.
type Notification struct {
	ID               uint        `gorm:"primaryKey" json:"id"`
	RecipientID      uint        `gorm:"not null;index:idx_notifications_recipient_created,priority:1" json:"recipient_id"`
	ActorID          *uint       `json:"actor_id,omitempty"`
	Actor            *User       `gorm:"foreignKey:ActorID" json:"-"`
	Type             string      `gorm:"size:50;not null" json:"type"`
	Content          string      `gorm:"size:500" json:"content,omitempty"`
	TargetEntityType *TargetKind `gorm:"type:varchar(20)" json:"-"`
	TargetEntityID   *uint       `json:"-"`
	IsRead           bool        `gorm:"default:false;not null;index" json:"is_read"`
	CreatedAt        time.Time   `gorm:"index:idx_notifications_recipient_created,priority:2" json:"created_at"`

	ActorSummary *UserSummary        `gorm:"-" json:"actor,omitempty"`
	Target       *NotificationTarget `gorm:"-" json:"target,omitempty"`
}

// SetTarget stores t into the nullable kind/id columns.
func (n *Notification) SetTarget(t *NotificationTarget) {
	if t == nil || !t.Kind.Valid() {
		n.TargetEntityType, n.TargetEntityID = nil, nil
		return
	}
	kind, id := t.Kind, t.ID
	n.TargetEntityType, n.TargetEntityID = &kind, &id
}

// Hydrate fills the response-only fields from the persisted columns and the preloaded actor.
func (n *Notification) Hydrate() {
	if n.TargetEntityType != nil && n.TargetEntityID != nil {
		n.Target = &NotificationTarget{Kind: *n.TargetEntityType, ID: *n.TargetEntityID}
	}
	if n.Actor != nil && n.Actor.ID != 0 {
		s := n.Actor.Summary()
		n.ActorSummary = &s
	}
}
