package database

import "ynetwork/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []any {
	return []any{
		&models.User{},
		&models.Follow{},
		&models.Post{},
		&models.PostHashtag{},
		&models.Comment{},
		&models.Like{},
		&models.SavedPost{},
		&models.Conversation{},
		&models.ConversationParticipant{},
		&models.Message{},
		&models.MessageRead{},
		&models.Notification{},
		&models.Group{},
		&models.GroupMember{},
		&models.Event{},
		&models.EventParticipant{},
		&models.Report{},
		&models.Media{},
	}
}
