package service

import "context"

// Realtime pushes events to connected users. Delivery is best effort.
type Realtime interface {
	Emit(ctx context.Context, userID uint, eventType string, payload any)
}

// Notifier records a notification for a user without blocking the caller.
type Notifier interface {
	Notify(ctx context.Context, recipientID uint, in NotifyInput)
}

type noopRealtime struct{}

func (noopRealtime) Emit(context.Context, uint, string, any) {}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, uint, NotifyInput) {}
