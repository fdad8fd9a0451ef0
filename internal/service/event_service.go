package service

import (
	"context"
	"slices"
	"strings"
	"time"

	"ynetwork/internal/models"
	"ynetwork/internal/repository"
	"ynetwork/internal/validation"
)

const defaultEventsPP = 20

type EventService struct {
	eventRepo  repository.EventRepository
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
	notifier   Notifier
	now        func() time.Time
}

type CreateEventInput struct {
	CreatorID        uint      `json:"-"`
	Title            string    `json:"title" validate:"required,notblank,min=3,max=100"`
	Description      string    `json:"description" validate:"required,min=10,max=2000"`
	EventType        string    `json:"event_type" validate:"required"`
	Location         string    `json:"location" validate:"required,min=3,max=200"`
	StartDate        time.Time `json:"start_date" validate:"required"`
	EndDate          time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
	ParticipantLimit int       `json:"participant_limit" validate:"omitempty,gt=0,max=10000"`
}

type UpdateEventInput struct {
	UserID           uint       `json:"-"`
	EventID          uint       `json:"-"`
	Title            *string    `json:"title" validate:"omitempty,min=3,max=100"`
	Description      *string    `json:"description" validate:"omitempty,min=10,max=2000"`
	Location         *string    `json:"location" validate:"omitempty,min=3,max=200"`
	StartDate        *time.Time `json:"start_date"`
	EndDate          *time.Time `json:"end_date"`
	ParticipantLimit *int       `json:"participant_limit" validate:"omitempty,gte=0,max=10000"`
}

type ListEventsInput struct {
	Pagination
	EventType string `json:"event_type"`
	Query     string `json:"q"`
	SortBy    string `json:"sortBy" validate:"omitempty,oneof=start_date createdAt"`
}

type EventPage struct {
	Events     []*models.Event `json:"events"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"totalPages"`
	TotalCount int64           `json:"totalCount"`
}

func NewEventService(
	eventRepo repository.EventRepository,
	followRepo repository.FollowRepository,
	userRepo repository.UserRepository,
	notifier Notifier,
) *EventService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &EventService{
		eventRepo:  eventRepo,
		followRepo: followRepo,
		userRepo:   userRepo,
		notifier:   notifier,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func eventTypeError() error {
	return models.NewFieldValidationError(map[string]string{
		"event_type": "must be one of: " + strings.Join(models.EventTypes, ", "),
	})
}

// CreateEvent stores the event with the creator attending and tells the creator's followers.
func (s *EventService) CreateEvent(ctx context.Context, in CreateEventInput) (*models.Event, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if !slices.Contains(models.EventTypes, in.EventType) {
		return nil, eventTypeError()
	}

	event := &models.Event{
		Title:            strings.TrimSpace(in.Title),
		Description:      strings.TrimSpace(in.Description),
		EventType:        in.EventType,
		Location:         strings.TrimSpace(in.Location),
		StartDate:        in.StartDate.UTC(),
		EndDate:          in.EndDate.UTC(),
		CreatorID:        in.CreatorID,
		ParticipantLimit: in.ParticipantLimit,
	}
	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, err
	}

	followers, err := s.followRepo.FollowerIDs(ctx, in.CreatorID)
	if err != nil {
		return nil, err
	}
	target := &models.NotificationTarget{Kind: models.TargetEvent, ID: event.ID}
	for _, id := range followers {
		s.notifier.Notify(ctx, id, NotifyInput{
			ActorID: in.CreatorID,
			Type:    models.NotificationNewEvent,
			Content: event.Title,
			Target:  target,
		})
	}
	return s.GetEvent(ctx, event.ID)
}

func (s *EventService) GetEvent(ctx context.Context, eventID uint) (*models.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	participants, err := s.eventRepo.Participants(ctx, eventID)
	if err != nil {
		return nil, err
	}
	event.Participants = participants
	return event, nil
}

// ListEvents pages events. By default only events that have not ended are listed, soonest first.
func (s *EventService) ListEvents(ctx context.Context, in ListEventsInput) (*EventPage, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if in.EventType != "" && !slices.Contains(models.EventTypes, in.EventType) {
		return nil, eventTypeError()
	}
	p := in.Pagination.normalize(defaultEventsPP)
	events, total, err := s.eventRepo.List(ctx, repository.EventFilter{
		EventType: in.EventType,
		Query:     in.Query,
		SortBy:    in.SortBy,
		Now:       s.now(),
	}, p.Limit, p.offset())
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []*models.Event{}
	}
	return &EventPage{
		Events:     events,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: totalPages(total, p.Limit),
		TotalCount: total,
	}, nil
}

func (s *EventService) UpdateEvent(ctx context.Context, in UpdateEventInput) (*models.Event, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	event, err := s.eventRepo.GetByID(ctx, in.EventID)
	if err != nil {
		return nil, err
	}
	if event.CreatorID != in.UserID {
		return nil, models.NewForbiddenError("Only the event creator can edit this event")
	}

	fields := map[string]any{}
	if in.Title != nil {
		fields["title"] = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		fields["description"] = strings.TrimSpace(*in.Description)
	}
	if in.Location != nil {
		fields["location"] = strings.TrimSpace(*in.Location)
	}
	start, end := event.StartDate, event.EndDate
	if in.StartDate != nil {
		start = in.StartDate.UTC()
		fields["start_date"] = start
	}
	if in.EndDate != nil {
		end = in.EndDate.UTC()
		fields["end_date"] = end
	}
	if !end.After(start) {
		return nil, models.NewFieldValidationError(map[string]string{"end_date": "must be after start_date"})
	}
	if in.ParticipantLimit != nil {
		if *in.ParticipantLimit > 0 && *in.ParticipantLimit < event.ParticipantCount {
			return nil, models.NewFieldValidationError(map[string]string{
				"participant_limit": "cannot be lower than the current number of participants",
			})
		}
		fields["participant_limit"] = *in.ParticipantLimit
	}

	if err := s.eventRepo.Update(ctx, event.ID, fields); err != nil {
		return nil, err
	}
	return s.GetEvent(ctx, event.ID)
}

// DeleteEvent removes the event. The creator and admins may delete.
func (s *EventService) DeleteEvent(ctx context.Context, userID, eventID uint) error {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	if event.CreatorID != userID {
		admin, err := isAdmin(ctx, s.userRepo, userID)
		if err != nil {
			return err
		}
		if !admin {
			return models.NewForbiddenError("Only the event creator can delete this event")
		}
	}
	return s.eventRepo.Delete(ctx, eventID)
}

// JoinEvent registers the user for an event that has not ended and still has room.
func (s *EventService) JoinEvent(ctx context.Context, userID, eventID uint) (*models.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.EndDate.Before(s.now()) {
		return nil, models.NewValidationError("This event has already ended")
	}
	joined, err := s.eventRepo.Join(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if !joined {
		return nil, models.NewConflictError("You are already participating in this event")
	}
	return s.GetEvent(ctx, eventID)
}

// LeaveEvent removes the user from the event. The creator cannot leave.
func (s *EventService) LeaveEvent(ctx context.Context, userID, eventID uint) error {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	if event.CreatorID == userID {
		return models.NewValidationError("The event creator cannot leave the event")
	}
	left, err := s.eventRepo.Leave(ctx, eventID, userID)
	if err != nil {
		return err
	}
	if !left {
		return models.NewValidationError("You are not participating in this event")
	}
	return nil
}
